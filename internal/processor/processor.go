package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ztbus-analyser/internal/eventing"
	"ztbus-analyser/internal/observability/metrics"
	"ztbus-analyser/internal/processor/events"
	windows "ztbus-analyser/internal/windows/domain"
)

const defaultConcurrency = 4

// ResultPublisher receives AlgorithmCompleted events.
type ResultPublisher interface {
	Publish(ctx context.Context, event any) error
}

type registered struct {
	Algorithm
	mu sync.Mutex
}

// Processor runs registered algorithms against the windows that trigger them.
// Executions of one algorithm are serialised; different algorithms run
// concurrently up to the configured limit.
type Processor struct {
	name        string
	processed   eventing.ProcessedStore
	results     ResultPublisher
	logger      *log.Logger
	concurrency int

	mu         sync.RWMutex
	algorithms map[string]*registered
}

// Option configures the processor.
type Option func(*Processor)

// WithProcessedStore skips (algorithm, window) pairs that already completed.
func WithProcessedStore(store eventing.ProcessedStore) Option {
	return func(p *Processor) {
		p.processed = store
	}
}

// WithResultPublisher publishes an AlgorithmCompleted event per execution.
func WithResultPublisher(results ResultPublisher) Option {
	return func(p *Processor) {
		p.results = results
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithConcurrency bounds how many algorithms run at once for one window.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New constructs a processor.
func New(name string, opts ...Option) (*Processor, error) {
	if name == "" {
		return nil, errors.New("processor: empty name")
	}
	p := &Processor{
		name:        name,
		logger:      log.Default(),
		concurrency: defaultConcurrency,
		algorithms:  make(map[string]*registered),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return p.name
}

// Register adds an algorithm. Names are unique regardless of version.
func (p *Processor) Register(algorithm Algorithm) error {
	if err := algorithm.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.algorithms[algorithm.Name]; ok {
		return fmt.Errorf("%w: %s already registered as %s", ErrDuplicateAlgorithm, algorithm.Name, existing.ID())
	}
	p.algorithms[algorithm.Name] = &registered{Algorithm: algorithm}
	return nil
}

// Algorithms lists registered algorithms ordered by name.
func (p *Processor) Algorithms() []Algorithm {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Algorithm, 0, len(p.algorithms))
	for _, alg := range p.algorithms {
		out = append(out, alg.Algorithm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *Processor) triggeredBy(windowType windows.WindowType) []*registered {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var matches []*registered
	for _, alg := range p.algorithms {
		if alg.Trigger.Matches(windowType) {
			matches = append(matches, alg)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	return matches
}

// Handle runs every algorithm triggered by the window's type. All algorithms
// run even when some fail; their errors are joined.
func (p *Processor) Handle(ctx context.Context, window windows.Window) error {
	if err := window.Validate(); err != nil {
		return err
	}
	matches := p.triggeredBy(window.Type)
	if len(matches) == 0 {
		return nil
	}

	errs := make([]error, len(matches))
	var group errgroup.Group
	group.SetLimit(p.concurrency)
	for i, alg := range matches {
		i, alg := i, alg
		group.Go(func() error {
			errs[i] = p.execute(ctx, alg, window)
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}

// HandleEvent adapts Handle to the event bus.
func (p *Processor) HandleEvent(ctx context.Context, event any) error {
	emitted, ok := event.(events.WindowEmitted)
	if !ok {
		return fmt.Errorf("processor: unexpected event %T", event)
	}
	window, err := emitted.Window()
	if err != nil {
		return err
	}
	return p.Handle(ctx, window)
}

func (p *Processor) execute(ctx context.Context, alg *registered, window windows.Window) error {
	alg.mu.Lock()
	defer alg.mu.Unlock()

	key := window.Key()
	consumer := p.name + "/" + alg.ID()
	if p.processed != nil {
		done, err := p.processed.HasProcessed(ctx, key, consumer)
		if err != nil {
			return fmt.Errorf("processor: %s: processed check: %w", alg.ID(), err)
		}
		if done {
			metrics.IncAlgorithmSkipped(alg.Name)
			return nil
		}
	}

	start := time.Now()
	result, runErr := alg.Run(ctx, window)
	duration := time.Since(start)
	metrics.ObserveAlgorithm(alg.Name, duration, runErr)

	p.publishResult(ctx, alg, window, result, runErr, duration)
	if runErr != nil {
		p.logger.Printf("processor: algorithm error algorithm=%s window=%s from=%s err=%v",
			alg.ID(), window.Type, window.TimeFrom.Format(time.RFC3339), runErr)
		return fmt.Errorf("processor: %s: %w", alg.ID(), runErr)
	}

	if p.processed != nil {
		if err := p.processed.MarkProcessed(ctx, key, consumer); err != nil {
			return fmt.Errorf("processor: %s: mark processed: %w", alg.ID(), err)
		}
	}
	return nil
}

func (p *Processor) publishResult(ctx context.Context, alg *registered, window windows.Window, result windows.Result, runErr error, duration time.Duration) {
	if p.results == nil {
		return
	}
	completed := events.AlgorithmCompleted{
		Algorithm:  alg.Name,
		Version:    alg.Version,
		WindowKey:  window.Key(),
		WindowType: window.Type.String(),
		TimeFrom:   window.TimeFrom,
		TimeTo:     window.TimeTo,
		Result:     events.EncodeResult(result),
		DurationMS: duration.Milliseconds(),
		OccurredAt: time.Now().UTC(),
	}
	if tripID, err := window.TripID(); err == nil {
		completed.TripID = tripID
	}
	if runErr != nil {
		completed.Error = runErr.Error()
	}
	if err := p.results.Publish(ctx, completed); err != nil {
		p.logger.Printf("processor: publish result error algorithm=%s err=%v", alg.ID(), err)
	}
}
