package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	windows "ztbus-analyser/internal/windows/domain"
)

var (
	// ErrDuplicateAlgorithm is returned when an algorithm name is registered twice.
	ErrDuplicateAlgorithm = errors.New("processor: duplicate algorithm")
	// ErrInvalidAlgorithm is returned for algorithms missing a name, version, trigger or body.
	ErrInvalidAlgorithm = errors.New("processor: invalid algorithm")
)

// AlgorithmFunc computes a result for one window.
type AlgorithmFunc func(ctx context.Context, window windows.Window) (windows.Result, error)

// Algorithm is a named, versioned computation triggered by a window type.
type Algorithm struct {
	Name    string
	Version string
	Trigger windows.WindowType
	Run     AlgorithmFunc
}

// ID renders name@version.
func (a Algorithm) ID() string {
	return a.Name + "@" + a.Version
}

// Validate checks the algorithm definition.
func (a Algorithm) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAlgorithm)
	}
	if _, err := semver.NewVersion(a.Version); err != nil {
		return fmt.Errorf("%w: %s version %q: %v", ErrInvalidAlgorithm, a.Name, a.Version, err)
	}
	if err := a.Trigger.Validate(); err != nil {
		return fmt.Errorf("%w: %s trigger: %v", ErrInvalidAlgorithm, a.Name, err)
	}
	if a.Run == nil {
		return fmt.Errorf("%w: %s has no body", ErrInvalidAlgorithm, a.Name)
	}
	return nil
}
