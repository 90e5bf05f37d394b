package windows

// ResultKind discriminates algorithm results.
type ResultKind string

const (
	ResultNone   ResultKind = "none"
	ResultValue  ResultKind = "value"
	ResultStruct ResultKind = "struct"
)

// Result is the outcome of an algorithm run.
type Result interface {
	Kind() ResultKind
}

// NoneResult carries no value.
type NoneResult struct{}

// Kind implements Result.
func (NoneResult) Kind() ResultKind { return ResultNone }

// ValueResult carries one scalar.
type ValueResult struct {
	Value float64
}

// Kind implements Result.
func (ValueResult) Kind() ResultKind { return ResultValue }

// StructResult carries named values; a nil field has no value.
type StructResult struct {
	Fields map[string]*float64
}

// Kind implements Result.
func (StructResult) Kind() ResultKind { return ResultStruct }

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
