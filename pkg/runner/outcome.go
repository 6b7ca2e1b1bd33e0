package runner

// Outcome is the result of executing one task: either a value or the reason
// the task produced none. Executors report every failure through Outcome so
// nothing propagates past the runner.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Success wraps a successful task value
func Success[R any](v R) Outcome[R] {
	return Outcome[R]{Value: v}
}

// Failure records why a task produced no value
func Failure[R any](err error) Outcome[R] {
	return Outcome[R]{Err: err}
}

// OK reports whether the task produced a value
func (o Outcome[R]) OK() bool {
	return o.Err == nil
}
