package solver

import (
	"time"

	"github.com/operator-framework/solvent/pkg/model"
)

// Options collects the per-call settings understood by every backend
// session. Everything here is optional; the zero value asks for a
// plain unbounded solve.
type Options struct {
	// TimeLimit bounds the backend's search. Zero means no limit.
	// The limit is forwarded to the backend, which honors it
	// cooperatively; this layer never kills a running search, so a
	// backend that ignores its limit runs unbounded.
	TimeLimit time.Duration

	// SolutionLimit stops an enumeration after this many solutions.
	// Zero means no limit.
	SolutionLimit int

	// InProgressLimit bounds how many consecutive in-progress
	// reports a chunked backend may emit during one logical run
	// before the run is abandoned. Zero means no bound: the backend
	// is trusted to terminate on its own.
	InProgressLimit int

	// Assumptions are references asserted true for the duration of
	// a single solve call. Backends without an assumption primitive
	// reject them loudly instead of silently dropping them.
	Assumptions []model.Ref

	// BackendOptions are forwarded verbatim and in order to the
	// backend before the run starts. This layer performs no
	// validation: unrecognized keys are the backend's to reject.
	BackendOptions []BackendOption
}

// BackendOption is a single backend-specific setting.
type BackendOption struct {
	Key   string
	Value string
}

// Option customizes a single solve call.
type Option func(*Options)

// NewOptions applies the given options to a zero Options value.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTimeLimit bounds the backend's search time.
func WithTimeLimit(d time.Duration) Option {
	return func(o *Options) {
		o.TimeLimit = d
	}
}

// WithSolutionLimit stops an enumeration after n solutions.
func WithSolutionLimit(n int) Option {
	return func(o *Options) {
		o.SolutionLimit = n
	}
}

// WithInProgressLimit abandons a run after n consecutive in-progress
// reports from the backend.
func WithInProgressLimit(n int) Option {
	return func(o *Options) {
		o.InProgressLimit = n
	}
}

// WithAssumptions asserts the given references for the duration of one
// solve call.
func WithAssumptions(refs ...model.Ref) Option {
	return func(o *Options) {
		o.Assumptions = append(o.Assumptions, refs...)
	}
}

// WithBackendOption forwards a backend-specific setting verbatim.
func WithBackendOption(key, value string) Option {
	return func(o *Options) {
		o.BackendOptions = append(o.BackendOptions, BackendOption{Key: key, Value: value})
	}
}
