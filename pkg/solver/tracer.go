package solver

import (
	"fmt"
	"io"
)

// Posted describes one primitive handed to a backend during
// compilation or search.
type Posted struct {
	// Op names the kind of primitive, for example "linear" or
	// "left-reif".
	Op string
	// Detail is a human-readable rendering of the primitive.
	Detail string
}

// Tracer values are given an opportunity to observe every primitive a
// session posts to its backend.
type Tracer interface {
	Trace(p Posted)
}

// DefaultTracer traces nothing.
type DefaultTracer struct{}

func (DefaultTracer) Trace(_ Posted) {
}

// LoggingTracer writes a human-readable line per posted primitive to
// its Writer.
type LoggingTracer struct {
	Writer io.Writer
}

func (t LoggingTracer) Trace(p Posted) {
	fmt.Fprintf(t.Writer, "%s: %s\n", p.Op, p.Detail)
}
