package diff

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

const tracerName = "treemerge.diff"

// Options control a comparison.
type Options struct {
	// Depth limits recursion below the anchor. The zero value is infinity.
	Depth vcs.Depth
	// IgnoreAncestry compares any two nodes at the same path as versions of
	// one node, regardless of their history.
	IgnoreAncestry bool
	// LocalBeforeRemote reports the local half of a replaced node before the
	// repository half.
	LocalBeforeRemote bool
	// ShowCopiesAsAdds reports nodes added with history as plain additions.
	ShowCopiesAsAdds bool
	// Reverse swaps the two sides.
	Reverse bool

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.DiffMetrics
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return slog.Default()
}

func (o Options) tracer() trace.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}

	return otel.Tracer(tracerName)
}

// wrap applies the decorators the options ask for.
func (o Options) wrap(cb Callback) Callback {
	if o.ShowCopiesAsAdds {
		cb = CopyAsAdded(cb)
	}

	if o.Reverse {
		cb = Reverse(cb)
	}

	return cb
}

// Stats counts the nodes a walk reported, by action.
type Stats struct {
	Added     int
	Deleted   int
	Changed   int
	Unchanged int
	Absent    int
}

func (s *Stats) add(action Action) {
	switch action {
	case ActionAdded:
		s.Added++
	case ActionDeleted:
		s.Deleted++
	case ActionChanged:
		s.Changed++
	case ActionUnchanged:
		s.Unchanged++
	case ActionAbsent:
		s.Absent++
	}
}
