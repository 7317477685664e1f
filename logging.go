package chainmap

import "time"

// Operation names reported through Logger.
const (
	OpGet         = "get"
	OpSet         = "set"
	OpAdd         = "add"
	OpRemove      = "remove"
	OpClear       = "clear"
	OpLayerAdd    = "layer.add"
	OpLayerRemove = "layer.remove"
	OpLayersClear = "layers.clear"
	OpLayerGet    = "layer.get"
	OpEvaluate    = "evaluate"
	OpActivity    = "activity"
)

// LogEvent describes a single operation on a LayeredMap. Layer follows the
// conceptual numbering where 0 is the primary map and secondary layer i is
// reported as i+1.
type LogEvent struct {
	Map      string
	Op       string
	Key      any
	Layer    int
	Engine   string
	Expr     string
	Duration time.Duration
	Err      error
}

// Logger records LayeredMap events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// WithLogger attaches a logger to the map.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

func (m *LayeredMap[K, V]) logOp(op string, key any, layer int, err error) {
	m.logger().Log(LogEvent{
		Map:   m.label(),
		Op:    op,
		Key:   key,
		Layer: layer,
		Err:   err,
	})
}
