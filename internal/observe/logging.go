package observe

import (
	"context"
	"time"

	"github.com/abhisek/traverse/internal/logger"
)

type logging struct {
	log *logger.Logger
}

// NewLogging returns an Observer that writes operations and events to log.
func NewLogging(log *logger.Logger) Observer {
	return &logging{log: log}
}

func (l *logging) Start(ctx context.Context, op string, attrs ...Attr) (context.Context, Finish) {
	start := time.Now()
	return ctx, func(err error) {
		kv := append(flatten(attrs), "op", op, "duration_ms", time.Since(start).Milliseconds())
		if err != nil {
			l.log.Warn("operation failed", append(kv, "error", err)...)
			return
		}
		l.log.Debug("operation done", kv...)
	}
}

func (l *logging) Event(_ context.Context, name string, attrs ...Attr) {
	l.log.Info(name, flatten(attrs)...)
}

func flatten(attrs []Attr) []any {
	kv := make([]any, 0, 2*len(attrs)+6)
	for _, a := range attrs {
		kv = append(kv, a.Key, a.Value)
	}
	return kv
}
