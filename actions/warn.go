package actions

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// OnceWarner logs a single warning over its lifetime, later warnings are dropped.
type OnceWarner struct {
	once   sync.Once
	logger log.Logger
}

func NewOnceWarner(logger log.Logger) *OnceWarner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &OnceWarner{logger: logger}
}

func (w *OnceWarner) Warn(msg string) {
	w.once.Do(func() {
		_ = level.Warn(w.logger).Log("msg", msg)
	})
}
