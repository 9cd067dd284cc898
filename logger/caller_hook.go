package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callerHook rewrites the caller logrus reports so log lines point at the
// real call site instead of a frame inside this wrapper package.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire walks up the stack past logrus and the wrapper methods and pins the
// entry's Caller to the first foreign frame.
func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	// 6 skips runtime.Callers, Fire itself, and the logrus fire path.
	n := runtime.Callers(6, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for more := true; more; {
		var frame runtime.Frame
		frame, more = frames.Next()
		fn := frame.Function
		if strings.Contains(fn, "sirupsen/logrus") || strings.Contains(fn, "botflow/logger") {
			continue
		}
		entry.Caller = &frame
		break
	}
	return nil
}
