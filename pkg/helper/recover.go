package helper

import (
	"runtime/debug"

	"github.com/easytier-tools/easytier-installer/pkg/logger"
)

// RecoverPanic recovers from panics and logs the stack trace.
// Usage: defer helper.RecoverPanic(logger, "install")
func RecoverPanic(log *logger.Logger, name string) {
	if r := recover(); r != nil {
		log.Errorf("PANIC recovered in %s: %v\nStack: %s", name, r, debug.Stack())
	}
}
