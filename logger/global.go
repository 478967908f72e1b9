package logger

import "sync/atomic"

// globalLogger is the optional process-wide instance. The engine is designed
// to be passed as a value; the global exists for hosts that want a single
// shared pipeline without threading it everywhere. Tests should construct
// their own instances.
var globalLogger atomic.Pointer[UltraLogger]

// SetGlobal installs the process-wide logger.
func SetGlobal(l *UltraLogger) {
	globalLogger.Store(l)
}

// Global returns the process-wide logger, or nil when none was installed.
func Global() *UltraLogger {
	return globalLogger.Load()
}
