package logger

import "sync/atomic"

var global atomic.Pointer[Logger]

// Init builds the process-wide logger from cfg.
func Init(cfg *Config) {
	cfg.ApplyDefaults()
	global.Store(New(cfg, cfg.ServiceName))
}

// SetGlobalLogger replaces the process-wide logger.
func SetGlobalLogger(l *Logger) { global.Store(l) }

// GetGlobalLogger returns the process-wide logger, creating a console one on first use.
func GetGlobalLogger() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	global.CompareAndSwap(nil, NewDefault(""))
	return global.Load()
}

// Info logs through the process-wide logger.
func Info(msg string, fields ...map[string]any) { GetGlobalLogger().Info(msg, fields...) }

