package monitoring

import "log"

// Logf is the package-level diagnostic logger used across the try-on
// pipeline. It defaults to log.Printf; tests and embedding applications can
// redirect or silence it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, which mutes all pipeline diagnostics.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
