// Package logger provides structured logging capabilities.
//
// The logger package sets up and configures the application's logging
// system using zap. Request handling code derives child loggers with
// ForRequest so that validation, workspace and sandbox log lines for one
// execution share the same request_id.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger.Info("Application started")
package logger
