// Package logging provides structured logging for asuslink.
//
// This package wraps zap with convenience functions for the logging
// patterns used throughout the library. Logging is silent by default so
// that library consumers see no unexpected output; set ASUSLINK_LOG_LEVEL
// (or call Initialize with an explicit level) to enable it.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed protocol info (endpoint requests, parse decisions)
//   - Info: Normal operations (login, cache refresh, commands)
//   - Warn: Non-fatal issues (endpoint failures absorbed by the pipeline)
//   - Error: Failures surfaced to the caller
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Login successful",
//	    zap.String("host", "192.168.1.1"),
//	    zap.String("model", "RT-AX88U"),
//	)
//
// Credentials and session tokens are never logged.
package logging
