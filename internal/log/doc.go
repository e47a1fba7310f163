// Package log builds the slog loggers used across streamscout.
//
// Every logger wraps its output handler in a SecureHandler, which masks
// values that may carry provider credentials:
//   - headers such as Authorization, Cookie and X-Api-Key
//   - any key containing "token", "secret", "password" or "auth"
//   - bearer, basic and JWT values
//   - userinfo and token query parameters inside URLs
//
// Masking applies in verbose mode too, so debug logs can be attached to
// bug reports without leaking catalogue secrets.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose, jsonLogs)
//	logger.Debug("probe finished", "provider", "ALPHA",
//	    "url", "https://user:pw@cdn.example/master.m3u8?token=abc")
//	// url=https://***REDACTED***@cdn.example/master.m3u8?token=***REDACTED***
//
// The loggers are plain *slog.Logger values and can be handed to tornago.
package log
