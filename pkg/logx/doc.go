// Package logx wraps zerolog behind a small, swap-safe logger.
//
// The Service owns the sinks (console, file) and can re-apply its config at
// runtime; Loggers handed out earlier keep working against the new sinks.
package logx
