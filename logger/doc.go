// Package logger provides structured logging for the resilience library
// using zerolog.
//
// It supports multiple output formats (JSON, console), log level
// configuration, and component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("resilience.breakers")
//	log.Info("state changed", logger.Fields("from", "closed", "to", "open"))
package logger
