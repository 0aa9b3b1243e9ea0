// Package logger provides structured logging for pbkit using zerolog.
//
// The library logs through a package-level logger that defaults to
// warnings on stderr, so embedding applications stay quiet unless they
// opt in. Components obtain a scoped logger with WithComponent.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("realtime")
//	log.Debug("connected", logger.Fields(logger.FieldClientID, id))
package logger
