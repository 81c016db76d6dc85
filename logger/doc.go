// Package logger is the structured logger of a mesh node, built on zerolog.
//
//	logging:
//	  level: info
//	  format: json   # or console
//
// Components derive their own logger and add request scope per call:
//
//	log := base.WithComponent("dispatch")
//	log.WithContext(ctx).Warn("Call failed", logger.Fields(logger.FieldService, "service2"))
//
// WithContext picks up the request ID set by the server middleware and the
// active trace and span IDs.
package logger
