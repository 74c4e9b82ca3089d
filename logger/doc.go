// Package logger provides structured logging for sttkit using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  components:
//	    transcription: "debug"
//
// Init registers one logger per components entry; Get returns it, or the
// global logger tagged with the component name.
//
// # Usage
//
//	log := logger.Get("transcription")
//	log.Info("job completed", logger.Fields("job_id", id, "provider", name))
package logger
