// Package logging provides the structured debug log for relpub runs.
//
// The log is separate from the operator transcript printed by package ui:
// the transcript is what the person running a release reads, the debug log
// is JSON lines for after-the-fact troubleshooting of a failed release.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("release branch created", "branch", "release/v1.2.4")
//
// # Context Propagation
//
// Child loggers carry persistent attributes. Every run gets a session ID and
// each pipeline stage tags its entries:
//
//	log := logger.WithSession(sess.ID).WithStage("publish")
//	log.Warn("publish rejected", "attempt", 2, "retryable", true)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"publish rejected","session_id":"...","stage":"publish","attempt":2,"retryable":true}
//
// OTP codes are never logged.
//
// # Log Rotation
//
//	logger, err := logging.NewLoggerWithRotation(dir, "DEBUG", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	})
//
// Rotated files are named debug.log.1, debug.log.2, and so on, where .1 is
// the most recent backup.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a buffer to
// assert on entries.
package logging
