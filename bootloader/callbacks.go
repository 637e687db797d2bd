package bootloader

import "time"

// Programming phases reported through Progress.Phase.
const (
	PhaseSyncing     = "syncing"
	PhaseIdentifying = "identifying"
	PhaseErasing     = "erasing"
	PhaseWriting     = "writing"
	PhaseVerifying   = "verifying"
	PhaseResetting   = "resetting"
	PhaseComplete    = "complete"
)

// Progress contains information about the programming progress.
// Passed to ProgressCallback during programming operations.
type Progress struct {
	// Phase describes the current operation phase:
	//   "syncing"     - Sending the sync preamble
	//   "identifying" - Reading boot info, chip id, MAC and flash id
	//   "erasing"     - Erasing the target flash range
	//   "writing"     - Writing image chunks
	//   "verifying"   - Comparing the flash SHA-256 with the image
	//   "resetting"   - Resetting the chip
	//   "complete"    - Operation completed successfully
	Phase string

	// CurrentChunk is the number of chunks written so far
	CurrentChunk int

	// TotalChunks is the total number of chunks to write
	TotalChunks int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesWritten is the total number of bytes written so far
	BytesWritten int

	// TotalBytes is the padded image size
	TotalBytes int

	// ElapsedTime is the time elapsed since programming started
	ElapsedTime time.Duration
}

// ProgressCallback is called periodically during programming to report progress.
// Implementations should return quickly to avoid blocking the programming operation.
//
// Example:
//
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - chunk %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentChunk, p.TotalChunks)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the client.
// This allows integration with any logging framework.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	prog := bootloader.New(port, bootloader.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
