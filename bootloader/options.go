package bootloader

import (
	"github.com/moffa90/go-bflb/firmware"
	"github.com/moffa90/go-bflb/protocol"
)

// MaxChunkSize is the largest Flash Write payload accepted by the boot ROM
// buffer, excluding the 4-byte address.
const MaxChunkSize = 4092

// Config holds the client and programmer configuration.
type Config struct {
	// ProgressCallback is called during programming to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// BaudRate is the UART speed the port is opened at; it sizes the sync preamble
	BaudRate int

	// ChunkSize is the maximum data size per Flash Write command
	// Default is 2048 bytes
	ChunkSize int

	// FlashOffset is the flash address the image is written to
	FlashOffset uint32

	// Verify enables the SHA-256 comparison after programming
	Verify bool

	// ResetAfterProgram resets the chip once the image is written
	ResetAfterProgram bool

	// SkipSync skips the sync preamble, for links already in sync
	SkipSync bool

	// ClockSet is sent before flash access
	ClockSet protocol.ClockSet

	// FlashSetPara configures the flash interface before erasing
	FlashSetPara protocol.FlashSetPara
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		BaudRate:          protocol.DefaultBaudRate,
		ChunkSize:         firmware.DefaultChunkSize,
		FlashOffset:       firmware.DefaultFlashOffset,
		Verify:            true,
		ResetAfterProgram: true,
		ClockSet:          protocol.DefaultClockSet(),
		FlashSetPara:      protocol.DefaultFlashSetPara(),
	}
}

// Option is a functional option for configuring the Client and Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track programming progress.
//
// Example:
//
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for client and programmer operations.
//
// Example:
//
//	prog := bootloader.New(port, bootloader.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithBaudRate sets the UART speed used to size the sync preamble.
// It must match the speed the port was opened at. Non-positive values are ignored.
func WithBaudRate(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.BaudRate = baud
		}
	}
}

// WithChunkSize sets the maximum data size per Flash Write command.
// Values outside 1..MaxChunkSize are ignored.
//
// Example:
//
//	prog := bootloader.New(port, bootloader.WithChunkSize(4000))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= MaxChunkSize {
			c.ChunkSize = size
		}
	}
}

// WithFlashOffset sets the flash address the image is written to.
// Default is 0x2000.
func WithFlashOffset(offset uint32) Option {
	return func(c *Config) {
		c.FlashOffset = offset
	}
}

// WithVerify enables or disables the SHA-256 check after programming.
// Default is true.
func WithVerify(verify bool) Option {
	return func(c *Config) {
		c.Verify = verify
	}
}

// WithResetAfterProgram enables or disables the chip reset after programming.
// Default is true.
func WithResetAfterProgram(reset bool) Option {
	return func(c *Config) {
		c.ResetAfterProgram = reset
	}
}

// WithSkipSync skips the sync preamble before the first command.
func WithSkipSync(skip bool) Option {
	return func(c *Config) {
		c.SkipSync = skip
	}
}

// WithClockSet overrides the clock configuration sent before flash access.
func WithClockSet(cs protocol.ClockSet) Option {
	return func(c *Config) {
		c.ClockSet = cs
	}
}

// WithFlashSetPara overrides the flash interface configuration.
func WithFlashSetPara(p protocol.FlashSetPara) Option {
	return func(c *Config) {
		c.FlashSetPara = p
	}
}
