// Package bootloader talks to the boot ROM of Bouffalo Lab chips and flashes
// firmware through it.
//
// # Overview
//
// Client performs single command round trips. Programmer builds on it and
// orchestrates the complete flashing sequence:
//   - Syncing the UART baud rate
//   - Identifying the chip and its flash
//   - Erasing and writing the image in chunks
//   - Verifying the flash SHA-256 against the image
//   - Resetting the chip
//
// # Basic Usage
//
// The simplest way to program a device:
//
//	port, err := serialport.Open("/dev/ttyUSB0", serialport.Config{BaudRate: 115200})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	img, err := firmware.Load("app.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prog := bootloader.New(port)
//	if _, err := prog.Program(context.Background(), img); err != nil {
//	    log.Fatal(err)
//	}
//
// # Individual Commands
//
// Every boot ROM command is available on Client:
//
//	c := prog.Client()
//	info, err := c.GetBootInfo(ctx)
//	data, err := c.FlashRead(ctx, 0x2000, 256)
//
// Send accepts any protocol request and returns its typed response:
//
//	mac, err := bootloader.Send(ctx, c, protocol.EfuseReadMac{})
//	fmt.Printf("% X\n", mac.Value())
//
// # Progress Tracking
//
// Track programming progress with a callback:
//
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
//
// # Context Support
//
// Cancellation is checked between round trips; a command that has been
// written always runs to completion or to a transport error. Per-read
// timeouts belong to the port.
//
// # Error Handling
//
// Transport and device failures are *protocol.Error values classified with
// errors.Is (protocol.ErrDevice, protocol.ErrProtocolViolation, ...).
// The programmer adds:
//   - VerificationError: flash digest differs from the image
//   - ImageTooLargeError: image does not fit at the flash offset
//
// # Hardware Independence
//
// Client accepts any io.ReadWriter. The serialport package provides one for
// UART adapters, and the romsim package emulates the boot ROM in memory.
package bootloader
