// Package protocol implements the Bouffalo Lab boot-ROM UART command protocol.
//
// This package provides the command variants understood by the ROM bootloader,
// the frame encoder and the typed response decoders. It performs no I/O; the
// bootloader package drives the request/response exchange.
//
// # Protocol Overview
//
// Every exchange is a single command frame followed by an acknowledgement:
//
//	Command:  [CMD][CHECKSUM][LEN_L][LEN_H][PAYLOAD...]
//	Success:  "OK" [LEN_L][LEN_H][DATA...]   (length omitted for empty responses)
//	Failure:  "FL" [CODE_L][CODE_H]
//
// Where:
//   - CHECKSUM = 8-bit wraparound sum of LEN and PAYLOAD
//   - LEN = 16-bit payload length (little-endian)
//   - CODE = 16-bit device error code (little-endian)
//
// # Commands
//
// Each command is a value type bound to the shape of its response:
//
//	frame, err := protocol.Encode(protocol.FlashErase{Start: 0x2000, End: 0x8d3f})
//	// 30 f4 08 00 00 20 00 00 3f 8d 00 00
//
//	var req protocol.Request[*protocol.BootInfo] = protocol.GetBootInfo{}
//	info, err := req.Response().Decode(payload)
//
// # Response Shapes
//
//   - EmptyResponse: acknowledge only, no length or payload on the wire
//   - BytesResponse: raw payload
//   - TextResponse: UTF-8 validated payload
//   - BootInfoResponse: structured boot-ROM information
//   - DigestResponse: 32-byte SHA-256
//   - CRC32Response: any of the above with a verified CRC32 trailer
//
// # Error Handling
//
// Every failure is a *Error carrying a Kind. Classify with errors.Is:
//
//	if errors.Is(err, protocol.ErrDevice) {
//	    code, _ := protocol.DeviceCode(err)
//	    // err.Error() returns: "flash erase: device error: flash erase error (0x0003)"
//	}
//
// Malformed device input never panics; it is always returned as an error.
package protocol
