package protocol

import (
	"encoding/binary"
	"fmt"
)

// Command is a request understood by the boot ROM.
//
// The set of commands is closed: every variant is defined in this package.
type Command interface {
	// CommandID returns the one-byte command identifier
	CommandID() byte

	// appendPayload appends the little-endian payload fields to dst
	appendPayload(dst []byte) []byte
}

// Request is a Command bound to the shape of its response.
type Request[R any] interface {
	Command
	Response() Decoder[R]
}

// Encode builds the wire frame for cmd:
//
//	[CMD][CHECKSUM][LEN_L][LEN_H][PAYLOAD...]
//
// The length field is written first; the checksum is the 8-bit wraparound
// sum of every byte from offset 2 to the end and is filled in last.
// Commands without payload encode to exactly [CMD 00 00 00].
//
// A payload that does not fit the 16-bit length field is an error and no
// frame is returned.
func Encode(cmd Command) ([]byte, error) {
	frame := encode(cmd)
	if n := len(frame) - HeaderSize; n > MaxPayloadSize {
		return nil, &Error{
			Kind: KindCustom,
			Op:   "encode " + CommandName(cmd.CommandID()),
			Msg:  fmt.Sprintf("payload length %d exceeds maximum %d bytes", n, MaxPayloadSize),
		}
	}
	return frame, nil
}

func encode(cmd Command) []byte {
	frame := make([]byte, HeaderSize, HeaderSize+payloadCapacity(cmd))
	frame[0] = cmd.CommandID()
	frame = cmd.appendPayload(frame)

	binary.LittleEndian.PutUint16(frame[2:4], uint16(len(frame)-HeaderSize))
	frame[1] = Checksum8(frame[2:])

	return frame
}

func payloadCapacity(cmd Command) int {
	switch c := cmd.(type) {
	case FlashWrite:
		return 4 + len(c.Data)
	case ClockSet:
		return 8 + len(c.ClockParameter)
	case FlashSetPara:
		return 4 + len(c.FlashPara)
	default:
		return 8
	}
}

func appendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

// noPayload is embedded by commands that carry only the header.
type noPayload struct{}

func (noPayload) appendPayload(dst []byte) []byte { return dst }

// GetBootInfo reads boot-ROM version, security flags and chip id.
type GetBootInfo struct{ noPayload }

func (GetBootInfo) CommandID() byte { return CmdGetBootInfo }
func (GetBootInfo) Response() Decoder[*BootInfo] { return BootInfoResponse{} }

// GetChipID reads the chip identification string, e.g. "CHIPWB03A00_BL".
type GetChipID struct{ noPayload }

func (GetChipID) CommandID() byte { return CmdGetChipID }
func (GetChipID) Response() Decoder[string] { return TextResponse{} }

// ClockSet configures the clocks and UART speed used while loading.
//
// Payload:
//
//	[IRQ_ENABLE(4)][LOAD_SPEED(4)][CLOCK_PARAMETER...]
type ClockSet struct {
	// IRQEnable enables interrupts during loading
	IRQEnable bool

	// LoadSpeed is the UART baud rate used after the command
	LoadSpeed uint32

	// ClockParameter is an optional clock configuration blob
	ClockParameter []byte
}

// DefaultClockSet returns the clock setting used by the flashing workflow.
func DefaultClockSet() ClockSet {
	return ClockSet{
		IRQEnable: true,
		LoadSpeed: DefaultBaudRate,
	}
}

func (ClockSet) CommandID() byte { return CmdClockSet }
func (ClockSet) Response() Decoder[struct{}] { return EmptyResponse{} }

func (c ClockSet) appendPayload(dst []byte) []byte {
	var irq uint32
	if c.IRQEnable {
		irq = 1
	}
	dst = appendU32(dst, irq)
	dst = appendU32(dst, c.LoadSpeed)
	return append(dst, c.ClockParameter...)
}

// Reset resets the chip. The ROM acknowledges before resetting.
type Reset struct{ noPayload }

func (Reset) CommandID() byte { return CmdReset }
func (Reset) Response() Decoder[struct{}] { return EmptyResponse{} }

// EfuseReadMac reads the factory MAC address. The response is CRC32 checked.
type EfuseReadMac struct{ noPayload }

func (EfuseReadMac) CommandID() byte { return CmdEfuseReadMac }
func (EfuseReadMac) Response() Decoder[Checked[[]byte]] {
	return CRC32Response[[]byte]{Inner: BytesResponse{}}
}

// FlashReadJedecID reads the JEDEC manufacturer and device id of the flash.
type FlashReadJedecID struct{ noPayload }

func (FlashReadJedecID) CommandID() byte { return CmdFlashReadJedecID }
func (FlashReadJedecID) Response() Decoder[[]byte] { return BytesResponse{} }

// FlashErase erases the inclusive flash range [Start, End].
//
// Payload:
//
//	[START(4)][END(4)]
type FlashErase struct {
	Start uint32
	End   uint32
}

func (FlashErase) CommandID() byte { return CmdFlashErase }
func (FlashErase) Response() Decoder[struct{}] { return EmptyResponse{} }

func (c FlashErase) appendPayload(dst []byte) []byte {
	dst = appendU32(dst, c.Start)
	return appendU32(dst, c.End)
}

// FlashWrite writes Data at StartAddr.
//
// Payload:
//
//	[START_ADDR(4)][DATA...]
type FlashWrite struct {
	StartAddr uint32
	Data      []byte
}

func (FlashWrite) CommandID() byte { return CmdFlashWrite }
func (FlashWrite) Response() Decoder[struct{}] { return EmptyResponse{} }

func (c FlashWrite) appendPayload(dst []byte) []byte {
	dst = appendU32(dst, c.StartAddr)
	return append(dst, c.Data...)
}

// FlashRead reads Len bytes of flash at StartAddr.
//
// Payload:
//
//	[START_ADDR(4)][LEN(4)]
type FlashRead struct {
	StartAddr uint32
	Len       uint32
}

func (FlashRead) CommandID() byte { return CmdFlashRead }
func (FlashRead) Response() Decoder[[]byte] { return BytesResponse{} }

func (c FlashRead) appendPayload(dst []byte) []byte {
	dst = appendU32(dst, c.StartAddr)
	return appendU32(dst, c.Len)
}

// FlashSetPara configures the flash interface.
//
// Payload:
//
//	[PIN(1)][CLOCK_CFG(1)][IO_MODE(1)][CLK_DELAY(1)][FLASH_PARA...]
type FlashSetPara struct {
	FlashPin      byte
	FlashClockCfg byte
	FlashIOMode   byte
	FlashClkDelay byte

	// FlashPara is the optional flash configuration block
	FlashPara []byte
}

// DefaultFlashSetPara returns the flash setting used by the flashing workflow:
// auto-detected pins, 80MHz flash clock, single-line IO, no clock delay.
func DefaultFlashSetPara() FlashSetPara {
	return FlashSetPara{
		FlashPin:      0x00,
		FlashClockCfg: 0x41,
		FlashIOMode:   0x01,
		FlashClkDelay: 0x00,
	}
}

func (FlashSetPara) CommandID() byte { return CmdFlashSetPara }
func (FlashSetPara) Response() Decoder[struct{}] { return EmptyResponse{} }

func (c FlashSetPara) appendPayload(dst []byte) []byte {
	dst = append(dst, c.FlashPin, c.FlashClockCfg, c.FlashIOMode, c.FlashClkDelay)
	return append(dst, c.FlashPara...)
}

// FlashWriteCheck asks the ROM to confirm all written data landed.
type FlashWriteCheck struct{ noPayload }

func (FlashWriteCheck) CommandID() byte { return CmdFlashWriteCheck }
func (FlashWriteCheck) Response() Decoder[struct{}] { return EmptyResponse{} }

// FlashXipReadSha computes the SHA-256 of Len bytes of flash at StartAddr.
// Must be issued between FlashXipReadStart and FlashXipReadFinish.
//
// Payload:
//
//	[START_ADDR(4)][LEN(4)]
type FlashXipReadSha struct {
	StartAddr uint32
	Len       uint32
}

func (FlashXipReadSha) CommandID() byte { return CmdFlashXipReadSha }
func (FlashXipReadSha) Response() Decoder[[SHA256Size]byte] { return DigestResponse{} }

func (c FlashXipReadSha) appendPayload(dst []byte) []byte {
	dst = appendU32(dst, c.StartAddr)
	return appendU32(dst, c.Len)
}

// FlashXipReadStart enters XIP read mode.
type FlashXipReadStart struct{ noPayload }

func (FlashXipReadStart) CommandID() byte { return CmdFlashXipReadStart }
func (FlashXipReadStart) Response() Decoder[struct{}] { return EmptyResponse{} }

// FlashXipReadFinish leaves XIP read mode.
type FlashXipReadFinish struct{ noPayload }

func (FlashXipReadFinish) CommandID() byte { return CmdFlashXipReadFinish }
func (FlashXipReadFinish) Response() Decoder[struct{}] { return EmptyResponse{} }

// LogRead reads the boot-ROM log buffer as text.
type LogRead struct{ noPayload }

func (LogRead) CommandID() byte { return CmdLogRead }
func (LogRead) Response() Decoder[string] { return TextResponse{} }

var commandNames = map[byte]string{
	CmdGetChipID:          "get chip id",
	CmdGetBootInfo:        "get boot info",
	CmdReset:              "reset",
	CmdClockSet:           "clock set",
	CmdFlashErase:         "flash erase",
	CmdFlashWrite:         "flash write",
	CmdFlashRead:          "flash read",
	CmdFlashReadJedecID:   "flash read jedec id",
	CmdFlashWriteCheck:    "flash write check",
	CmdFlashSetPara:       "flash set para",
	CmdFlashXipReadSha:    "flash xip read sha",
	CmdEfuseReadMac:       "efuse read mac",
	CmdFlashXipReadStart:  "flash xip read start",
	CmdFlashXipReadFinish: "flash xip read finish",
	CmdLogRead:            "log read",
}

// CommandName returns a human-readable name for a command identifier.
func CommandName(id byte) string {
	if name, ok := commandNames[id]; ok {
		return name
	}
	return fmt.Sprintf("command 0x%02X", id)
}

// IsKnownCommand returns true if id is a command defined by this package.
func IsKnownCommand(id byte) bool {
	_, ok := commandNames[id]
	return ok
}
