package protocol

// Frame structure constants for the Bouffalo boot-ROM UART protocol.
const (
	// HeaderSize is the size of the command frame header:
	// CMD(1) + CHECKSUM(1) + LEN(2)
	HeaderSize = 4

	// AckSize is the size of the acknowledgement marker sent by the ROM
	AckSize = 2

	// LengthSize is the size of the little-endian length and error code fields
	LengthSize = 2

	// CRC32Size is the size of the trailing CRC32 on checked responses
	CRC32Size = 4

	// MaxPayloadSize is the largest payload the 16-bit length field can carry
	MaxPayloadSize = 0xFFFF
)

// Acknowledgement markers.
var (
	// AckOK is sent by the ROM when a command succeeded
	AckOK = [AckSize]byte{'O', 'K'}

	// AckFail is sent by the ROM when a command failed; a 2-byte error code follows
	AckFail = [AckSize]byte{'F', 'L'}
)

// Command identifiers understood by the boot ROM.
const (
	// CmdGetChipID reads the chip identification string
	CmdGetChipID = 0x05

	// CmdGetBootInfo reads boot-ROM version, security flags and chip id
	CmdGetBootInfo = 0x10

	// CmdReset resets the chip
	CmdReset = 0x21

	// CmdClockSet configures the PLL and UART speed used while loading
	CmdClockSet = 0x22

	// CmdFlashErase erases an inclusive flash address range
	CmdFlashErase = 0x30

	// CmdFlashWrite writes a block of data at a flash address
	CmdFlashWrite = 0x31

	// CmdFlashRead reads a block of flash
	CmdFlashRead = 0x32

	// CmdFlashReadJedecID reads the flash JEDEC id
	CmdFlashReadJedecID = 0x36

	// CmdFlashWriteCheck asks the ROM to confirm all pending writes landed
	CmdFlashWriteCheck = 0x3A

	// CmdFlashSetPara configures the flash interface
	CmdFlashSetPara = 0x3B

	// CmdFlashXipReadSha computes SHA-256 over a flash range through XIP
	CmdFlashXipReadSha = 0x3E

	// CmdEfuseReadMac reads the MAC address from efuse (CRC32 checked)
	CmdEfuseReadMac = 0x42

	// CmdFlashXipReadStart enters XIP read mode
	CmdFlashXipReadStart = 0x60

	// CmdFlashXipReadFinish leaves XIP read mode
	CmdFlashXipReadFinish = 0x61

	// CmdLogRead reads the boot-ROM log buffer
	CmdLogRead = 0x71
)

// Response data sizes.
const (
	// BootInfoResponseSize is the minimum data size for a Get Boot Info response
	BootInfoResponseSize = 18

	// ChipIDSize is the size of the chip id embedded in the boot info
	ChipIDSize = 6

	// bootInfoChipIDOffset is the offset of the chip id within the boot info
	bootInfoChipIDOffset = 12

	// SHA256Size is the size of the digest returned by Flash XIP Read SHA
	SHA256Size = 32
)

// Session preamble constants.
const (
	// SyncByte is the byte pattern the ROM uses for baud-rate detection
	SyncByte = 0x55

	// SyncReplyBufferSize is the maximum number of bytes read after the preamble
	SyncReplyBufferSize = 256

	// DefaultBaudRate is the UART speed the ROM expects by default
	DefaultBaudRate = 115200

	// syncWindow is the preamble duration in seconds
	syncWindow = 0.006

	// bitsPerUARTByte is start + 8 data + stop
	bitsPerUARTByte = 10
)

// SyncLength returns how many sync bytes fill the preamble window at the given
// baud rate. At DefaultBaudRate this is 69.
func SyncLength(baud int) int {
	if baud <= 0 {
		return 0
	}
	return int(syncWindow * float64(baud) / bitsPerUARTByte)
}
