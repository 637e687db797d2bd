package protocol

import (
	"encoding/hex"
	"fmt"
)

// BootInfo contains boot-ROM identification information.
// Returned by the Get Boot Info command.
type BootInfo struct {
	// BootROMVersion is the boot-ROM version, most significant part first
	BootROMVersion [4]byte

	// Sign is the image signature requirement flag
	Sign byte

	// Encrypt is the image encryption requirement flag
	Encrypt byte

	// ChipID is the 6-byte chip identifier, in display order
	ChipID [ChipIDSize]byte
}

// Version returns the boot-ROM version in dotted form, e.g. "1.0.2.6".
func (b *BootInfo) Version() string {
	v := b.BootROMVersion
	return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
}

// ChipIDHex returns the chip id as a lowercase hex string.
func (b *BootInfo) ChipIDHex() string {
	return hex.EncodeToString(b.ChipID[:])
}

func (b *BootInfo) String() string {
	return fmt.Sprintf("BootInfo{boot_rom_version: %s, sign: %d, encrypt: %d, chip_id: %s}",
		b.Version(), b.Sign, b.Encrypt, b.ChipIDHex())
}

// Checked is a response value whose payload carried a verified CRC32 trailer.
type Checked[T any] struct {
	// Data is the decoded inner value
	Data T
}

// Value returns the decoded inner value.
func (c Checked[T]) Value() T {
	return c.Data
}
