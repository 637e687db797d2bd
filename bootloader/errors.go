package bootloader

import (
	"fmt"
)

// ImageTooLargeError indicates that an image does not fit the 32-bit flash
// address space above the configured offset.
type ImageTooLargeError struct {
	Offset uint32
	Size   int
}

func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("image of %d bytes does not fit at flash offset 0x%08X", e.Size, e.Offset)
}

// VerificationError indicates that the flash digest reported by the chip
// differs from the digest of the image.
type VerificationError struct {
	Addr     uint32
	Len      uint32
	Expected [32]byte
	Actual   [32]byte
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("firmware verification failed: sha256 of 0x%08X+0x%X is %x, expected %x",
		e.Addr, e.Len, e.Actual, e.Expected)
}
