package firmware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

const (
	// Alignment is the size granularity of a flash image
	Alignment = 16

	// DefaultChunkSize is the number of bytes sent per Flash Write command
	DefaultChunkSize = 2048

	// DefaultFlashOffset is the flash address application images are written to
	DefaultFlashOffset = 0x2000
)

// BootHeaderMagic is the magic at the start of a vendor boot header.
var BootHeaderMagic = []byte("BFNP")

// Image is a flash image ready for transfer.
type Image struct {
	// Data is the image contents, zero-padded to a multiple of Alignment
	Data []byte

	// OriginalSize is the size of the image before padding
	OriginalSize int
}

// Chunk is a contiguous part of an image bound to a flash address.
type Chunk struct {
	// Addr is the flash address of the first byte
	Addr uint32

	// Data is the chunk contents
	Data []byte
}

// End returns the flash address of the last byte of the chunk.
func (c Chunk) End() uint32 {
	return c.Addr + uint32(len(c.Data)) - 1
}

// New builds an image from data. data is copied and zero-padded.
func New(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	return &Image{
		Data:         Pad(data),
		OriginalSize: len(data),
	}, nil
}

// Pad returns a copy of data zero-padded to a multiple of Alignment.
func Pad(data []byte) []byte {
	size := len(data)
	if rem := size % Alignment; rem != 0 {
		size += Alignment - rem
	}

	out := make([]byte, size)
	copy(out, data)
	return out
}

// Size returns the padded image size in bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// HasBootHeader reports whether the image starts with a vendor boot header.
func (img *Image) HasBootHeader() bool {
	return bytes.HasPrefix(img.Data, BootHeaderMagic)
}

// SHA256 returns the digest of the padded image. This is the value the boot
// ROM reports for the written flash range.
func (img *Image) SHA256() [sha256.Size]byte {
	return sha256.Sum256(img.Data)
}

// EraseRange returns the inclusive flash range covered by the image when
// written at offset.
func (img *Image) EraseRange(offset uint32) (start, end uint32) {
	return offset, offset + uint32(len(img.Data)) - 1
}

// Chunks splits the image into write units of at most size bytes starting at
// offset. The last chunk may be shorter. Chunk data aliases img.Data.
func (img *Image) Chunks(offset uint32, size int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}

	chunks := make([]Chunk, 0, (len(img.Data)+size-1)/size)
	for pos := 0; pos < len(img.Data); pos += size {
		end := pos + size
		if end > len(img.Data) {
			end = len(img.Data)
		}
		chunks = append(chunks, Chunk{
			Addr: offset + uint32(pos),
			Data: img.Data[pos:end],
		})
	}
	return chunks
}
