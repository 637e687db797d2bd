package protocol

import (
	"encoding/binary"
	"hash/crc32"
)

// crcTable is the CRC-32/ISO-HDLC table (reflected 0xEDB88320, init and xorout
// 0xFFFFFFFF) shared read-only by every checked response.
var crcTable = crc32.MakeTable(crc32.IEEE)

// Checksum8 computes the 8-bit wraparound sum used in the command header.
//
// The checksum covers the length field and the payload, i.e. every frame
// byte from offset 2 to the end.
func Checksum8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// CRC32 computes the CRC-32/ISO-HDLC checksum of data.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// AppendCRC32 appends the little-endian CRC32 of data to data.
// Useful when emulating a device that sends checked responses.
func AppendCRC32(data []byte) []byte {
	return binary.LittleEndian.AppendUint32(data, CRC32(data))
}
