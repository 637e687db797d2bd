package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Decoder turns the payload bytes of an "OK" response into a typed value.
//
// SizeHint reports a payload size known in advance. A known size of exactly
// zero tells the transport that no length field or payload follows the ack.
type Decoder[R any] interface {
	Decode(raw []byte) (R, error)
	SizeHint() (n int, known bool)
}

// EmptyResponse decodes the response of commands that only acknowledge.
type EmptyResponse struct{}

// Decode accepts only an empty payload.
func (EmptyResponse) Decode(raw []byte) (struct{}, error) {
	if len(raw) != 0 {
		return struct{}{}, &Error{
			Kind: KindCustom,
			Op:   "decode empty response",
			Msg:  fmt.Sprintf("unexpected %d byte payload", len(raw)),
		}
	}
	return struct{}{}, nil
}

// SizeHint reports an exact size of zero.
func (EmptyResponse) SizeHint() (int, bool) { return 0, true }

// BytesResponse decodes a raw byte payload.
type BytesResponse struct{}

// Decode returns a copy of raw.
func (BytesResponse) Decode(raw []byte) ([]byte, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (BytesResponse) SizeHint() (int, bool) { return 0, false }

// TextResponse decodes a UTF-8 text payload.
type TextResponse struct{}

// Decode validates raw as UTF-8.
func (TextResponse) Decode(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", &Error{
			Kind: KindTextDecode,
			Op:   "decode text response",
			Msg:  fmt.Sprintf("invalid utf-8 in %d byte payload", len(raw)),
		}
	}
	return string(raw), nil
}

func (TextResponse) SizeHint() (int, bool) { return 0, false }

// BootInfoResponse decodes the Get Boot Info payload.
//
// Data format (at least BootInfoResponseSize bytes):
//
//	[VERSION(4)][SIGN(1)][ENCRYPT(1)][RESERVED(6)][CHIP_ID(6), reversed]...
type BootInfoResponse struct{}

// Decode parses a boot info payload. The chip id is stored by the ROM in
// reverse order and is returned in display order.
func (BootInfoResponse) Decode(raw []byte) (*BootInfo, error) {
	if len(raw) < BootInfoResponseSize {
		return nil, &Error{
			Kind: KindCustom,
			Op:   "decode boot info",
			Msg:  fmt.Sprintf("invalid data length: got %d bytes, expected at least %d", len(raw), BootInfoResponseSize),
		}
	}

	info := &BootInfo{
		Sign:    raw[4],
		Encrypt: raw[5],
	}
	copy(info.BootROMVersion[:], raw[0:4])

	chipID := raw[bootInfoChipIDOffset : bootInfoChipIDOffset+ChipIDSize]
	for i := range info.ChipID {
		info.ChipID[i] = chipID[ChipIDSize-1-i]
	}

	return info, nil
}

func (BootInfoResponse) SizeHint() (int, bool) { return 0, false }

// DigestResponse decodes the SHA-256 digest returned by Flash XIP Read SHA.
type DigestResponse struct{}

// Decode requires exactly SHA256Size bytes.
func (DigestResponse) Decode(raw []byte) ([SHA256Size]byte, error) {
	var digest [SHA256Size]byte
	if len(raw) != SHA256Size {
		return digest, &Error{
			Kind: KindCustom,
			Op:   "decode sha256",
			Msg:  fmt.Sprintf("invalid data length: got %d bytes, expected %d", len(raw), SHA256Size),
		}
	}
	copy(digest[:], raw)
	return digest, nil
}

func (DigestResponse) SizeHint() (int, bool) { return 0, false }

// CRC32Response wraps another decoder with a trailing CRC32 check.
//
// Data format:
//
//	[BODY(N)][CRC32_LE(4)]
//
// The CRC32 over BODY is verified before Inner ever sees the bytes.
type CRC32Response[R any] struct {
	Inner Decoder[R]
}

// Decode verifies the trailer and decodes the body with Inner.
func (d CRC32Response[R]) Decode(raw []byte) (Checked[R], error) {
	var out Checked[R]
	if len(raw) < CRC32Size {
		return out, &Error{
			Kind: KindChecksum,
			Op:   "decode crc32 response",
			Msg:  fmt.Sprintf("payload too short: got %d bytes, need at least %d", len(raw), CRC32Size),
		}
	}

	body := raw[:len(raw)-CRC32Size]
	want := binary.LittleEndian.Uint32(raw[len(raw)-CRC32Size:])
	if got := CRC32(body); got != want {
		return out, &Error{
			Kind: KindChecksum,
			Op:   "decode crc32 response",
			Msg:  fmt.Sprintf("computed 0x%08X, trailer 0x%08X", got, want),
		}
	}

	data, err := d.Inner.Decode(body)
	if err != nil {
		return out, err
	}
	out.Data = data
	return out, nil
}

func (d CRC32Response[R]) SizeHint() (int, bool) { return 0, false }
