package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies a protocol failure.
type Kind uint8

const (
	// KindIO is a failure of the underlying byte stream
	KindIO Kind = iota + 1

	// KindProtocolViolation is a malformed ack or a short read of a fixed-size field
	KindProtocolViolation

	// KindDevice is an "FL" acknowledgement carrying a device error code
	KindDevice

	// KindChecksum is a failed CRC32 check or a checked response too short to verify
	KindChecksum

	// KindTextDecode is a text response that is not valid UTF-8
	KindTextDecode

	// KindCustom covers contextual failures such as an unexpected payload length
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindProtocolViolation:
		return "protocol violation"
	case KindDevice:
		return "device error"
	case KindChecksum:
		return "checksum mismatch"
	case KindTextDecode:
		return "text decode"
	case KindCustom:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Sentinel errors, one per Kind. Use errors.Is to classify a returned error:
//
//	if errors.Is(err, protocol.ErrChecksumMismatch) { ... }
var (
	ErrIO                = &Error{Kind: KindIO}
	ErrProtocolViolation = &Error{Kind: KindProtocolViolation}
	ErrDevice            = &Error{Kind: KindDevice}
	ErrChecksumMismatch  = &Error{Kind: KindChecksum}
	ErrTextDecode        = &Error{Kind: KindTextDecode}
	ErrCustom            = &Error{Kind: KindCustom}
)

// Error is the error type returned by every layer of the client.
type Error struct {
	// Kind classifies the failure
	Kind Kind

	// Op names the operation that failed (e.g. "get boot info", "read ack")
	Op string

	// Code is the device error code (KindDevice only)
	Code uint16

	// Data holds offending bytes, e.g. a malformed ack
	Data []byte

	// Msg is additional context
	Msg string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch e.Kind {
	case KindDevice:
		msg = fmt.Sprintf("device error: %s (0x%04X)", CodeName(e.Code), e.Code)
	case KindProtocolViolation:
		if e.Data != nil {
			msg = fmt.Sprintf("%s: unexpected bytes % X", msg, e.Data)
		}
	}
	if e.Msg != "" {
		msg = msg + ": " + e.Msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil && t.Code == 0
}

// NewDeviceError returns the error for an "FL" acknowledgement.
func NewDeviceError(op string, code uint16) *Error {
	return &Error{Kind: KindDevice, Op: op, Code: code}
}

// IsDeviceError returns true if err carries a device error code.
func IsDeviceError(err error) bool {
	_, ok := DeviceCode(err)
	return ok
}

// DeviceCode extracts the device error code from err.
func DeviceCode(err error) (uint16, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindDevice {
		return e.Code, true
	}
	return 0, false
}

// Device error codes reported by the boot ROM and eflash loader.
const (
	CodeSuccess                 = 0x0000
	CodeFlashInit               = 0x0001
	CodeFlashEraseParam         = 0x0002
	CodeFlashErase              = 0x0003
	CodeFlashWriteParam         = 0x0004
	CodeFlashWriteAddr          = 0x0005
	CodeFlashWrite              = 0x0006
	CodeFlashBootParam          = 0x0007
	CodeFlashSetParam           = 0x0008
	CodeFlashReadStatusReg      = 0x0009
	CodeFlashWriteStatusReg     = 0x000A
	CodeCmdID                   = 0x0101
	CodeCmdLen                  = 0x0102
	CodeCmdCRC                  = 0x0103
	CodeCmdSeq                  = 0x0104
	CodeImgBootHeaderLen        = 0x0201
	CodeImgBootHeaderNotLoad    = 0x0202
	CodeImgBootHeaderMagic      = 0x0203
	CodeImgBootHeaderCRC        = 0x0204
	CodeImgBootHeaderEncryptFit = 0x0205
	CodeImgBootHeaderSignFit    = 0x0206
	CodeImgSegmentCount         = 0x0207
	CodeImgAESIVLen             = 0x0208
	CodeImgAESIVCRC             = 0x0209
	CodeImgPKLen                = 0x020A
	CodeImgPKCRC                = 0x020B
	CodeImgPKHash               = 0x020C
	CodeImgSignatureLen         = 0x020D
	CodeImgSignatureCRC         = 0x020E
	CodeImgSectionHeaderLen     = 0x020F
	CodeImgSectionHeaderCRC     = 0x0210
	CodeImgSectionHeaderDstAddr = 0x0211
	CodeImgSectionDataLen       = 0x0212
	CodeImgSectionDecrypt       = 0x0213
	CodeImgSectionDataTotalLen  = 0x0214
	CodeImgHash                 = 0x0215
	CodeImgHashLoad             = 0x0216
	CodeImgSignature            = 0x0217
	CodeImgSignatureDecrypt     = 0x0218
	CodeImgAllInvalid           = 0x0219
	CodeIFRateLen               = 0x0301
	CodeIFRatePara              = 0x0302
	CodeIFPasswordError         = 0x0303
	CodeIFPasswordClose         = 0x0304
	CodeFail                    = 0xFFFF
)

var codeNames = map[uint16]string{
	CodeSuccess:                 "success",
	CodeFlashInit:               "flash init error",
	CodeFlashEraseParam:         "flash erase parameter error",
	CodeFlashErase:              "flash erase error",
	CodeFlashWriteParam:         "flash write parameter error",
	CodeFlashWriteAddr:          "flash write address error",
	CodeFlashWrite:              "flash write error",
	CodeFlashBootParam:          "flash boot parameter error",
	CodeFlashSetParam:           "flash set parameter error",
	CodeFlashReadStatusReg:      "flash read status register error",
	CodeFlashWriteStatusReg:     "flash write status register error",
	CodeCmdID:                   "unknown command id",
	CodeCmdLen:                  "command length error",
	CodeCmdCRC:                  "command checksum error",
	CodeCmdSeq:                  "command sequence error",
	CodeImgBootHeaderLen:        "boot header length error",
	CodeImgBootHeaderNotLoad:    "boot header not loaded",
	CodeImgBootHeaderMagic:      "boot header magic error",
	CodeImgBootHeaderCRC:        "boot header crc error",
	CodeImgBootHeaderEncryptFit: "boot header encrypt mismatch",
	CodeImgBootHeaderSignFit:    "boot header sign mismatch",
	CodeImgSegmentCount:         "segment count error",
	CodeImgAESIVLen:             "aes iv length error",
	CodeImgAESIVCRC:             "aes iv crc error",
	CodeImgPKLen:                "public key length error",
	CodeImgPKCRC:                "public key crc error",
	CodeImgPKHash:               "public key hash error",
	CodeImgSignatureLen:         "signature length error",
	CodeImgSignatureCRC:         "signature crc error",
	CodeImgSectionHeaderLen:     "section header length error",
	CodeImgSectionHeaderCRC:     "section header crc error",
	CodeImgSectionHeaderDstAddr: "section header destination error",
	CodeImgSectionDataLen:       "section data length error",
	CodeImgSectionDecrypt:       "section decrypt error",
	CodeImgSectionDataTotalLen:  "section data total length error",
	CodeImgHash:                 "image hash error",
	CodeImgHashLoad:             "image hash load error",
	CodeImgSignature:            "image signature error",
	CodeImgSignatureDecrypt:     "image signature decrypt error",
	CodeImgAllInvalid:           "all images invalid",
	CodeIFRateLen:               "interface rate length error",
	CodeIFRatePara:              "interface rate parameter error",
	CodeIFPasswordError:         "interface password error",
	CodeIFPasswordClose:         "interface password closed",
	CodeFail:                    "fail",
}

// CodeName returns a human-readable name for a device error code.
func CodeName(code uint16) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "unknown error"
}
