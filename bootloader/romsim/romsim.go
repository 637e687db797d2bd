// Package romsim emulates the boot ROM of a Bouffalo Lab chip behind an
// in-memory byte stream.
//
// A Device implements io.ReadWriter: frames written to it are decoded and
// answered immediately, and replies are read back in order. It is used to
// exercise the bootloader client and programmer without hardware:
//
//	dev := romsim.New(romsim.WithFlashSize(1 << 20))
//	prog := bootloader.New(dev)
//	res, err := prog.Program(ctx, img)
package romsim

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"sync"

	"github.com/moffa90/go-bflb/protocol"
)

// Defaults reported by a new Device.
var (
	DefaultBootROMVersion = [4]byte{0x01, 0x00, 0x00, 0x00}
	DefaultChipID         = [protocol.ChipIDSize]byte{0xB4, 0x0E, 0xCF, 0x35, 0xAF, 0xFB}
	DefaultChipName       = "CHIPWB03A00_BL\x00\x00"
	DefaultJedecID        = []byte{0xEF, 0x40, 0x16, 0x00}
	DefaultLog            = "bl616 boot rom\n"
)

// DefaultFlashSize is the flash size of a new Device.
const DefaultFlashSize = 4 << 20

// Device is an emulated boot ROM.
type Device struct {
	mu sync.Mutex

	in  []byte
	out bytes.Buffer

	flash    []byte
	xip      bool
	resets   int
	syncs    int
	commands []byte

	bootVersion [4]byte
	chipID      [protocol.ChipIDSize]byte
	chipName    string
	mac         []byte
	jedecID     []byte
	log         []byte

	failures    map[byte]uint16
	corruptMAC  bool
	trailing    []byte
	writeLimit  int
	flipOnWrite bool
}

// Option configures a Device.
type Option func(*Device)

// WithFlashSize sets the emulated flash size.
func WithFlashSize(n int) Option {
	return func(d *Device) {
		d.flash = bytes.Repeat([]byte{0xFF}, n)
	}
}

// WithChipID sets the chip id in display order.
func WithChipID(id [protocol.ChipIDSize]byte) Option {
	return func(d *Device) {
		d.chipID = id
	}
}

// WithLog sets the text returned by Log Read.
func WithLog(log string) Option {
	return func(d *Device) {
		d.log = []byte(log)
	}
}

// WithFailure makes every command with the given id fail with code.
func WithFailure(cmd byte, code uint16) Option {
	return func(d *Device) {
		d.failures[cmd] = code
	}
}

// WithCorruptMAC sends the MAC with an invalid CRC32 trailer.
func WithCorruptMAC() Option {
	return func(d *Device) {
		d.corruptMAC = true
	}
}

// WithTrailingBytes appends extra bytes after every acknowledgement of a
// command without response payload.
func WithTrailingBytes(b []byte) Option {
	return func(d *Device) {
		d.trailing = append([]byte(nil), b...)
	}
}

// WithShortWrites makes Write accept at most n bytes per call.
func WithShortWrites(n int) Option {
	return func(d *Device) {
		d.writeLimit = n
	}
}

// WithBitFlips corrupts the first byte of every Flash Write.
func WithBitFlips() Option {
	return func(d *Device) {
		d.flipOnWrite = true
	}
}

// New creates a Device with erased flash.
func New(opts ...Option) *Device {
	d := &Device{
		flash:       bytes.Repeat([]byte{0xFF}, DefaultFlashSize),
		bootVersion: DefaultBootROMVersion,
		chipID:      DefaultChipID,
		chipName:    DefaultChipName,
		mac:         append([]byte(nil), DefaultChipID[:]...),
		jedecID:     DefaultJedecID,
		log:         []byte(DefaultLog),
		failures:    make(map[byte]uint16),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Write feeds host bytes to the emulated ROM. Complete frames are answered
// before Write returns.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(p)
	if d.writeLimit > 0 && n > d.writeLimit {
		n = d.writeLimit
	}

	d.in = append(d.in, p[:n]...)
	d.process()
	return n, nil
}

// Read returns pending replies. It returns io.EOF when none are pending.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.out.Len() == 0 {
		return 0, io.EOF
	}
	return d.out.Read(p)
}

// Flash returns a copy of n bytes of flash at addr.
func (d *Device) Flash(addr, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]byte(nil), d.flash[addr:addr+n]...)
}

// Commands returns the ids of the commands received so far, in order.
func (d *Device) Commands() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]byte(nil), d.commands...)
}

// Resets returns the number of Reset commands received.
func (d *Device) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.resets
}

// Syncs returns the number of sync preambles received.
func (d *Device) Syncs() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.syncs
}

// Pending returns the number of reply bytes not yet read.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.out.Len()
}

// process consumes every complete frame and sync burst in the input buffer.
func (d *Device) process() {
	for len(d.in) > 0 {
		if d.in[0] == protocol.SyncByte {
			n := 0
			for n < len(d.in) && d.in[n] == protocol.SyncByte {
				n++
			}
			d.in = d.in[n:]
			d.syncs++
			d.out.Write(protocol.AckOK[:])
			continue
		}

		if len(d.in) < protocol.HeaderSize {
			return
		}
		size := protocol.HeaderSize + int(binary.LittleEndian.Uint16(d.in[2:4]))
		if len(d.in) < size {
			return
		}

		frame := d.in[:size]
		d.in = d.in[size:]
		d.handle(frame)
	}
}

func (d *Device) handle(frame []byte) {
	id := frame[0]
	payload := frame[protocol.HeaderSize:]
	d.commands = append(d.commands, id)

	if frame[1] != protocol.Checksum8(frame[2:]) {
		d.fail(protocol.CodeCmdCRC)
		return
	}
	if code, ok := d.failures[id]; ok {
		d.fail(code)
		return
	}

	switch id {
	case protocol.CmdGetBootInfo:
		d.reply(d.bootInfo())
	case protocol.CmdGetChipID:
		d.reply([]byte(d.chipName))
	case protocol.CmdClockSet:
		if len(payload) < 8 {
			d.fail(protocol.CodeCmdLen)
			return
		}
		d.ack()
	case protocol.CmdReset:
		d.resets++
		d.xip = false
		d.ack()
	case protocol.CmdEfuseReadMac:
		body := protocol.AppendCRC32(append([]byte(nil), d.mac...))
		if d.corruptMAC {
			body[len(body)-1] ^= 0xFF
		}
		d.reply(body)
	case protocol.CmdFlashReadJedecID:
		d.reply(d.jedecID)
	case protocol.CmdFlashSetPara:
		if len(payload) < 4 {
			d.fail(protocol.CodeCmdLen)
			return
		}
		d.ack()
	case protocol.CmdFlashErase:
		d.erase(payload)
	case protocol.CmdFlashWrite:
		d.write(payload)
	case protocol.CmdFlashRead:
		d.read(payload)
	case protocol.CmdFlashWriteCheck:
		d.ack()
	case protocol.CmdFlashXipReadStart:
		d.xip = true
		d.ack()
	case protocol.CmdFlashXipReadSha:
		d.sha(payload)
	case protocol.CmdFlashXipReadFinish:
		d.xip = false
		d.ack()
	case protocol.CmdLogRead:
		d.reply(d.log)
	default:
		d.fail(protocol.CodeCmdID)
	}
}

// bootInfo lays out the Get Boot Info payload with the chip id stored in
// reverse order.
func (d *Device) bootInfo() []byte {
	raw := make([]byte, 24)
	copy(raw[0:4], d.bootVersion[:])
	for i := 0; i < protocol.ChipIDSize; i++ {
		raw[12+i] = d.chipID[protocol.ChipIDSize-1-i]
	}
	return raw
}

// addrRange validates a [addr, addr+n) flash access.
func (d *Device) addrRange(addr, n uint32) bool {
	return uint64(addr)+uint64(n) <= uint64(len(d.flash))
}

func (d *Device) erase(payload []byte) {
	if len(payload) != 8 {
		d.fail(protocol.CodeCmdLen)
		return
	}
	start := binary.LittleEndian.Uint32(payload[0:4])
	end := binary.LittleEndian.Uint32(payload[4:8])
	if end < start || !d.addrRange(start, end-start+1) {
		d.fail(protocol.CodeFlashEraseParam)
		return
	}

	for i := start; i <= end; i++ {
		d.flash[i] = 0xFF
	}
	d.ack()
}

// write programs flash; like NOR flash, bits can only be cleared.
func (d *Device) write(payload []byte) {
	if len(payload) < 4 {
		d.fail(protocol.CodeFlashWriteParam)
		return
	}
	addr := binary.LittleEndian.Uint32(payload[0:4])
	data := payload[4:]
	if !d.addrRange(addr, uint32(len(data))) {
		d.fail(protocol.CodeFlashWriteAddr)
		return
	}

	for i, b := range data {
		if d.flipOnWrite && i == 0 {
			b ^= 0x01
		}
		d.flash[int(addr)+i] &= b
	}
	d.ack()
}

func (d *Device) read(payload []byte) {
	if len(payload) != 8 {
		d.fail(protocol.CodeCmdLen)
		return
	}
	addr := binary.LittleEndian.Uint32(payload[0:4])
	n := binary.LittleEndian.Uint32(payload[4:8])
	if n > protocol.MaxPayloadSize || !d.addrRange(addr, n) {
		d.fail(protocol.CodeFlashWriteAddr)
		return
	}
	d.reply(d.flash[addr : addr+n])
}

func (d *Device) sha(payload []byte) {
	if !d.xip {
		d.fail(protocol.CodeCmdSeq)
		return
	}
	if len(payload) != 8 {
		d.fail(protocol.CodeCmdLen)
		return
	}
	addr := binary.LittleEndian.Uint32(payload[0:4])
	n := binary.LittleEndian.Uint32(payload[4:8])
	if !d.addrRange(addr, n) {
		d.fail(protocol.CodeFlashWriteAddr)
		return
	}

	sum := sha256.Sum256(d.flash[addr : addr+n])
	d.reply(sum[:])
}

func (d *Device) ack() {
	d.out.Write(protocol.AckOK[:])
	d.out.Write(d.trailing)
}

func (d *Device) reply(data []byte) {
	d.out.Write(protocol.AckOK[:])
	_ = binary.Write(&d.out, binary.LittleEndian, uint16(len(data)))
	d.out.Write(data)
}

func (d *Device) fail(code uint16) {
	d.out.Write(protocol.AckFail[:])
	_ = binary.Write(&d.out, binary.LittleEndian, code)
}
