package bootloader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/moffa90/go-bflb/protocol"
)

// Client performs request/response round trips with the boot ROM over a
// byte stream.
//
// A Client exclusively owns its stream for the session and is not safe for
// concurrent use: one round trip completes before the next one starts.
// Timeouts are enforced by the stream itself. A timeout in the middle of a
// frame leaves the stream out of step; call Sync before issuing more commands.
type Client struct {
	rw     io.ReadWriter
	config Config
}

// SyncResult is the outcome of the sync preamble.
type SyncResult struct {
	// Raw is the reply read after the preamble
	Raw []byte

	// Synced reports whether the reply ended with "OK"
	Synced bool
}

// NewClient creates a Client talking over rw.
//
// Example:
//
//	port, _ := serialport.Open("/dev/ttyUSB0", serialport.Config{BaudRate: 115200})
//	c := bootloader.NewClient(port, bootloader.WithLogger(logger))
//	info, err := c.GetBootInfo(ctx)
func NewClient(rw io.ReadWriter, opts ...Option) *Client {
	if rw == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{rw: rw, config: cfg}
}

// Send encodes req, performs one round trip and decodes the response.
//
// The round trip is:
//  1. Write the encoded frame
//  2. Read the 2-byte ack; "FL" is followed by a 16-bit device error code
//  3. If the response has a known size of zero, stop
//  4. Otherwise read the 16-bit payload length and the payload
//
// ctx is only checked before the frame is written.
func Send[R any](ctx context.Context, c *Client, req protocol.Request[R]) (R, error) {
	var zero R
	op := protocol.CommandName(req.CommandID())

	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	frame, err := protocol.Encode(req)
	if err != nil {
		return zero, err
	}

	if err := c.roundTrip(op, frame); err != nil {
		return zero, err
	}

	dec := req.Response()
	var payload []byte
	if n, known := dec.SizeHint(); !known || n != 0 {
		payload, err = c.readPayload(op)
		if err != nil {
			return zero, err
		}
	}

	resp, err := dec.Decode(payload)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

// CallRawNoResponse writes a pre-encoded frame and reads the ack only.
func (c *Client) CallRawNoResponse(ctx context.Context, frame []byte) error {
	op := rawOp(frame)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.roundTrip(op, frame)
}

// CallRaw writes a pre-encoded frame, reads the ack and returns the
// length-prefixed payload that follows it.
func (c *Client) CallRaw(ctx context.Context, frame []byte) ([]byte, error) {
	op := rawOp(frame)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.roundTrip(op, frame); err != nil {
		return nil, err
	}
	return c.readPayload(op)
}

func rawOp(frame []byte) string {
	if len(frame) == 0 {
		return "raw command"
	}
	return protocol.CommandName(frame[0])
}

// Sync writes the baud-rate detection preamble and reads the reply.
//
// The reply is informational: a missing "OK" is reported through
// SyncResult.Synced, not as an error. A read timeout yields Synced == false.
// If the stream has a ResetInputBuffer method, unread input is discarded
// after the reply is read.
func (c *Client) Sync(ctx context.Context) (*SyncResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	n := protocol.SyncLength(c.config.BaudRate)
	c.logDebug("sync", "baud", c.config.BaudRate, "bytes", n)

	if err := c.write("sync", bytes.Repeat([]byte{protocol.SyncByte}, n)); err != nil {
		return nil, err
	}

	buf := make([]byte, protocol.SyncReplyBufferSize)
	got, err := c.rw.Read(buf)
	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) && !errors.Is(err, io.EOF) {
		return nil, &protocol.Error{Kind: protocol.KindIO, Op: "sync", Err: err}
	}

	res := &SyncResult{Raw: buf[:got]}
	res.Synced = bytes.HasSuffix(res.Raw, protocol.AckOK[:])
	c.logDebug("sync reply", "raw", fmt.Sprintf("% X", res.Raw), "synced", res.Synced)

	// A reply split across reads would otherwise leave bytes in front of the
	// next ack.
	if f, ok := c.rw.(inputFlusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			return nil, &protocol.Error{Kind: protocol.KindIO, Op: "sync", Msg: "reset input buffer", Err: err}
		}
	}

	return res, nil
}

// inputFlusher is implemented by streams that can drop unread input, such as
// serialport.Port.
type inputFlusher interface {
	ResetInputBuffer() error
}

// ReadBytes reads exactly n bytes from the stream.
func (c *Client) ReadBytes(n int) ([]byte, error) {
	return c.read("read", n)
}

// WriteBytes writes all of b to the stream.
func (c *Client) WriteBytes(b []byte) error {
	return c.write("write", b)
}

// ReadU16 reads a little-endian 16-bit value.
func (c *Client) ReadU16() (uint16, error) {
	return c.readU16("read")
}

func (c *Client) roundTrip(op string, frame []byte) error {
	c.logDebug("tx", "op", op, "header", fmt.Sprintf("% X", frame[:min(len(frame), protocol.HeaderSize)]), "bytes", len(frame))

	if err := c.write(op, frame); err != nil {
		return err
	}
	return c.readAck(op)
}

func (c *Client) readAck(op string) error {
	ack, err := c.read(op, protocol.AckSize)
	if err != nil {
		return err
	}

	switch {
	case bytes.Equal(ack, protocol.AckOK[:]):
		return nil
	case bytes.Equal(ack, protocol.AckFail[:]):
		code, err := c.readU16(op)
		if err != nil {
			return err
		}
		c.logError("device error", "op", op, "code", fmt.Sprintf("0x%04X", code), "name", protocol.CodeName(code))
		return protocol.NewDeviceError(op, code)
	default:
		return &protocol.Error{
			Kind: protocol.KindProtocolViolation,
			Op:   op,
			Data: ack,
			Msg:  "malformed ack",
		}
	}
}

func (c *Client) readPayload(op string) ([]byte, error) {
	n, err := c.readU16(op)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	payload, err := c.read(op, int(n))
	if err != nil {
		return nil, err
	}
	c.logDebug("rx", "op", op, "bytes", len(payload))
	return payload, nil
}

func (c *Client) readU16(op string) (uint16, error) {
	b, err := c.read(op, protocol.LengthSize)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// read reads exactly n bytes. Running out of input, or a read deadline
// expiring, before n bytes arrive is a short read.
func (c *Client) read(op string, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(c.rw, buf)
	if err == nil {
		return buf, nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrDeadlineExceeded) {
		return nil, &protocol.Error{
			Kind: protocol.KindProtocolViolation,
			Op:   op,
			Msg:  fmt.Sprintf("short read: got %d of %d bytes", got, n),
			Err:  err,
		}
	}
	return nil, &protocol.Error{Kind: protocol.KindIO, Op: op, Err: err}
}

func (c *Client) write(op string, b []byte) error {
	n, err := c.rw.Write(b)
	if err != nil {
		return &protocol.Error{Kind: protocol.KindIO, Op: op, Err: err}
	}
	if n != len(b) {
		return &protocol.Error{
			Kind: protocol.KindIO,
			Op:   op,
			Msg:  fmt.Sprintf("short write: wrote %d of %d bytes", n, len(b)),
		}
	}
	return nil
}

func (c *Client) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logError(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Error(msg, keysAndValues...)
	}
}
