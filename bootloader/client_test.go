package bootloader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/moffa90/go-bflb/protocol"
)

// MockStream replays scripted device bytes and records what the host writes.
type MockStream struct {
	reader   *bytes.Reader
	writeBuf bytes.Buffer
	readErr  error
	writeErr error
	maxWrite int
}

func NewMockStream(reply ...[]byte) *MockStream {
	return &MockStream{reader: bytes.NewReader(bytes.Join(reply, nil))}
}

func (m *MockStream) Read(p []byte) (int, error) {
	if m.reader.Len() == 0 && m.readErr != nil {
		return 0, m.readErr
	}
	return m.reader.Read(p)
}

func (m *MockStream) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	if m.maxWrite > 0 && len(p) > m.maxWrite {
		p = p[:m.maxWrite]
	}
	return m.writeBuf.Write(p)
}

// Remaining returns the number of scripted bytes not yet consumed.
func (m *MockStream) Remaining() int {
	return m.reader.Len()
}

func okReply(data []byte) []byte {
	out := []byte{'O', 'K', 0, 0}
	binary.LittleEndian.PutUint16(out[2:], uint16(len(data)))
	return append(out, data...)
}

func failReply(code uint16) []byte {
	out := []byte{'F', 'L', 0, 0}
	binary.LittleEndian.PutUint16(out[2:], code)
	return out
}

// Mock logger for testing
type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.debugMsgs = append(l.debugMsgs, msg)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errorMsgs = append(l.errorMsgs, msg)
}

// allShapes issues one command of every response shape.
var allShapes = []struct {
	name string
	call func(ctx context.Context, c *Client) error
}{
	{"unit", func(ctx context.Context, c *Client) error { return c.ClockSet(ctx, protocol.DefaultClockSet()) }},
	{"bytes", func(ctx context.Context, c *Client) error { _, err := c.FlashReadJedecID(ctx); return err }},
	{"text", func(ctx context.Context, c *Client) error { _, err := c.GetChipID(ctx); return err }},
	{"boot info", func(ctx context.Context, c *Client) error { _, err := c.GetBootInfo(ctx); return err }},
	{"digest", func(ctx context.Context, c *Client) error { _, err := c.FlashXipReadSha(ctx, 0, 16); return err }},
	{"crc32", func(ctx context.Context, c *Client) error { _, err := c.EfuseReadMac(ctx); return err }},
}

func TestSendDeviceErrorForEveryShape(t *testing.T) {
	for _, shape := range allShapes {
		t.Run(shape.name, func(t *testing.T) {
			stream := NewMockStream(failReply(0x1234), []byte("trailing"))
			c := NewClient(stream)

			err := shape.call(context.Background(), c)
			if !errors.Is(err, protocol.ErrDevice) {
				t.Fatalf("error = %v, want kind %s", err, protocol.KindDevice)
			}

			code, ok := protocol.DeviceCode(err)
			if !ok || code != 0x1234 {
				t.Errorf("DeviceCode() = (0x%04X, %v), want (0x1234, true)", code, ok)
			}
			if stream.Remaining() != len("trailing") {
				t.Errorf("client consumed %d bytes past the error code", len("trailing")-stream.Remaining())
			}
		})
	}
}

func TestSendUnitStopsAfterAck(t *testing.T) {
	stream := NewMockStream([]byte("OK"), []byte{0x05, 0x00, 0xAA})
	c := NewClient(stream)

	if err := c.FlashErase(context.Background(), 0x2000, 0x8D3F); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stream.Remaining() != 3 {
		t.Errorf("remaining = %d, want 3: unit response must not read a length", stream.Remaining())
	}
}

func TestSendWritesEncodedFrame(t *testing.T) {
	stream := NewMockStream([]byte("OK"))
	c := NewClient(stream)

	if err := c.ClockSet(context.Background(), protocol.DefaultClockSet()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []byte{0x22, 0xCC, 0x08, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0xC2, 0x01, 0x00}
	if !bytes.Equal(stream.writeBuf.Bytes(), want) {
		t.Errorf("wrote % X, want % X", stream.writeBuf.Bytes(), want)
	}
}

func TestSendDecodesPayload(t *testing.T) {
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		c := NewClient(NewMockStream(okReply([]byte("CHIPWB03A00_BL"))))
		got, err := c.GetChipID(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "CHIPWB03A00_BL" {
			t.Errorf("GetChipID() = %q", got)
		}
	})

	t.Run("boot info", func(t *testing.T) {
		raw := make([]byte, 24)
		copy(raw[12:18], []byte{6, 5, 4, 3, 2, 1})
		c := NewClient(NewMockStream(okReply(raw)))

		info, err := c.GetBootInfo(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.ChipID != [6]byte{1, 2, 3, 4, 5, 6} {
			t.Errorf("ChipID = % X", info.ChipID)
		}
	})

	t.Run("crc32 checked mac", func(t *testing.T) {
		mac := []byte{0xB4, 0x0E, 0xCF, 0x35, 0xAF, 0xFB}
		c := NewClient(NewMockStream(okReply(protocol.AppendCRC32(append([]byte(nil), mac...)))))

		got, err := c.EfuseReadMac(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(got, mac) {
			t.Errorf("EfuseReadMac() = % X, want % X", got, mac)
		}
	})

	t.Run("crc32 mismatch", func(t *testing.T) {
		body := protocol.AppendCRC32([]byte{1, 2, 3, 4, 5, 6})
		body[len(body)-1] ^= 0x80
		c := NewClient(NewMockStream(okReply(body)))

		if _, err := c.EfuseReadMac(ctx); !errors.Is(err, protocol.ErrChecksumMismatch) {
			t.Errorf("error = %v, want kind %s", err, protocol.KindChecksum)
		}
	})

	t.Run("zero length payload", func(t *testing.T) {
		c := NewClient(NewMockStream(okReply(nil)))
		got, err := c.LogRead(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("LogRead() = %q, want empty", got)
		}
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		c := NewClient(NewMockStream(okReply([]byte{0xFF, 0xFE})))
		if _, err := c.LogRead(ctx); !errors.Is(err, protocol.ErrTextDecode) {
			t.Errorf("error = %v, want kind %s", err, protocol.KindTextDecode)
		}
	})

	t.Run("digest of wrong size", func(t *testing.T) {
		c := NewClient(NewMockStream(okReply(make([]byte, 20))))
		if _, err := c.FlashXipReadSha(ctx, 0, 16); !errors.Is(err, protocol.ErrCustom) {
			t.Errorf("error = %v, want kind %s", err, protocol.KindCustom)
		}
	})
}

func TestSendProtocolViolations(t *testing.T) {
	tests := []struct {
		name  string
		reply []byte
	}{
		{name: "no reply", reply: nil},
		{name: "half ack", reply: []byte("O")},
		{name: "malformed ack", reply: []byte("XY")},
		{name: "truncated error code", reply: []byte{'F', 'L', 0x34}},
		{name: "truncated length", reply: []byte{'O', 'K', 0x10}},
		{name: "truncated payload", reply: []byte{'O', 'K', 0x10, 0x00, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(NewMockStream(tt.reply))

			_, err := c.FlashReadJedecID(context.Background())
			if !errors.Is(err, protocol.ErrProtocolViolation) {
				t.Fatalf("error = %v, want kind %s", err, protocol.KindProtocolViolation)
			}
		})
	}
}

func TestSendMalformedAckCarriesBytes(t *testing.T) {
	c := NewClient(NewMockStream([]byte("XY")))

	err := c.Reset(context.Background())

	var perr *protocol.Error
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *protocol.Error", err)
	}
	if !bytes.Equal(perr.Data, []byte("XY")) {
		t.Errorf("Data = % X, want 58 59", perr.Data)
	}
}

func TestSendReadDeadline(t *testing.T) {
	stream := NewMockStream([]byte("O"))
	stream.readErr = os.ErrDeadlineExceeded
	c := NewClient(stream)

	err := c.Reset(context.Background())
	if !errors.Is(err, protocol.ErrProtocolViolation) {
		t.Errorf("error = %v, want kind %s", err, protocol.KindProtocolViolation)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("error = %v, want os.ErrDeadlineExceeded in chain", err)
	}
}

func TestSendTransportErrors(t *testing.T) {
	t.Run("write error", func(t *testing.T) {
		stream := NewMockStream()
		stream.writeErr = io.ErrClosedPipe
		c := NewClient(stream)

		err := c.Reset(context.Background())
		if !errors.Is(err, protocol.ErrIO) {
			t.Errorf("error = %v, want kind %s", err, protocol.KindIO)
		}
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Errorf("error = %v, want io.ErrClosedPipe in chain", err)
		}
	})

	t.Run("short write", func(t *testing.T) {
		stream := NewMockStream([]byte("OK"))
		stream.maxWrite = 3
		c := NewClient(stream)

		err := c.FlashErase(context.Background(), 0, 0xFFF)
		if !errors.Is(err, protocol.ErrIO) {
			t.Errorf("error = %v, want kind %s", err, protocol.KindIO)
		}
		if stream.Remaining() != 2 {
			t.Error("ack must not be read after a short write")
		}
	})

	t.Run("read error", func(t *testing.T) {
		stream := NewMockStream()
		stream.readErr = errors.New("usb disconnected")
		c := NewClient(stream)

		if err := c.Reset(context.Background()); !errors.Is(err, protocol.ErrIO) {
			t.Errorf("error = %v, want kind %s", err, protocol.KindIO)
		}
	})
}

func TestSendCancelledContext(t *testing.T) {
	stream := NewMockStream([]byte("OK"))
	c := NewClient(stream)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Reset(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if stream.writeBuf.Len() != 0 {
		t.Error("nothing should be written after cancellation")
	}
}

func TestSendOversizedPayload(t *testing.T) {
	stream := NewMockStream([]byte("OK"))
	c := NewClient(stream)

	err := c.FlashWrite(context.Background(), 0, make([]byte, protocol.MaxPayloadSize))
	if !errors.Is(err, protocol.ErrCustom) {
		t.Errorf("error = %v, want kind %s", err, protocol.KindCustom)
	}
	if stream.writeBuf.Len() != 0 {
		t.Error("oversized frame must not be written")
	}
}

func encodeFrame(t *testing.T, cmd protocol.Command) []byte {
	t.Helper()

	frame, err := protocol.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	return frame
}

func TestCallRaw(t *testing.T) {
	ctx := context.Background()
	frame := encodeFrame(t, protocol.FlashRead{StartAddr: 0, Len: 4})

	stream := NewMockStream(okReply([]byte{1, 2, 3, 4}))
	c := NewClient(stream)

	got, err := c.CallRaw(ctx, frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("CallRaw() = % X", got)
	}
	if !bytes.Equal(stream.writeBuf.Bytes(), frame) {
		t.Errorf("wrote % X, want % X", stream.writeBuf.Bytes(), frame)
	}

	c = NewClient(NewMockStream(failReply(protocol.CodeCmdLen)))
	if _, err := c.CallRaw(ctx, frame); !errors.Is(err, protocol.ErrDevice) {
		t.Errorf("error = %v, want kind %s", err, protocol.KindDevice)
	}
}

func TestCallRawNoResponse(t *testing.T) {
	stream := NewMockStream([]byte("OK"), []byte{0x02, 0x00})
	c := NewClient(stream)

	if err := c.CallRawNoResponse(context.Background(), encodeFrame(t, protocol.Reset{})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stream.Remaining() != 2 {
		t.Errorf("remaining = %d, want 2", stream.Remaining())
	}
}

// flushingStream hands out one byte per read and replaces its input with
// after when the input buffer is reset.
type flushingStream struct {
	*MockStream
	after    []byte
	flushes  int
	flushErr error
}

func (f *flushingStream) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return f.MockStream.Read(p)
}

func (f *flushingStream) ResetInputBuffer() error {
	f.flushes++
	if f.flushErr != nil {
		return f.flushErr
	}
	f.reader = bytes.NewReader(f.after)
	return nil
}

func TestSyncDropsSplitReply(t *testing.T) {
	ctx := context.Background()
	stream := &flushingStream{
		MockStream: NewMockStream([]byte("OK")),
		after:      okReply([]byte("CHIP")),
	}
	c := NewClient(stream)

	res, err := c.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() unexpected error: %v", err)
	}
	if !bytes.Equal(res.Raw, []byte("O")) || res.Synced {
		t.Errorf("SyncResult = %+v, want partial reply", res)
	}
	if stream.flushes != 1 {
		t.Errorf("flushes = %d, want 1", stream.flushes)
	}

	chip, err := c.GetChipID(ctx)
	if err != nil {
		t.Fatalf("GetChipID() after split sync reply: %v", err)
	}
	if chip != "CHIP" {
		t.Errorf("GetChipID() = %q, want %q", chip, "CHIP")
	}
}

func TestSyncFlushError(t *testing.T) {
	stream := &flushingStream{
		MockStream: NewMockStream([]byte("OK")),
		flushErr:   io.ErrClosedPipe,
	}

	_, err := NewClient(stream).Sync(context.Background())
	if !errors.Is(err, protocol.ErrIO) || !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("error = %v, want kind %s wrapping %v", err, protocol.KindIO, io.ErrClosedPipe)
	}
}

func TestSync(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		reply      []byte
		readErr    error
		wantBytes  int
		wantSynced bool
		wantErr    bool
	}{
		{
			name:       "synced at default baud",
			reply:      []byte("OK"),
			wantBytes:  69,
			wantSynced: true,
		},
		{
			name:       "noise before ack",
			reply:      []byte{0x00, 0x55, 'O', 'K'},
			wantBytes:  69,
			wantSynced: true,
		},
		{
			name:      "no reply",
			readErr:   os.ErrDeadlineExceeded,
			wantBytes: 69,
		},
		{
			name:      "unexpected reply",
			reply:     []byte("FL"),
			wantBytes: 69,
		},
		{
			name:       "scaled by baud rate",
			opts:       []Option{WithBaudRate(2000000)},
			reply:      []byte("OK"),
			wantBytes:  1200,
			wantSynced: true,
		},
		{
			name:      "transport failure",
			readErr:   io.ErrClosedPipe,
			wantBytes: 69,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := NewMockStream(tt.reply)
			stream.readErr = tt.readErr
			c := NewClient(stream, tt.opts...)

			res, err := c.Sync(context.Background())

			sent := stream.writeBuf.Bytes()
			if len(sent) != tt.wantBytes {
				t.Errorf("sent %d sync bytes, want %d", len(sent), tt.wantBytes)
			}
			if len(bytes.Trim(sent, "\x55")) != 0 {
				t.Error("preamble must consist of 0x55 bytes")
			}

			if tt.wantErr {
				if !errors.Is(err, protocol.ErrIO) {
					t.Errorf("error = %v, want kind %s", err, protocol.KindIO)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Synced != tt.wantSynced {
				t.Errorf("Synced = %v, want %v", res.Synced, tt.wantSynced)
			}
			if !bytes.Equal(res.Raw, tt.reply) {
				t.Errorf("Raw = % X, want % X", res.Raw, tt.reply)
			}
		})
	}
}

func TestClientLogsFrames(t *testing.T) {
	logger := &MockLogger{}
	c := NewClient(NewMockStream(failReply(protocol.CodeFlashErase)), WithLogger(logger))

	_ = c.FlashErase(context.Background(), 0, 0xFFF)

	if len(logger.debugMsgs) == 0 {
		t.Error("expected debug messages for the frame")
	}
	if len(logger.errorMsgs) != 1 {
		t.Errorf("got %d error messages, want 1", len(logger.errorMsgs))
	}
}

func TestReadWritePrimitives(t *testing.T) {
	stream := NewMockStream([]byte{0x34, 0x12, 0xAA})
	c := NewClient(stream)

	v, err := c.ReadU16()
	if err != nil || v != 0x1234 {
		t.Errorf("ReadU16() = (0x%04X, %v), want 0x1234", v, err)
	}

	if _, err := c.ReadBytes(2); !errors.Is(err, protocol.ErrProtocolViolation) {
		t.Errorf("ReadBytes() error = %v, want short read", err)
	}

	if err := c.WriteBytes([]byte{1, 2}); err != nil {
		t.Errorf("WriteBytes() unexpected error: %v", err)
	}
}

func TestNewClientPanicsOnNilDevice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil device")
		}
	}()
	NewClient(nil)
}
