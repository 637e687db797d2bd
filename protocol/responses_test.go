package protocol

import (
	"bytes"
	"errors"
	"testing"
)

// bootInfoPayload builds a boot info payload with the chip id stored the way
// the ROM sends it.
func bootInfoPayload() []byte {
	return []byte{
		// boot ROM version
		0x01, 0x00, 0x02, 0x06,
		// sign, encrypt
		0x00, 0x01,
		// reserved
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		// chip id, reversed
		0xFB, 0xAF, 0x35, 0xCF, 0x0E, 0xB4,
		// trailing bytes are ignored
		0x00, 0x00,
	}
}

func TestEmptyResponse(t *testing.T) {
	var d EmptyResponse

	n, known := d.SizeHint()
	if !known || n != 0 {
		t.Errorf("SizeHint() = (%d, %v), want (0, true)", n, known)
	}

	if _, err := d.Decode(nil); err != nil {
		t.Errorf("Decode(nil) unexpected error: %v", err)
	}

	_, err := d.Decode([]byte{0x01})
	if !errors.Is(err, ErrCustom) {
		t.Errorf("Decode(non-empty) error = %v, want kind %s", err, KindCustom)
	}
}

func TestBytesResponse(t *testing.T) {
	raw := []byte{0xC8, 0x60, 0x18}
	got, err := BytesResponse{}.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("Decode() = % X, want % X", got, raw)
	}

	raw[0] = 0x00
	if got[0] != 0xC8 {
		t.Error("Decode() must return a copy of the input")
	}

	if _, known := (BytesResponse{}).SizeHint(); known {
		t.Error("SizeHint() known = true, want false")
	}
}

func TestTextResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		want    string
		wantErr bool
	}{
		{
			name: "chip id string",
			raw:  []byte("CHIPWB03A00_BL\x00\x00"),
			want: "CHIPWB03A00_BL\x00\x00",
		},
		{
			name: "empty",
			raw:  nil,
			want: "",
		},
		{
			name:    "invalid utf-8",
			raw:     []byte{0x41, 0xFF, 0xFE},
			wantErr: true,
		},
		{
			name:    "truncated multibyte sequence",
			raw:     []byte{0xE2, 0x82},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TextResponse{}.Decode(tt.raw)

			if tt.wantErr {
				if !errors.Is(err, ErrTextDecode) {
					t.Fatalf("error = %v, want kind %s", err, KindTextDecode)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBootInfoResponse(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    *BootInfo
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid response",
			data: bootInfoPayload(),
			want: &BootInfo{
				BootROMVersion: [4]byte{0x01, 0x00, 0x02, 0x06},
				Sign:           0x00,
				Encrypt:        0x01,
				ChipID:         [6]byte{0xB4, 0x0E, 0xCF, 0x35, 0xAF, 0xFB},
			},
		},
		{
			name: "minimum length",
			data: bootInfoPayload()[:BootInfoResponseSize],
			want: &BootInfo{
				BootROMVersion: [4]byte{0x01, 0x00, 0x02, 0x06},
				Encrypt:        0x01,
				ChipID:         [6]byte{0xB4, 0x0E, 0xCF, 0x35, 0xAF, 0xFB},
			},
		},
		{
			name:    "data too short",
			data:    bootInfoPayload()[:17],
			wantErr: true,
			errMsg:  "invalid data length",
		},
		{
			name:    "empty",
			data:    nil,
			wantErr: true,
			errMsg:  "invalid data length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := BootInfoResponse{}.Decode(tt.data)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !bytes.Contains([]byte(err.Error()), []byte(tt.errMsg)) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *info != *tt.want {
				t.Errorf("Decode() = %+v, want %+v", info, tt.want)
			}
		})
	}
}

func TestBootInfoChipIDIsReversed(t *testing.T) {
	data := make([]byte, BootInfoResponseSize)
	for i := range data {
		data[i] = byte(i)
	}

	info, err := BootInfoResponse{}.Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < ChipIDSize; i++ {
		if info.ChipID[i] != data[17-i] {
			t.Errorf("ChipID[%d] = 0x%02X, want 0x%02X", i, info.ChipID[i], data[17-i])
		}
	}
}

func TestBootInfoFormatting(t *testing.T) {
	info, err := BootInfoResponse{}.Decode(bootInfoPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := info.Version(); got != "1.0.2.6" {
		t.Errorf("Version() = %q, want %q", got, "1.0.2.6")
	}
	if got := info.ChipIDHex(); got != "b40ecf35affb" {
		t.Errorf("ChipIDHex() = %q, want %q", got, "b40ecf35affb")
	}
	if !bytes.Contains([]byte(info.String()), []byte("chip_id: b40ecf35affb")) {
		t.Errorf("String() = %q, want chip id", info.String())
	}
}

func TestDigestResponse(t *testing.T) {
	raw := make([]byte, SHA256Size)
	for i := range raw {
		raw[i] = byte(0xA0 + i)
	}

	digest, err := DigestResponse{}.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(digest[:], raw) {
		t.Errorf("Decode() = % X, want % X", digest, raw)
	}

	for _, n := range []int{0, 31, 33} {
		if _, err := (DigestResponse{}).Decode(make([]byte, n)); !errors.Is(err, ErrCustom) {
			t.Errorf("Decode(%d bytes) error = %v, want kind %s", n, err, KindCustom)
		}
	}
}

func TestCRC32ResponseRoundTrip(t *testing.T) {
	mac := []byte{0xB4, 0x0E, 0xCF, 0x35, 0xAF, 0xFB, 0x00, 0x00}
	raw := AppendCRC32(append([]byte(nil), mac...))

	d := CRC32Response[[]byte]{Inner: BytesResponse{}}
	got, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got.Value(), mac) {
		t.Errorf("Value() = % X, want % X", got.Value(), mac)
	}
	if !bytes.Equal(got.Data, mac) {
		t.Errorf("Data = % X, want % X", got.Data, mac)
	}
}

func TestCRC32ResponseEmptyBody(t *testing.T) {
	raw := AppendCRC32(nil)

	got, err := CRC32Response[[]byte]{Inner: BytesResponse{}}.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Value()) != 0 {
		t.Errorf("Value() = % X, want empty", got.Value())
	}
}

func TestCRC32ResponseTrailerBitFlips(t *testing.T) {
	body := []byte("efuse-mac")
	raw := AppendCRC32(append([]byte(nil), body...))
	d := CRC32Response[[]byte]{Inner: BytesResponse{}}

	for i := len(body); i < len(raw); i++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), raw...)
			corrupt[i] ^= 1 << bit

			_, err := d.Decode(corrupt)
			if !errors.Is(err, ErrChecksumMismatch) {
				t.Fatalf("byte %d bit %d: error = %v, want kind %s", i, bit, err, KindChecksum)
			}
		}
	}
}

// recordingDecoder records whether Decode was called.
type recordingDecoder struct {
	called *bool
}

func (r recordingDecoder) Decode(raw []byte) ([]byte, error) {
	*r.called = true
	return raw, nil
}

func (recordingDecoder) SizeHint() (int, bool) { return 0, false }

func TestCRC32ResponseShortInputNeverDecodes(t *testing.T) {
	for n := 0; n < CRC32Size; n++ {
		called := false
		d := CRC32Response[[]byte]{Inner: recordingDecoder{called: &called}}

		_, err := d.Decode(make([]byte, n))
		if err == nil {
			t.Fatalf("Decode(%d bytes): expected error, got nil", n)
		}
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("Decode(%d bytes) error = %v, want kind %s", n, err, KindChecksum)
		}
		if called {
			t.Errorf("Decode(%d bytes) invoked the inner decoder", n)
		}
	}
}

func TestCRC32ResponseChecksBeforeInnerDecode(t *testing.T) {
	called := false
	d := CRC32Response[[]byte]{Inner: recordingDecoder{called: &called}}

	raw := AppendCRC32([]byte{0x01, 0x02})
	raw[0] ^= 0xFF

	if _, err := d.Decode(raw); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("error = %v, want kind %s", err, KindChecksum)
	}
	if called {
		t.Error("inner decoder ran before checksum verification")
	}
}

func TestCRC32ResponseWrapsText(t *testing.T) {
	raw := AppendCRC32([]byte{0xFF, 0xFE})

	_, err := CRC32Response[string]{Inner: TextResponse{}}.Decode(raw)
	if !errors.Is(err, ErrTextDecode) {
		t.Errorf("error = %v, want kind %s", err, KindTextDecode)
	}
}

func TestRequestResponseShapes(t *testing.T) {
	if n, known := (ClockSet{}).Response().SizeHint(); !known || n != 0 {
		t.Errorf("ClockSet SizeHint() = (%d, %v), want (0, true)", n, known)
	}
	if _, known := (EfuseReadMac{}).Response().SizeHint(); known {
		t.Error("EfuseReadMac SizeHint() known = true, want false")
	}

	raw := AppendCRC32([]byte{1, 2, 3, 4, 5, 6})
	mac, err := EfuseReadMac{}.Response().Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(mac.Value(), []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("mac = % X", mac.Value())
	}
}

func BenchmarkCRC32ResponseDecode(b *testing.B) {
	raw := AppendCRC32(make([]byte, 256))
	d := CRC32Response[[]byte]{Inner: BytesResponse{}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Decode(raw)
	}
}
