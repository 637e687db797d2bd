package bootloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-bflb/firmware"
	"github.com/moffa90/go-bflb/protocol"
)

// DeviceInfo identifies the chip and its attached flash.
type DeviceInfo struct {
	// BootInfo is the boot-ROM version, security flags and chip id
	BootInfo *protocol.BootInfo

	// ChipID is the chip identification string, e.g. "CHIPWB03A00_BL"
	ChipID string

	// MAC is the factory MAC address read from efuse
	MAC []byte

	// JedecID is the manufacturer and device id of the flash
	JedecID []byte
}

// Result summarizes a completed programming run.
type Result struct {
	Device       *DeviceInfo
	Sync         *SyncResult
	BytesWritten int
	Chunks       int
	Digest       [protocol.SHA256Size]byte
	Verified     bool
	Elapsed      time.Duration
}

// Programmer orchestrates flashing an image through the boot ROM.
// It handles the complete sequence including verification and progress tracking.
//
// Programmer is not safe for concurrent use.
type Programmer struct {
	client *Client
	config Config
}

// New creates a new Programmer with the given device and options.
// The device must implement io.ReadWriter for communication with the boot ROM.
//
// Example:
//
//	port, _ := serialport.Open("/dev/ttyUSB0", serialport.Config{BaudRate: 115200})
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithFlashOffset(0x2000),
//	)
func New(device io.ReadWriter, opts ...Option) *Programmer {
	client := NewClient(device, opts...)
	return &Programmer{
		client: client,
		config: client.config,
	}
}

// Client returns the client used for individual commands.
func (p *Programmer) Client() *Client {
	return p.client
}

// Program performs the complete flashing sequence:
//  1. Sync the UART link (unless disabled)
//  2. Identify the chip: boot info, chip id, clock setup, MAC, flash id
//  3. Configure the flash interface
//  4. Erase the flash range covered by the image
//  5. Write the image in chunks with progress tracking
//  6. Confirm the writes and compare the flash SHA-256 with the image
//  7. Reset the chip (unless disabled)
//
// The operation can be cancelled via context between commands.
//
// Example:
//
//	img, _ := firmware.Load("app.bin")
//	res, err := prog.Program(context.Background(), img)
func (p *Programmer) Program(ctx context.Context, img *firmware.Image) (*Result, error) {
	if img == nil || img.Size() == 0 {
		return nil, fmt.Errorf("firmware cannot be empty")
	}
	if uint64(p.config.FlashOffset)+uint64(img.Size()) > 1<<32 {
		return nil, &ImageTooLargeError{Offset: p.config.FlashOffset, Size: img.Size()}
	}

	startTime := time.Now()
	chunks := img.Chunks(p.config.FlashOffset, p.config.ChunkSize)
	res := &Result{}

	progress := func(phase string, pct float64) {
		p.reportProgress(Progress{
			Phase:        phase,
			CurrentChunk: res.Chunks,
			TotalChunks:  len(chunks),
			Percentage:   pct,
			BytesWritten: res.BytesWritten,
			TotalBytes:   img.Size(),
			ElapsedTime:  time.Since(startTime),
		})
	}

	// Phase 1: Sync
	if !p.config.SkipSync {
		progress(PhaseSyncing, 0)

		syncRes, err := p.client.Sync(ctx)
		if err != nil {
			return nil, err
		}
		if !syncRes.Synced {
			p.logInfo("no sync acknowledgement, continuing", "reply", fmt.Sprintf("% X", syncRes.Raw))
		}
		res.Sync = syncRes
	}

	// Phase 2: Identify
	progress(PhaseIdentifying, 2)

	dev, err := p.PrepareFlash(ctx)
	if err != nil {
		return nil, err
	}
	res.Device = dev

	// Phase 3: Erase
	progress(PhaseErasing, 4)

	start, end := img.EraseRange(p.config.FlashOffset)
	p.logDebug("erasing flash", "start", fmt.Sprintf("0x%08X", start), "end", fmt.Sprintf("0x%08X", end))
	if err := p.client.FlashErase(ctx, start, end); err != nil {
		return nil, fmt.Errorf("erase 0x%08X..0x%08X: %w", start, end, err)
	}

	// Phase 4: Write chunks (5% to 90%)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}

		if err := p.client.FlashWrite(ctx, chunk.Addr, chunk.Data); err != nil {
			return nil, fmt.Errorf("write chunk %d (0x%08X..0x%08X): %w", i, chunk.Addr, chunk.End(), err)
		}

		res.Chunks = i + 1
		res.BytesWritten += len(chunk.Data)
		progress(PhaseWriting, 5+(float64(i+1)/float64(len(chunks)))*85)
	}

	if err := p.client.FlashWriteCheck(ctx); err != nil {
		return nil, err
	}

	// Phase 5: Verify
	if p.config.Verify {
		progress(PhaseVerifying, 92)

		digest, err := p.FlashDigest(ctx, p.config.FlashOffset, uint32(img.Size()))
		if err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		res.Digest = digest

		if want := img.SHA256(); digest != want {
			return nil, &VerificationError{
				Addr:     p.config.FlashOffset,
				Len:      uint32(img.Size()),
				Expected: want,
				Actual:   digest,
			}
		}
		res.Verified = true
	}

	// Phase 6: Reset
	if p.config.ResetAfterProgram {
		progress(PhaseResetting, 97)

		if err := p.client.Reset(ctx); err != nil {
			return nil, err
		}
	}

	res.Elapsed = time.Since(startTime)
	progress(PhaseComplete, 100)

	p.logInfo("programming complete",
		"chunks", res.Chunks,
		"bytes", res.BytesWritten,
		"verified", res.Verified,
		"elapsed", res.Elapsed.String(),
	)

	return res, nil
}

// Identify reads the chip identification and applies the clock configuration
// in the order the boot ROM expects before flash access.
//
// Errors are returned as reported by the client; they already name the
// failing command.
func (p *Programmer) Identify(ctx context.Context) (*DeviceInfo, error) {
	info, err := p.client.GetBootInfo(ctx)
	if err != nil {
		return nil, err
	}

	chipID, err := p.client.GetChipID(ctx)
	if err != nil {
		return nil, err
	}

	if err := p.client.ClockSet(ctx, p.config.ClockSet); err != nil {
		return nil, err
	}

	mac, err := p.client.EfuseReadMac(ctx)
	if err != nil {
		return nil, err
	}

	jedec, err := p.client.FlashReadJedecID(ctx)
	if err != nil {
		return nil, err
	}

	p.logDebug("identified device",
		"boot_rom", info.Version(),
		"chip_id", info.ChipIDHex(),
		"chip", chipID,
		"mac", fmt.Sprintf("% X", mac),
		"jedec_id", fmt.Sprintf("% X", jedec),
	)

	return &DeviceInfo{
		BootInfo: info,
		ChipID:   chipID,
		MAC:      mac,
		JedecID:  jedec,
	}, nil
}

// PrepareFlash identifies the chip and configures the flash interface. It is
// the prerequisite of every flash command.
func (p *Programmer) PrepareFlash(ctx context.Context) (*DeviceInfo, error) {
	dev, err := p.Identify(ctx)
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}

	if err := p.client.FlashSetPara(ctx, p.config.FlashSetPara); err != nil {
		return nil, err
	}
	return dev, nil
}

// FlashDigest returns the SHA-256 of n bytes of flash at addr, entering and
// leaving XIP read mode around the request.
//
// Once XIP mode is entered, Flash XIP Read Finish is always sent, even when
// the digest request fails or ctx is cancelled; its error is joined with the
// digest error.
func (p *Programmer) FlashDigest(ctx context.Context, addr, n uint32) (digest [protocol.SHA256Size]byte, err error) {
	if err = p.client.FlashXipReadStart(ctx); err != nil {
		return digest, err
	}
	defer func() {
		if ferr := p.client.FlashXipReadFinish(context.WithoutCancel(ctx)); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()

	digest, err = p.client.FlashXipReadSha(ctx, addr, n)
	if err != nil {
		return digest, err
	}

	p.logDebug("flash digest", "addr", fmt.Sprintf("0x%08X", addr), "len", n, "sha256", fmt.Sprintf("%x", digest))
	return digest, nil
}

// ReadFlash reads n bytes of flash at addr in chunks of at most ChunkSize bytes.
func (p *Programmer) ReadFlash(ctx context.Context, addr, n uint32) ([]byte, error) {
	out := make([]byte, 0, n)
	step := uint32(p.config.ChunkSize)

	for read := uint32(0); read < n; {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}

		size := min(step, n-read)
		data, err := p.client.FlashRead(ctx, addr+read, size)
		if err != nil {
			return nil, fmt.Errorf("read 0x%08X+0x%X: %w", addr+read, size, err)
		}
		if uint32(len(data)) != size {
			return nil, &protocol.Error{
				Kind: protocol.KindCustom,
				Op:   "flash read",
				Msg:  fmt.Sprintf("got %d bytes, requested %d", len(data), size),
			}
		}

		out = append(out, data...)
		read += size
	}

	return out, nil
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}
