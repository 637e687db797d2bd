package bootloader

import (
	"context"

	"github.com/moffa90/go-bflb/protocol"
)

// GetBootInfo reads the boot-ROM version, security flags and chip id.
func (c *Client) GetBootInfo(ctx context.Context) (*protocol.BootInfo, error) {
	return Send[*protocol.BootInfo](ctx, c, protocol.GetBootInfo{})
}

// GetChipID reads the chip identification string.
func (c *Client) GetChipID(ctx context.Context) (string, error) {
	return Send[string](ctx, c, protocol.GetChipID{})
}

// ClockSet configures the clocks used while loading.
func (c *Client) ClockSet(ctx context.Context, cs protocol.ClockSet) error {
	_, err := Send[struct{}](ctx, c, cs)
	return err
}

// Reset resets the chip.
func (c *Client) Reset(ctx context.Context) error {
	_, err := Send[struct{}](ctx, c, protocol.Reset{})
	return err
}

// EfuseReadMac reads the factory MAC address. The CRC32 trailer is verified
// and stripped.
func (c *Client) EfuseReadMac(ctx context.Context) ([]byte, error) {
	mac, err := Send[protocol.Checked[[]byte]](ctx, c, protocol.EfuseReadMac{})
	if err != nil {
		return nil, err
	}
	return mac.Value(), nil
}

// FlashReadJedecID reads the JEDEC id of the attached flash.
func (c *Client) FlashReadJedecID(ctx context.Context) ([]byte, error) {
	return Send[[]byte](ctx, c, protocol.FlashReadJedecID{})
}

// FlashErase erases the inclusive range [start, end].
func (c *Client) FlashErase(ctx context.Context, start, end uint32) error {
	_, err := Send[struct{}](ctx, c, protocol.FlashErase{Start: start, End: end})
	return err
}

// FlashWrite writes data at addr.
func (c *Client) FlashWrite(ctx context.Context, addr uint32, data []byte) error {
	_, err := Send[struct{}](ctx, c, protocol.FlashWrite{StartAddr: addr, Data: data})
	return err
}

// FlashRead reads n bytes of flash at addr.
func (c *Client) FlashRead(ctx context.Context, addr, n uint32) ([]byte, error) {
	return Send[[]byte](ctx, c, protocol.FlashRead{StartAddr: addr, Len: n})
}

// FlashSetPara configures the flash interface.
func (c *Client) FlashSetPara(ctx context.Context, p protocol.FlashSetPara) error {
	_, err := Send[struct{}](ctx, c, p)
	return err
}

// FlashWriteCheck asks the chip to confirm pending writes completed.
func (c *Client) FlashWriteCheck(ctx context.Context) error {
	_, err := Send[struct{}](ctx, c, protocol.FlashWriteCheck{})
	return err
}

// FlashXipReadStart enters XIP read mode.
func (c *Client) FlashXipReadStart(ctx context.Context) error {
	_, err := Send[struct{}](ctx, c, protocol.FlashXipReadStart{})
	return err
}

// FlashXipReadSha returns the SHA-256 of n bytes of flash at addr.
// The chip must be in XIP read mode.
func (c *Client) FlashXipReadSha(ctx context.Context, addr, n uint32) ([protocol.SHA256Size]byte, error) {
	return Send[[protocol.SHA256Size]byte](ctx, c, protocol.FlashXipReadSha{StartAddr: addr, Len: n})
}

// FlashXipReadFinish leaves XIP read mode.
func (c *Client) FlashXipReadFinish(ctx context.Context) error {
	_, err := Send[struct{}](ctx, c, protocol.FlashXipReadFinish{})
	return err
}

// LogRead reads the boot-ROM log buffer.
func (c *Client) LogRead(ctx context.Context) (string, error) {
	return Send[string](ctx, c, protocol.LogRead{})
}
