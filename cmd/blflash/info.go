package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-bflb/bootloader"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show boot ROM, chip and flash identification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, prog *bootloader.Programmer) error {
				dev, err := prog.Identify(ctx)
				if err != nil {
					return err
				}
				return renderDeviceInfo(a, dev)
			})
		},
	}
}

func renderDeviceInfo(a *app, dev *bootloader.DeviceInfo) error {
	data := pterm.TableData{
		{"Field", "Value"},
		{"Port", a.cfg.Port},
		{"Boot ROM", dev.BootInfo.Version()},
		{"Chip", trimChipID(dev.ChipID)},
		{"Chip ID", dev.BootInfo.ChipIDHex()},
		{"Sign", fmt.Sprintf("%d", dev.BootInfo.Sign)},
		{"Encrypt", fmt.Sprintf("%d", dev.BootInfo.Encrypt)},
		{"MAC", fmt.Sprintf("% X", dev.MAC)},
		{"Flash JEDEC ID", fmt.Sprintf("% X", dev.JedecID)},
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, table)
	return err
}

// trimChipID drops the NUL padding of the chip id string.
func trimChipID(s string) string {
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}
