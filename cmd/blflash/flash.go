package main

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-bflb/bootloader"
	"github.com/moffa90/go-bflb/firmware"
)

type flashFlags struct {
	offset   string
	noVerify bool
	noReset  bool
}

func newFlashCmd(a *app) *cobra.Command {
	var f flashFlags

	cmd := &cobra.Command{
		Use:   "flash <firmware.bin>",
		Short: "Erase, write and verify a firmware image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("offset") {
				off, err := parseUint32(f.offset)
				if err != nil {
					return fmt.Errorf("--offset: %w", err)
				}
				a.cfg.FlashOffset = off
			}
			if f.noVerify {
				a.cfg.Verify = false
			}
			if f.noReset {
				a.cfg.Reset = false
			}

			img, err := firmware.Load(args[0])
			if err != nil {
				return err
			}
			if !img.HasBootHeader() {
				a.logger.Warn().Str("file", args[0]).Msg("image has no boot header")
			}

			bar, _ := pterm.DefaultProgressbar.
				WithTitle("Flashing").
				WithTotal(img.Size()).
				Start()
			progress := func(p bootloader.Progress) {
				if bar == nil {
					return
				}
				bar.UpdateTitle(p.Phase)
				if p.BytesWritten > bar.Current {
					bar.Add(p.BytesWritten - bar.Current)
				}
			}

			prog, closer, err := a.programmer(bootloader.WithProgressCallback(progress))
			if err != nil {
				if bar != nil {
					_, _ = bar.Stop()
				}
				return err
			}
			defer func() { _ = closer.Close() }()

			res, err := prog.Program(cmd.Context(), img)
			if bar != nil {
				_, _ = bar.Stop()
			}
			if err != nil {
				return err
			}

			verified := "skipped"
			if res.Verified {
				verified = fmt.Sprintf("sha256 %x", res.Digest)
			}
			_, err = fmt.Fprintf(a.out, "wrote %d bytes in %d chunks at 0x%08X in %s, verification %s\n",
				res.BytesWritten, res.Chunks, a.cfg.FlashOffset, res.Elapsed.Round(time.Millisecond), verified)
			return err
		},
	}

	cmd.Flags().StringVar(&f.offset, "offset", "", "flash offset of the image (default 0x2000)")
	cmd.Flags().BoolVar(&f.noVerify, "no-verify", false, "skip the SHA-256 read back")
	cmd.Flags().BoolVar(&f.noReset, "no-reset", false, "leave the chip in the boot ROM")
	return cmd
}
