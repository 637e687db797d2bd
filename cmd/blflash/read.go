package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-bflb/bootloader"
)

func newReadCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "read <addr> <len>",
		Short: "Read flash contents",
		Long:  "Read len bytes of flash at addr. Numbers accept 0x and 0o prefixes.\nWithout --output the data is printed as a hex dump.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, n, err := parseRange(args[0], args[1])
			if err != nil {
				return err
			}

			return a.withSession(cmd.Context(), func(ctx context.Context, prog *bootloader.Programmer) error {
				if _, err := prog.PrepareFlash(ctx); err != nil {
					return err
				}

				data, err := prog.ReadFlash(ctx, addr, n)
				if err != nil {
					return err
				}

				if output != "" {
					if err := os.WriteFile(output, data, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", output, err)
					}
					a.logger.Info().Str("file", output).Int("bytes", len(data)).Msg("flash saved")
					return nil
				}
				_, err = fmt.Fprint(a.out, hex.Dump(data))
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the data to a file")
	return cmd
}

func newShaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sha <addr> <len>",
		Short: "Print the SHA-256 of a flash range computed on the chip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, n, err := parseRange(args[0], args[1])
			if err != nil {
				return err
			}

			return a.withSession(cmd.Context(), func(ctx context.Context, prog *bootloader.Programmer) error {
				if _, err := prog.PrepareFlash(ctx); err != nil {
					return err
				}

				digest, err := prog.FlashDigest(ctx, addr, n)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(a.out, "%x\n", digest)
				return err
			})
		},
	}
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func parseRange(addrArg, lenArg string) (uint32, uint32, error) {
	addr, err := parseUint32(addrArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid address %q: %w", addrArg, err)
	}
	n, err := parseUint32(lenArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid length %q: %w", lenArg, err)
	}
	if n == 0 {
		return 0, 0, fmt.Errorf("length must be positive")
	}
	if uint64(addr)+uint64(n) > 1<<32 {
		return 0, 0, fmt.Errorf("range 0x%X+0x%X exceeds the 32-bit address space", addr, n)
	}
	return addr, n, nil
}
