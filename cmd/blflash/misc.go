package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-bflb/bootloader"
	"github.com/moffa90/go-bflb/serialport"
)

// listPorts enumerates serial ports.
var listPorts = serialport.List

func newLogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Print the boot ROM log buffer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, prog *bootloader.Programmer) error {
				text, err := prog.Client().LogRead(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(a.out, text)
				return err
			})
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the chip out of the boot ROM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, prog *bootloader.Programmer) error {
				if err := prog.Client().Reset(ctx); err != nil {
					return err
				}
				a.logger.Info().Str("port", a.cfg.Port).Msg("chip reset")
				return nil
			})
		},
	}
}

func newPortsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := listPorts()
			if err != nil {
				return fmt.Errorf("list ports: %w", err)
			}
			if len(ports) == 0 {
				_, err := fmt.Fprintln(a.out, "no serial ports found")
				return err
			}

			data := pterm.TableData{{"Port"}}
			for _, p := range ports {
				data = append(data, []string{p})
			}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, table)
			return err
		},
	}
}
