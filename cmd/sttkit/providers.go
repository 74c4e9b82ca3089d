package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and their availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg, err := newRegistry(cmd.Context(), cfg.Transcription)
			if err != nil {
				return err
			}
			defer reg.Close(context.WithoutCancel(cmd.Context()))

			kinds := kindsByName(cfg.Transcription)
			rows := make([][]string, 0, reg.Len())
			for _, p := range reg.List() {
				available := "no"
				if p.IsAvailable(cmd.Context()) {
					available = "yes"
				}
				rows = append(rows, []string{p.Name(), kinds[p.Name()], available})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers configured.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Name", "Kind", "Available"}, rows, nil))
			return nil
		},
	}
}
