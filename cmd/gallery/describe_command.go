package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gallery/internal/config"
)

func newDescribeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "describe <file>",
		Short: "Generate a title and description for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			client, err := quietClient(ctx, cmd)
			if err != nil {
				return err
			}
			desc, err := client.GenerateDescription(cmd.Context(), path)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, desc)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title:       %s\n", valueOrDash(desc.Title))
			fmt.Fprintf(out, "Description: %s\n", valueOrDash(desc.Description))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print raw JSON")
	return cmd
}
