package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gallery/internal/backend"
	"gallery/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and gallery endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			api, err := ctx.client(logger)
			if err != nil {
				return err
			}
			search := backend.NewFromConfig(cfg, logger)

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			statuses = append(statuses, deps.CheckProbes(cmd.Context(), []deps.Probe{
				{Name: "Gallery API", Target: api.BaseURL(), Check: api.Health},
				{Name: "Search backend", Target: search.BaseURL(), Optional: true, Check: search.Health},
			}, 5*time.Second)...)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatuses(statuses))
			if !deps.Healthy(statuses) {
				return errors.New("required dependencies are unavailable")
			}
			return nil
		},
	}
}

func renderStatuses(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "ok"
		switch {
		case !s.Available && s.Optional:
			state = "missing (optional)"
		case !s.Available:
			state = "missing"
		}
		rows = append(rows, []string{s.Name, valueOrDash(s.Target), state, valueOrDash(s.Detail)})
	}
	return renderTable([]string{"Dependency", "Target", "State", "Detail"}, rows, nil)
}
