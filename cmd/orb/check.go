package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/orb/internal/trigger"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and audio assets without starting",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := loadAssets(cfg)
		if err != nil {
			return err
		}

		plan := trigger.PlanFor(cfg)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "configuration ok\n")
		fmt.Fprintf(out, "  ambient loop   %s (%s)\n", cfg.Paths.AmbientLoop, a.bed.Duration())
		fmt.Fprintf(out, "  trigger chime  %s (%s)\n", cfg.Paths.TriggerChime, a.trigger.Duration())
		fmt.Fprintf(out, "  failure chime  %s (%s)\n", cfg.Paths.FailureChime, a.failure.Duration())
		fmt.Fprintf(out, "  triggers       touch=%t wake_word=%t\n", plan.Touch, plan.Wake)
		fmt.Fprintf(out, "  recording      silence=%s max=%s\n", cfg.SilenceDuration(), cfg.MaxRecordDuration())
		fmt.Fprintf(out, "  speech api key %t\n", cfg.Remote.APIKey != "")
		return nil
	},
}
