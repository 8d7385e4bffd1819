package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/orb/internal/grpcclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running orb over its gRPC health service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.GRPCAddr
		}

		client, err := grpcclient.New(addr)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		ctx := cmd.Context()
		if wait, _ := cmd.Flags().GetDuration("wait"); wait > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, wait)
			defer cancel()
			if err := client.WaitServing(ctx, grpcclient.DefaultHealthCheckInterval); err != nil {
				return err
			}
		}

		status, err := client.Check(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", addr, status)
		return nil
	},
}

func init() {
	statusCmd.Flags().String("addr", "", "gRPC address of the orb (defaults to grpc_addr)")
	statusCmd.Flags().Duration("wait", 0*time.Second, "Wait up to this long for the orb to report SERVING")
}
