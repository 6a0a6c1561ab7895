package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	serveStartTimeout time.Duration
	serveStopTimeout  time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Kafka pipeline, the HTTP API and the metrics server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, err := appOptions(cfg)
		if err != nil {
			return err
		}

		app := fx.New(opts...)
		if err := app.Err(); err != nil {
			return fmt.Errorf("compose application: %w", err)
		}

		ctx := commandContext(cmd)
		startCtx, cancelStart := context.WithTimeout(ctx, serveStartTimeout)
		defer cancelStart()
		if err := app.Start(startCtx); err != nil {
			return fmt.Errorf("start: %w", err)
		}

		select {
		case <-app.Done():
		case <-ctx.Done():
		}

		stopCtx, cancelStop := context.WithTimeout(context.Background(), serveStopTimeout)
		defer cancelStop()
		if err := app.Stop(stopCtx); err != nil {
			return fmt.Errorf("stop: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().DurationVar(&serveStartTimeout, "start-timeout", 30*time.Second, "Time allowed for connecting to backing services")
	serveCmd.Flags().DurationVar(&serveStopTimeout, "stop-timeout", 45*time.Second, "Time allowed for draining in-flight records")
	rootCmd.AddCommand(serveCmd)
}
