package cmd

import (
	"context"
	"github.com/spf13/cobra"
	"log"
	"log/slog"
	"os"
	"os/signal"
)

func Start() {
	cfg := newCfg("env")
	slog.SetLogLoggerLevel(slog.Level(cfg.GetInt("log.level")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{}
	cmd := []*cobra.Command{
		{
			Use:   "serve-http",
			Short: "Run HTTP server",
			Run: func(cmd *cobra.Command, args []string) {
				runHttpServerCmd(ctx)
			},
		},
		{
			Use:   "serve-queue:ticket",
			Short: "Run queue ticket server",
			Run: func(cmd *cobra.Command, args []string) {
				runQueueTicketCmd(ctx)
			},
		},
		{
			Use:   "serve-queue:notify",
			Short: "Run queue notify server",
			Run: func(cmd *cobra.Command, args []string) {
				runQueueNotifyCmd(ctx)
			},
		},
		{
			Use:   "client",
			Short: "Run walk-up load client, for testing purpose",
			Run: func(cmd *cobra.Command, args []string) {
				runClientCmd(ctx)
			},
		},
		{
			Use:   "dev",
			Short: "Run dev server, for testing purpose",
			Run: func(cmd *cobra.Command, args []string) {
				runHttpServerCmd(ctx)
			},
			PreRun: func(cmd *cobra.Command, args []string) {
				go func() {
					runQueueTicketCmd(ctx)
				}()
				go func() {
					runQueueNotifyCmd(ctx)
				}()
			},
		},
	}

	rootCmd.AddCommand(cmd...)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err)
	}
}
