package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/config"
	"github.com/cadencehq/cadence/internal/db"
	"github.com/cadencehq/cadence/internal/notify"
	discordadapter "github.com/cadencehq/cadence/internal/notify/discord"
	slackadapter "github.com/cadencehq/cadence/internal/notify/slack"
)

func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Manage the notification daemon",
		Long:  "The notifier watches for work-item events and posts them to chat platforms (Slack, Discord).",
	}

	cmd.AddCommand(newNotifyRunCmd())
	return cmd
}

func newNotifyRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the notification daemon",
		Long:  "Connects to the configured chat platform and posts work-item events, overdue alerts, and digests until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}

func runNotify(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Notify.Platform == "" || cfg.Notify.Platform == "none" {
		return fmt.Errorf("notify: no platform configured in %s (add notify.platform)", configPath)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	daemon, err := notify.NewDaemon(notify.DaemonOpts{
		DB:      gormDB,
		Config:  cfg,
		Adapter: adapter,
		Out:     cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return daemon.Run(ctx)
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (notify.Adapter, error) {
	switch cfg.Notify.Platform {
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			BotToken:  cfg.Notify.SlackBotToken,
			ChannelID: cfg.Notify.Channel,
		})
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Notify.DiscordToken,
			ChannelID: cfg.Notify.Channel,
		})
	default:
		return nil, fmt.Errorf("notify: unsupported platform %q", cfg.Notify.Platform)
	}
}
