package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/NgigiN/groupbanker/internal/discord"
	"github.com/spf13/cobra"
)

// NewBotCommand runs the Discord bot until interrupted.
func NewBotCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Discord bot",
		Long:  "Run the Discord bot on DISCORD_CHANNEL_ID until SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.cfg.RequireDiscord(); err != nil {
				return err
			}

			db, err := rootOpts.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			bot, err := discord.NewBot(rootOpts.cfg, db, rootOpts.logger)
			if err != nil {
				return err
			}
			if err := bot.Start(); err != nil {
				return err
			}
			defer bot.Stop()

			rootOpts.logger.Info("bot is running")
			sc := make(chan os.Signal, 1)
			signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sc)

			select {
			case <-sc:
			case <-cmd.Context().Done():
			}
			rootOpts.logger.Info("bot stopped")
			return nil
		},
	}
}
