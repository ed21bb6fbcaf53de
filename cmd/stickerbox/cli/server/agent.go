package server

import (
	"context"
	"fmt"

	"github.com/mwantia/stickerbox/internal/agent"
	"github.com/mwantia/stickerbox/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the Stickerbox agent",
		Long: `Start the Stickerbox agent.

The agent opens the library, migrates the database and, when enabled,
imports every image or zip archive dropped into the inbox folder.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			return agent.NewAgent(cfg).Serve(context.Background())
		},
	}

	cmd.Flags().Bool("inbox", false, "watch the inbox folder (overrides inbox.enabled)")
	cmd.Flags().String("inbox-path", "", "inbox folder (overrides inbox.path)")

	viper.BindPFlag("inbox.enabled", cmd.Flags().Lookup("inbox"))
	viper.BindPFlag("inbox.path", cmd.Flags().Lookup("inbox-path"))

	return cmd
}
