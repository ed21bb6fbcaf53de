package client

import (
	"context"
	"fmt"

	"github.com/mwantia/stickerbox/internal/agent"
	"github.com/mwantia/stickerbox/internal/settings"
	"github.com/spf13/cobra"
)

func NewAICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Manage the AI image generation settings",
		Long:  "Show, change, clear or test the endpoint used by 'stickerbox sticker generate'. Settings survive a library wipe.",
	}

	cmd.AddCommand(NewAIShowCommand())
	cmd.AddCommand(NewAISetCommand())
	cmd.AddCommand(NewAIClearCommand())
	cmd.AddCommand(NewAITestCommand())

	return cmd
}

func NewAIShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the AI settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, func(ctx context.Context, a *agent.StickerAgent) error {
				cfg, err := settings.LoadAIConfig(ctx, a.Settings())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Endpoint:    %s\n", cfg.APIEndpoint)
				fmt.Fprintf(out, "API key:     %s\n", cfg.MaskedKey())
				fmt.Fprintf(out, "Model:       %s\n", cfg.ModelName)
				fmt.Fprintf(out, "Temperature: %g\n", cfg.Temperature)
				fmt.Fprintf(out, "Max tokens:  %d\n", cfg.MaxTokens)
				fmt.Fprintf(out, "Configured:  %t\n", cfg.IsValid())
				return nil
			})
		},
	}
}

func NewAISetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the AI settings",
		Long:  "Change the AI settings. Only the given flags are updated.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, func(ctx context.Context, a *agent.StickerAgent) error {
				cfg, err := settings.LoadAIConfig(ctx, a.Settings())
				if err != nil {
					return err
				}

				flags := cmd.Flags()
				if flags.Changed("endpoint") {
					cfg.APIEndpoint, _ = flags.GetString("endpoint")
				}
				if flags.Changed("key") {
					cfg.APIKey, _ = flags.GetString("key")
				}
				if flags.Changed("model") {
					cfg.ModelName, _ = flags.GetString("model")
				}
				if flags.Changed("temperature") {
					cfg.Temperature, _ = flags.GetFloat64("temperature")
				}
				if flags.Changed("max-tokens") {
					cfg.MaxTokens, _ = flags.GetInt("max-tokens")
				}

				if err := settings.SaveAIConfig(ctx, a.Settings(), cfg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "AI settings saved")
				return nil
			})
		},
	}

	cmd.Flags().String("endpoint", settings.DefaultAPIEndpoint, "chat completions endpoint")
	cmd.Flags().String("key", "", "API key")
	cmd.Flags().String("model", settings.DefaultModelName, "model name")
	cmd.Flags().Float64("temperature", settings.DefaultTemperature, "sampling temperature")
	cmd.Flags().Int("max-tokens", settings.DefaultMaxTokens, "maximum tokens per response")

	return cmd
}

func NewAIClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all AI settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, func(ctx context.Context, a *agent.StickerAgent) error {
				return settings.ClearAIConfig(ctx, a.Settings())
			})
		},
	}
}

func NewAITestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the endpoint returns an image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, func(ctx context.Context, a *agent.StickerAgent) error {
				cfg, err := settings.LoadAIConfig(ctx, a.Settings())
				if err != nil {
					return err
				}
				if err := a.AI().TestConnection(ctx, cfg); err != nil {
					return fmt.Errorf("connection test failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Connection OK")
				return nil
			})
		},
	}
}
