package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xpilot/internal/browser"
)

const botTestURL = "https://bot.sannysoft.com"

func newOpenCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|diagnostics|sessions|media>",
		Short:     "Open a config file or data directory",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "diagnostics", "sessions", "media"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Open(args[0])
		},
	}
}

// newBotTestCmd opens a fingerprinting page with the same browser options
// the actions use, to audit what sites can detect.
func newBotTestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "bot-test",
		Short: "Open " + botTestURL + " to audit the browser fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			launcher := browser.NewLauncher(c.app.Config().Browser, c.logger)
			tab, err := launcher.Open(cmd.Context(), false, nil)
			if err != nil {
				return err
			}
			defer tab.Close()

			if err := tab.Page().Navigate(tab.Context(), botTestURL); err != nil {
				return fmt.Errorf("failed to navigate: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to close the browser...")
			_, err = readLine(cmd.InOrStdin())
			return err
		},
	}
}
