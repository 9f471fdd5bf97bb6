package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/app"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/observability"
)

// cli carries state shared by every subcommand. app is built in the
// persistent pre-run so that --config is honored.
type cli struct {
	cfgFile  string
	logLevel string
	show     bool

	app    *app.App
	logger *zap.Logger
}

// execute runs the command tree and releases what the pre-run opened, also
// when the command failed.
func execute(root *cobra.Command, c *cli) error {
	err := root.Execute()
	if cerr := c.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "xpilot",
		Short:         "Automate an X account through a real browser",
		Long:          "xpilot signs in to X, keeps one cookie session per account label, and performs posting and engagement actions in an isolated browser per action.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.cfgFile, "config", "c", "", "config file (default is <user config dir>/xpilot/config.toml)")
	flags.StringVar(&c.logLevel, "log-level", "", "override logger.level")
	flags.BoolVar(&c.show, "show", false, "show the browser window instead of running headless")

	rootCmd.AddCommand(
		newLoginCmd(c),
		newImportCmd(c),
		newAccountsCmd(c),
		newLogoutCmd(c),
		newHistoryCmd(c),
		newWatchCmd(c),
		newOpenCmd(c),
		newBotTestCmd(c),
		newRunCmd(c),
		newProfileCmd(c),
	)
	rootCmd.AddCommand(newActionCmds(c)...)

	return rootCmd, c
}

func (c *cli) init() error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logger.Level = c.logLevel
	}
	c.logger = observability.NewLogger(cfg.Logger)

	a, err := app.New(cfg, c.cfgFile, c.logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	c.app = a
	return nil
}

func (c *cli) close() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return err
}

// headless resolves the browser mode for one invocation.
func (c *cli) headless() bool {
	if c.show {
		return false
	}
	return c.app.Config().Browser.Headless
}
