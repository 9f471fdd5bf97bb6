package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLoginCmd(c *cli) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login <label>",
		Short: "Sign in with username and password and save the session",
		Long:  "Sign in through the X login form. The password is read from XPILOT_PASSWORD, or from stdin with --password-stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("XPILOT_PASSWORD")
			if passwordStdin {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = line
			}
			if username == "" || password == "" {
				return fmt.Errorf("--username and a password are required")
			}

			outcome, err := c.app.Engine().Login(cmd.Context(), args[0], username, password, c.headless())
			if outcome != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "signals: url=%t control=%t cookie=%t\n",
					outcome.URLSignal, outcome.ControlSignal, outcome.CookieSignal)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s, session saved to %s\n", args[0], outcome.SessionFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "X username, email or phone")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <label> <cookies-file|->",
		Short: "Import exported cookies (JSON, storage state or cookies.txt) as a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if args[1] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[1])
			}
			if err != nil {
				return err
			}

			sess, err := c.app.Engine().ImportCookies(args[0], raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d cookies for %s (signed in: %t)\n",
				len(sess.Cookies), args[0], sess.HasAuth())
			return nil
		},
	}
}

func newAccountsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List stored sessions and their expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := c.app.Store().List()
			if err != nil {
				return err
			}
			sources := make(map[string]string, len(accounts))
			for _, a := range accounts {
				sources[a.Label] = a.Source
			}

			statuses, err := c.app.Sweeper().Check(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LABEL\tSOURCE\tSTATUS\tEXPIRES")
			for _, st := range statuses {
				source := sources[st.Label]
				if source == "" {
					source = "-"
				}
				status := "ok"
				switch {
				case st.Err != nil:
					status = "unreadable"
				case !st.HasAuth:
					status = "signed out"
				case !st.Valid:
					status = "expired"
				case st.Expiring:
					status = "expiring"
				}
				expires := "-"
				if !st.ExpiresAt.IsZero() {
					expires = st.ExpiresAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Label, source, status, expires)
			}
			return w.Flush()
		},
	}
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout <label>",
		Short: "Forget the stored session of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Engine().Logout(args[0]); err != nil {
				return err
			}
			c.logger.Info("logged out", zap.String("label", args[0]))
			return nil
		},
	}
}
