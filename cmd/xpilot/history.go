package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		label string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List posts, replies and quotes created through xpilot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			posts, err := c.app.Store().ListPosts(label, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tLABEL\tKIND\tURL\tTEXT")
			for _, p := range posts {
				url := p.URL
				if url == "" {
					url = "-"
				}
				if p.DeletedAt != nil {
					url += " (deleted)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					p.CreatedAt.Local().Format(time.DateTime), p.Label, p.Kind, url, truncate(p.Text, 40))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&label, "account", "a", "", "only this account label")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")

	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
