package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eringen/rescuepost"
	"github.com/eringen/rescuepost/publisher"
)

var (
	listOrg      string
	listStatus   string
	listPlatform string
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Inspect posts",
}

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an organization's posts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := rescuepost.ParseStatus(listStatus)
		if err != nil {
			return err
		}
		f := rescuepost.PostFilter{Status: status}
		if listPlatform != "" {
			if f.Platform, err = publisher.ParsePlatform(listPlatform); err != nil {
				return err
			}
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		posts, err := app.Pipeline.ListPosts(cmd.Context(), listOrg, f)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPLATFORMS\tWHEN\tRETRIES\tCONTENT")
		for _, p := range posts {
			when := p.ScheduledAt
			if p.Status == rescuepost.StatusPublished {
				when = p.PublishedAt
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				p.ID, p.Status, rescuepost.JoinPlatforms(p.Platforms),
				rescuepost.FormatLocal(when), p.RetryCount, rescuepost.Excerpt(p.Content, 50))
		}
		return w.Flush()
	},
}

var publishDueCmd = &cobra.Command{
	Use:   "publish-due",
	Short: "Publish every scheduled post that is due, once, and exit",
	Long: `publish-due runs a single polling pass: each scheduled post whose time has
come is published to its platforms. Use it from cron when the server is not
running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.Pipeline.PublishDue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %d post(s)\n", n)
		return nil
	},
}

func init() {
	postsListCmd.Flags().StringVar(&listOrg, "org", "", "organization id (required)")
	postsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status: draft, scheduled, published, failed")
	postsListCmd.Flags().StringVar(&listPlatform, "platform", "", "filter by platform")
	_ = postsListCmd.MarkFlagRequired("org")

	postsCmd.AddCommand(postsListCmd)
	rootCmd.AddCommand(postsCmd, publishDueCmd)
}
