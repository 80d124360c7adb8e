package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eringen/rescuepost"
)

var (
	orgDescription string
	orgURL         string
)

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "Manage organizations",
}

var orgsAddCmd = &cobra.Command{
	Use:   "add <id> <name>",
	Short: "Add or update an organization",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if rescuepost.Slugify(id) != id {
			return fmt.Errorf("organization id %q must be a slug, for example %q", id, rescuepost.Slugify(id))
		}
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		org := rescuepost.Organization{ID: id, Name: args[1], Description: orgDescription, URL: orgURL}
		if err := app.Store.SaveOrganization(cmd.Context(), org); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved organization %s\n", id)
		return nil
	},
}

var orgsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		orgs, err := app.Store.ListOrganizations(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDRAFT\tSCHEDULED\tPUBLISHED\tFAILED")
		for _, o := range orgs {
			counts, err := app.Pipeline.Stats(cmd.Context(), o.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n", o.ID, o.Name,
				counts[rescuepost.StatusDraft], counts[rescuepost.StatusScheduled],
				counts[rescuepost.StatusPublished], counts[rescuepost.StatusFailed])
		}
		return w.Flush()
	},
}

func init() {
	orgsAddCmd.Flags().StringVar(&orgDescription, "description", "", "short description shown on the public feed")
	orgsAddCmd.Flags().StringVar(&orgURL, "url", "", "the organization's website")

	orgsCmd.AddCommand(orgsAddCmd, orgsListCmd)
	rootCmd.AddCommand(orgsCmd)
}
