package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eringen/rescuepost"
	"github.com/eringen/rescuepost/contentgen"
	"github.com/eringen/rescuepost/publisher"
)

var genReq struct {
	org          string
	topic        string
	animalName   string
	animalType   string
	tone         string
	callToAction string
	platforms    []string
	save         bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft a post with the configured AI provider",
	Long: `generate asks the configured AI provider for a post and prints it as JSON.
With --save the result is stored as a draft for the organization.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(genReq.topic) == "" {
			return errors.New("--topic is required")
		}
		platforms, err := publisher.ParsePlatforms(genReq.platforms)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()
		if app.Generator == nil {
			return contentgen.ErrNoAPIKey
		}

		org, err := app.Store.GetOrganization(ctx, genReq.org)
		if err != nil {
			return fmt.Errorf("organization %q: %w", genReq.org, err)
		}
		out, err := app.Generator.GeneratePost(ctx, contentgen.PostRequest{
			OrgName:      org.Name,
			Topic:        genReq.topic,
			AnimalName:   genReq.animalName,
			AnimalType:   genReq.animalType,
			Tone:         genReq.tone,
			CallToAction: genReq.callToAction,
			Platforms:    platforms,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		if !genReq.save {
			return nil
		}
		p, err := app.Pipeline.CreatePost(ctx, rescuepost.Post{
			OrgID:       org.ID,
			Title:       genReq.topic,
			Content:     out.Content,
			Platforms:   platforms,
			Hashtags:    out.Hashtags,
			AIGenerated: true,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved draft %s\n", p.ID)
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genReq.org, "org", "", "organization id (required)")
	f.StringVar(&genReq.topic, "topic", "", "what the post is about")
	f.StringVar(&genReq.animalName, "animal-name", "", "featured animal's name")
	f.StringVar(&genReq.animalType, "animal-type", "", "featured animal's species or breed")
	f.StringVar(&genReq.tone, "tone", "warm", "warm, urgent, playful or informative")
	f.StringVar(&genReq.callToAction, "cta", "", "call to action")
	f.StringSliceVar(&genReq.platforms, "platforms", []string{"facebook", "instagram"}, "target platforms")
	f.BoolVar(&genReq.save, "save", false, "store the result as a draft")
	_ = generateCmd.MarkFlagRequired("org")

	rootCmd.AddCommand(generateCmd)
}
