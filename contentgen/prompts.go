package contentgen

import (
	"fmt"
	"strings"

	"github.com/eringen/rescuepost/postfmt"
)

const postSystemPrompt = `You write social media posts for animal rescue organizations.
Posts are honest, kind and specific about the animal or event. Never invent
medical facts, ages or prices that were not given. Always answer with a single
JSON object and nothing else.`

const hashtagSystemPrompt = `You suggest hashtags for animal rescue social media posts.
Hashtags are single words or CamelCase phrases without spaces or punctuation.
Always answer with a single JSON object and nothing else.`

func buildPostPrompt(req PostRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s social media post", req.Tone)
	if req.OrgName != "" {
		fmt.Fprintf(&b, " for %s", req.OrgName)
	}
	fmt.Fprintf(&b, " about: %s.\n", req.Topic)
	if req.AnimalName != "" {
		fmt.Fprintf(&b, "Animal name: %s.\n", req.AnimalName)
	}
	if req.AnimalType != "" {
		fmt.Fprintf(&b, "Animal type: %s.\n", req.AnimalType)
	}
	if req.CallToAction != "" {
		fmt.Fprintf(&b, "End with this call to action: %s.\n", req.CallToAction)
	}

	platforms := make([]string, len(req.Platforms))
	for i, p := range req.Platforms {
		platforms[i] = string(p)
	}
	fmt.Fprintf(&b, "It will be posted to: %s.\n", strings.Join(platforms, ", "))
	if limit := postfmt.StrictestLimit(req.Platforms); limit > 0 {
		fmt.Fprintf(&b, "The content plus hashtags must stay under %d characters.\n", limit)
	}
	fmt.Fprintf(&b, "Include at most %d hashtags in the hashtags list, not in the content.\n", req.MaxHashtags)
	b.WriteString(`Answer as {"content": "...", "hashtags": ["#tag"], "variants": {"<platform>": "..."}}. `)
	b.WriteString("Variants are optional platform-specific rewrites.")
	return b.String()
}
