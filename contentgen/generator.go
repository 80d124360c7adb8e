// Package contentgen writes social post copy with a chat model.
//
// A Generator builds prompts for adoption and fundraising posts, sends them
// through a Completer (OpenAI or Gemini), and checks the JSON answer against
// the expected shape before handing it back. Transient failures, including
// answers that do not match the schema, are retried with backoff.
package contentgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eringen/rescuepost/postfmt"
	"github.com/eringen/rescuepost/publisher"
)

// DefaultMaxRetries is the number of retries after the first attempt.
const DefaultMaxRetries = 3

// Generator produces post content through a Completer.
type Generator struct {
	llm        Completer
	maxRetries int
	backoff    Backoff
	limiter    *rate.Limiter
	log        *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// WithBackoff replaces the retry delay policy.
func WithBackoff(b Backoff) Option {
	return func(g *Generator) {
		g.backoff = b
	}
}

// WithRateLimit caps outbound model calls to r per second with burst b.
func WithRateLimit(r rate.Limit, b int) Option {
	return func(g *Generator) {
		g.limiter = rate.NewLimiter(r, b)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.log = l
	}
}

// NewGenerator returns a Generator using llm.
func NewGenerator(llm Completer, opts ...Option) *Generator {
	g := &Generator{
		llm:        llm,
		maxRetries: DefaultMaxRetries,
		backoff:    ExponentialBackoff(time.Second, 8*time.Second),
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PostRequest describes the post to write.
type PostRequest struct {
	OrgName      string               `json:"org_name"`
	Topic        string               `json:"topic"`
	AnimalName   string               `json:"animal_name,omitempty"`
	AnimalType   string               `json:"animal_type,omitempty"`
	Tone         string               `json:"tone,omitempty"`
	CallToAction string               `json:"call_to_action,omitempty"`
	Platforms    []publisher.Platform `json:"platforms"`
	MaxHashtags  int                  `json:"max_hashtags,omitempty"`
}

// GeneratedPost is a validated model answer.
type GeneratedPost struct {
	Content  string                        `json:"content"`
	Hashtags []string                      `json:"hashtags"`
	Variants map[publisher.Platform]string `json:"variants,omitempty"`
}

// GeneratePost writes a post for req.Platforms.
func (g *Generator) GeneratePost(ctx context.Context, req PostRequest) (*GeneratedPost, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("contentgen: topic is required")
	}
	if len(req.Platforms) == 0 {
		req.Platforms = []publisher.Platform{publisher.Facebook}
	}
	if req.MaxHashtags <= 0 {
		req.MaxHashtags = 5
	}
	if req.Tone == "" {
		req.Tone = "warm"
	}

	user := buildPostPrompt(req)
	return withRetry(ctx, g.maxRetries, g.backoff, g.retryLogger("generate_post"), func() (*GeneratedPost, error) {
		raw, err := g.complete(ctx, postSystemPrompt, user)
		if err != nil {
			return nil, err
		}
		return parseGeneratedPost(raw, req)
	})
}

// GenerateHashtags suggests up to n hashtags for content.
func (g *Generator) GenerateHashtags(ctx context.Context, content string, n int) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return nil, postfmt.ErrEmptyContent
	}
	if n <= 0 {
		n = 5
	}
	user := fmt.Sprintf("Suggest up to %d hashtags for this post. Answer as {\"hashtags\": [\"#tag\", ...]}.\n\nPost:\n%s", n, content)
	return withRetry(ctx, g.maxRetries, g.backoff, g.retryLogger("generate_hashtags"), func() ([]string, error) {
		raw, err := g.complete(ctx, hashtagSystemPrompt, user)
		if err != nil {
			return nil, err
		}
		var out struct {
			Hashtags []string `json:"hashtags"`
		}
		if err := decodeJSON(raw, &out); err != nil {
			return nil, err
		}
		tags, err := checkHashtags(out.Hashtags)
		if err != nil {
			return nil, err
		}
		if len(tags) == 0 {
			return nil, fmt.Errorf("%w: no hashtags", ErrInvalidResponse)
		}
		if len(tags) > n {
			tags = tags[:n]
		}
		return tags, nil
	})
}

// ImproveContent rewrites content for platform following instruction
// (for example "shorter" or "more urgent").
func (g *Generator) ImproveContent(ctx context.Context, content string, platform publisher.Platform, instruction string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", postfmt.ErrEmptyContent
	}
	if instruction == "" {
		instruction = "make it more engaging"
	}
	limit := postfmt.Limit(platform)
	user := fmt.Sprintf("Rewrite this %s post: %s. Keep it under %d characters. Answer as {\"content\": \"...\"}.\n\nPost:\n%s",
		platform, instruction, limit, content)
	return withRetry(ctx, g.maxRetries, g.backoff, g.retryLogger("improve_content"), func() (string, error) {
		raw, err := g.complete(ctx, postSystemPrompt, user)
		if err != nil {
			return "", err
		}
		var out struct {
			Content string `json:"content"`
		}
		if err := decodeJSON(raw, &out); err != nil {
			return "", err
		}
		out.Content = strings.TrimSpace(out.Content)
		if out.Content == "" {
			return "", fmt.Errorf("%w: empty content", ErrInvalidResponse)
		}
		if err := postfmt.Validate(out.Content, nil, []publisher.Platform{platform}); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return out.Content, nil
	})
}

func (g *Generator) complete(ctx context.Context, system, user string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	raw, err := g.llm.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	g.log.Debug("completion received",
		zap.Duration("latency", time.Since(start)),
		zap.Int("response_len", len(raw)))
	return raw, nil
}

func (g *Generator) retryLogger(op string) func(int, error) {
	return func(attempt int, err error) {
		g.log.Warn("retrying content generation",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
}

// parseGeneratedPost decodes raw and checks it against the post schema:
// non-empty content within every requested platform's limit, well-formed
// hashtags, and variants only for known platforms within their own limits.
func parseGeneratedPost(raw string, req PostRequest) (*GeneratedPost, error) {
	var out GeneratedPost
	if err := decodeJSON(raw, &out); err != nil {
		return nil, err
	}
	out.Content = strings.TrimSpace(out.Content)
	if out.Content == "" {
		return nil, fmt.Errorf("%w: content is empty", ErrInvalidResponse)
	}
	tags, err := checkHashtags(out.Hashtags)
	if err != nil {
		return nil, err
	}
	if len(tags) > req.MaxHashtags {
		tags = tags[:req.MaxHashtags]
	}
	out.Hashtags = tags
	if err := postfmt.Validate(out.Content, out.Hashtags, req.Platforms); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	for p, v := range out.Variants {
		if postfmt.Limit(p) == 0 {
			return nil, fmt.Errorf("%w: variant for unknown platform %q", ErrInvalidResponse, p)
		}
		if err := postfmt.Validate(v, nil, []publisher.Platform{p}); err != nil {
			return nil, fmt.Errorf("%w: variant: %v", ErrInvalidResponse, err)
		}
	}
	return &out, nil
}

// checkHashtags requires every entry to be a hashtag word; a leading '#' is
// added when the model left it out.
func checkHashtags(tags []string) ([]string, error) {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if !postfmt.ValidHashtag("#" + strings.TrimPrefix(t, "#")) {
			return nil, fmt.Errorf("%w: bad hashtag %q", ErrInvalidResponse, t)
		}
	}
	return postfmt.NormalizeHashtags(tags), nil
}

// decodeJSON unmarshals the model answer, tolerating a ```json fence.
func decodeJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
