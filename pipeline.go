package rescuepost

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/rescuepost/analytics"
	"github.com/eringen/rescuepost/postfmt"
	"github.com/eringen/rescuepost/publisher"
	"github.com/eringen/rescuepost/scheduler"
)

// AttemptRecorder stores per-platform publish outcomes.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a *analytics.Attempt) error
}

// Pipeline owns the post lifecycle: editing, scheduling and publishing.
type Pipeline struct {
	store      *Store
	pub        publisher.Publisher
	recorder   AttemptRecorder
	log        *zap.Logger
	now        func() time.Time
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	onChange   func(org string)

	mu       sync.Mutex
	inFlight map[string]struct{}
	sched    *scheduler.Scheduler
	ctx      context.Context
	wg       sync.WaitGroup
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithAttemptRecorder records every platform outcome to r.
func WithAttemptRecorder(r AttemptRecorder) PipelineOption {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithPipelineClock replaces time.Now.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithRetryPolicy sets how many failed attempts mark a post failed and the
// base delay before a failed scheduled post is tried again.
func WithRetryPolicy(maxRetries int, delay time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if maxRetries > 0 {
			p.maxRetries = maxRetries
		}
		if delay > 0 {
			p.retryDelay = delay
		}
	}
}

// WithPublishTimeout bounds each publish attempt.
func WithPublishTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithChangeHook calls fn with the organization ID after a post is
// published or deleted, so feed caches can be invalidated.
func WithChangeHook(fn func(org string)) PipelineOption {
	return func(p *Pipeline) {
		p.onChange = fn
	}
}

// NewPipeline creates a Pipeline over store publishing through pub.
func NewPipeline(store *Store, pub publisher.Publisher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:      store,
		pub:        pub,
		log:        zap.NewNop(),
		now:        time.Now,
		maxRetries: 3,
		retryDelay: time.Minute,
		timeout:    30 * time.Second,
		inFlight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// validatePost normalizes p in place and rejects content no platform would accept.
func validatePost(p *Post) error {
	p.Content = strings.TrimSpace(p.Content)
	p.Title = strings.TrimSpace(p.Title)
	p.Recurrence = strings.TrimSpace(p.Recurrence)
	if p.OrgID == "" {
		return fmt.Errorf("%w: organization is required", ErrValidation)
	}
	if len(p.Platforms) == 0 {
		return fmt.Errorf("%w: at least one platform is required", ErrValidation)
	}
	names := platformsToStrings(p.Platforms)
	platforms, err := publisher.ParsePlatforms(names)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	p.Platforms = platforms
	p.Hashtags = postfmt.NormalizeHashtags(p.Hashtags)
	p.MediaURLs = FilterEmpty(p.MediaURLs)
	for _, u := range p.MediaURLs {
		if postfmt.SafeURL(u) == "" && !strings.HasPrefix(u, "/") {
			return fmt.Errorf("%w: media url %q is not allowed", ErrValidation, u)
		}
	}
	if err := postfmt.Validate(p.Content, p.Hashtags, p.Platforms); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if p.Recurrence != "" {
		if len(strings.Fields(p.Recurrence)) != 5 || !gronx.IsValid(p.Recurrence) {
			return fmt.Errorf("%w: invalid recurrence %q, expected 5-field cron", ErrValidation, p.Recurrence)
		}
	}
	return nil
}

// lock marks id as being published. It fails with ErrPublishInProgress when
// an attempt is already running.
func (pl *Pipeline) lock(id string) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if _, ok := pl.inFlight[id]; ok {
		return ErrPublishInProgress
	}
	pl.inFlight[id] = struct{}{}
	return nil
}

func (pl *Pipeline) unlock(id string) {
	pl.mu.Lock()
	delete(pl.inFlight, id)
	pl.mu.Unlock()
}

func (pl *Pipeline) enqueue(p Post) {
	pl.mu.Lock()
	s := pl.sched
	pl.mu.Unlock()
	if s != nil && p.Status == StatusScheduled && !p.ScheduledAt.IsZero() {
		s.Add(scheduler.Event{PostID: p.ID, At: p.ScheduledAt})
	}
}

func (pl *Pipeline) dequeue(id string) {
	pl.mu.Lock()
	s := pl.sched
	pl.mu.Unlock()
	if s != nil {
		s.Remove(id)
	}
}

// GetPost returns a post of org.
func (pl *Pipeline) GetPost(ctx context.Context, org, id string) (Post, error) {
	return pl.store.GetPost(ctx, org, id)
}

// ListPosts returns posts of org matching f, newest first.
func (pl *Pipeline) ListPosts(ctx context.Context, org string, f PostFilter) ([]Post, error) {
	return pl.store.ListPosts(ctx, org, f)
}

// CreatePost stores a new post. It starts as a draft, or as scheduled when
// ScheduledAt is set (which must then be in the future).
func (pl *Pipeline) CreatePost(ctx context.Context, p Post) (Post, error) {
	if err := validatePost(&p); err != nil {
		return Post{}, err
	}
	if _, err := pl.store.GetOrganization(ctx, p.OrgID); err != nil {
		return Post{}, err
	}
	now := pl.now()
	p.ID = uuid.NewString()
	p.Status = StatusDraft
	p.PublishedAt = time.Time{}
	p.Error = ""
	p.RetryCount = 0
	p.ExternalIDs = nil
	p.CreatedAt = now
	p.UpdatedAt = now
	if !p.ScheduledAt.IsZero() {
		if !p.ScheduledAt.After(now) {
			return Post{}, ErrScheduleInPast
		}
		p.Status = StatusScheduled
	}
	if err := pl.store.SavePost(ctx, p); err != nil {
		return Post{}, fmt.Errorf("save post: %w", err)
	}
	pl.enqueue(p)
	pl.log.Info("post created",
		zap.String("org", p.OrgID),
		zap.String("post_id", p.ID),
		zap.String("status", string(p.Status)))
	return p, nil
}

// UpdatePost replaces the editable fields (title, content, platforms,
// hashtags, media, recurrence) of an existing post. Published posts cannot
// be edited.
func (pl *Pipeline) UpdatePost(ctx context.Context, in Post) (Post, error) {
	if err := pl.lock(in.ID); err != nil {
		return Post{}, err
	}
	defer pl.unlock(in.ID)
	p, err := pl.store.GetPost(ctx, in.OrgID, in.ID)
	if err != nil {
		return Post{}, err
	}
	if p.Status == StatusPublished {
		return Post{}, fmt.Errorf("%w: published posts cannot be edited", ErrInvalidTransition)
	}
	p.Title = in.Title
	p.Content = in.Content
	p.Platforms = in.Platforms
	p.Hashtags = in.Hashtags
	p.MediaURLs = in.MediaURLs
	p.Recurrence = in.Recurrence
	p.AIGenerated = p.AIGenerated || in.AIGenerated
	if err := validatePost(&p); err != nil {
		return Post{}, err
	}
	p.UpdatedAt = pl.now()
	if err := pl.store.SavePost(ctx, p); err != nil {
		return Post{}, fmt.Errorf("save post: %w", err)
	}
	return p, nil
}

// DeletePost removes a post and cancels its pending schedule. A post that
// is being published cannot be deleted until the attempt finishes.
func (pl *Pipeline) DeletePost(ctx context.Context, org, id string) error {
	if err := pl.lock(id); err != nil {
		return err
	}
	defer pl.unlock(id)
	if err := pl.store.DeletePost(ctx, org, id); err != nil {
		return err
	}
	pl.dequeue(id)
	pl.log.Info("post deleted", zap.String("org", org), zap.String("post_id", id))
	if pl.onChange != nil {
		pl.onChange(org)
	}
	return nil
}

// DuplicatePost copies a post of any status into a new draft.
func (pl *Pipeline) DuplicatePost(ctx context.Context, org, id string) (Post, error) {
	src, err := pl.store.GetPost(ctx, org, id)
	if err != nil {
		return Post{}, err
	}
	now := pl.now()
	cp := src
	cp.ID = uuid.NewString()
	if cp.Title != "" {
		cp.Title += " (copy)"
	}
	cp.Platforms = append([]publisher.Platform(nil), src.Platforms...)
	cp.Hashtags = append([]string(nil), src.Hashtags...)
	cp.MediaURLs = append([]string(nil), src.MediaURLs...)
	cp.Status = StatusDraft
	cp.ScheduledAt = time.Time{}
	cp.PublishedAt = time.Time{}
	cp.Error = ""
	cp.RetryCount = 0
	cp.ExternalIDs = nil
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if err := pl.store.SavePost(ctx, cp); err != nil {
		return Post{}, fmt.Errorf("save post: %w", err)
	}
	return cp, nil
}

// SchedulePost moves a draft, scheduled or failed post to scheduled at at.
// Rescheduling a failed post resets its retry count.
func (pl *Pipeline) SchedulePost(ctx context.Context, org, id string, at time.Time) (Post, error) {
	if err := pl.lock(id); err != nil {
		return Post{}, err
	}
	defer pl.unlock(id)
	p, err := pl.store.GetPost(ctx, org, id)
	if err != nil {
		return Post{}, err
	}
	if p.Status == StatusPublished {
		return Post{}, fmt.Errorf("%w: post is already published", ErrInvalidTransition)
	}
	now := pl.now()
	if !at.After(now) {
		return Post{}, ErrScheduleInPast
	}
	if p.Status == StatusFailed {
		p.RetryCount = 0
		p.Error = ""
	}
	p.Status = StatusScheduled
	p.ScheduledAt = at
	p.UpdatedAt = now
	if err := pl.store.SavePost(ctx, p); err != nil {
		return Post{}, fmt.Errorf("save post: %w", err)
	}
	pl.enqueue(p)
	pl.log.Info("post scheduled",
		zap.String("org", org),
		zap.String("post_id", id),
		zap.Time("at", at))
	return p, nil
}

// UnschedulePost moves a scheduled post back to draft.
func (pl *Pipeline) UnschedulePost(ctx context.Context, org, id string) (Post, error) {
	if err := pl.lock(id); err != nil {
		return Post{}, err
	}
	defer pl.unlock(id)
	p, err := pl.store.GetPost(ctx, org, id)
	if err != nil {
		return Post{}, err
	}
	if p.Status != StatusScheduled {
		return Post{}, fmt.Errorf("%w: post is %s, not scheduled", ErrInvalidTransition, p.Status)
	}
	p.Status = StatusDraft
	p.ScheduledAt = time.Time{}
	p.UpdatedAt = pl.now()
	if err := pl.store.SavePost(ctx, p); err != nil {
		return Post{}, fmt.Errorf("save post: %w", err)
	}
	pl.dequeue(id)
	return p, nil
}

// PublishNow runs a publish attempt immediately. On failure the updated
// post is returned together with an error wrapping publisher.ErrPublishFailed.
func (pl *Pipeline) PublishNow(ctx context.Context, org, id string) (Post, error) {
	if err := pl.lock(id); err != nil {
		return Post{}, err
	}
	defer pl.unlock(id)

	p, err := pl.store.GetPost(ctx, org, id)
	if err != nil {
		return Post{}, err
	}
	if p.Status == StatusPublished {
		return Post{}, fmt.Errorf("%w: post is already published", ErrInvalidTransition)
	}
	return pl.attempt(ctx, p)
}

// PublishDue publishes every scheduled post whose time has come, once.
// Posts with an attempt already running are skipped. It returns the number
// of posts published.
func (pl *Pipeline) PublishDue(ctx context.Context) (int, error) {
	due, err := pl.store.ListDue(ctx, pl.now())
	if err != nil {
		return 0, fmt.Errorf("list due posts: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	var published atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range due {
		g.Go(func() error {
			ok, err := pl.publishScheduled(gctx, p.ID)
			if err != nil && gctx.Err() == nil {
				pl.log.Warn("scheduled publish failed",
					zap.String("org", p.OrgID),
					zap.String("post_id", p.ID),
					zap.Error(err))
			}
			if ok {
				published.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(published.Load()), ctx.Err()
}

// publishScheduled attempts a due scheduled post. It reports whether the
// post was published; posts that are busy, no longer scheduled or not yet
// due are skipped without error.
func (pl *Pipeline) publishScheduled(ctx context.Context, id string) (bool, error) {
	if err := pl.lock(id); err != nil {
		return false, nil
	}
	defer pl.unlock(id)

	p, err := pl.store.FindPost(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.Status != StatusScheduled || p.ScheduledAt.IsZero() || p.ScheduledAt.After(pl.now()) {
		return false, nil
	}
	p, err = pl.attempt(ctx, p)
	return err == nil && p.Status == StatusPublished, err
}

type platformOutcome struct {
	platform publisher.Platform
	result   publisher.Result
	err      error
	started  time.Time
	took     time.Duration
}

// attempt publishes p to every platform that has no external ID yet. The
// caller holds the post's lock.
func (pl *Pipeline) attempt(ctx context.Context, p Post) (Post, error) {
	var pending []publisher.Platform
	for _, platform := range p.Platforms {
		if _, done := p.ExternalIDs[platform]; !done {
			pending = append(pending, platform)
		}
	}

	actx := ctx
	if pl.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, pl.timeout)
		defer cancel()
	}

	text := p.FullText()
	outcomes := make([]platformOutcome, len(pending))
	var g errgroup.Group
	for i, platform := range pending {
		g.Go(func() error {
			start := pl.now()
			res, err := pl.pub.Publish(actx, publisher.Request{
				PostID:    p.ID,
				OrgID:     p.OrgID,
				Platform:  platform,
				Content:   text,
				MediaURLs: p.MediaURLs,
			})
			outcomes[i] = platformOutcome{platform: platform, result: res, err: err, started: start, took: pl.now().Sub(start)}
			return err
		})
	}
	_ = g.Wait()

	var failures []string
	for _, o := range outcomes {
		pl.record(ctx, p, o)
		if o.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", o.platform, o.err))
			continue
		}
		if p.ExternalIDs == nil {
			p.ExternalIDs = make(map[publisher.Platform]string)
		}
		p.ExternalIDs[o.platform] = o.result.ExternalID
	}

	now := pl.now()
	p.UpdatedAt = now
	if len(failures) == 0 {
		return pl.markPublished(ctx, p, now)
	}
	return pl.markFailedAttempt(ctx, p, now, strings.Join(failures, "; "))
}

func (pl *Pipeline) markPublished(ctx context.Context, p Post, now time.Time) (Post, error) {
	p.Status = StatusPublished
	p.PublishedAt = now
	p.Error = ""
	p.RetryCount = 0
	// UpdatePost reports ErrNotFound when the row was deleted while the
	// attempt ran; the result is dropped rather than recreating the post.
	if err := pl.store.UpdatePost(ctx, p); err != nil {
		return Post{}, err
	}
	pl.log.Info("post published",
		zap.String("org", p.OrgID),
		zap.String("post_id", p.ID),
		zap.Int("platforms", len(p.Platforms)))
	if p.Recurrence != "" {
		if err := pl.scheduleNextOccurrence(ctx, p, now); err != nil {
			pl.log.Error("schedule next occurrence failed",
				zap.String("org", p.OrgID),
				zap.String("post_id", p.ID),
				zap.Error(err))
		}
	}
	if pl.onChange != nil {
		pl.onChange(p.OrgID)
	}
	return p, nil
}

func (pl *Pipeline) markFailedAttempt(ctx context.Context, p Post, now time.Time, msg string) (Post, error) {
	p.RetryCount++
	p.Error = postfmt.Truncate(msg, maxErrorLen)
	switch {
	case p.RetryCount >= pl.maxRetries:
		p.Status = StatusFailed
	case p.Status == StatusScheduled:
		p.ScheduledAt = now.Add(retryBackoff(pl.retryDelay, p.RetryCount))
	}
	if err := pl.store.UpdatePost(ctx, p); err != nil {
		return Post{}, err
	}
	if p.Status == StatusScheduled {
		pl.enqueue(p)
	}
	pl.log.Warn("publish attempt failed",
		zap.String("org", p.OrgID),
		zap.String("post_id", p.ID),
		zap.String("status", string(p.Status)),
		zap.Int("retry_count", p.RetryCount),
		zap.String("error", msg))
	return p, fmt.Errorf("%w: %s", publisher.ErrPublishFailed, msg)
}

// maxErrorLen caps the failure message kept on a post.
const maxErrorLen = 500

// maxRetryDelay caps the exponential backoff between attempts.
const maxRetryDelay = 24 * time.Hour

// retryBackoff returns the wait before retry n (1-based): delay doubled for
// each earlier retry, capped at maxRetryDelay.
func retryBackoff(delay time.Duration, n int) time.Duration {
	if delay <= 0 {
		return 0
	}
	d := delay
	for i := 1; i < n; i++ {
		if d >= maxRetryDelay/2 {
			return maxRetryDelay
		}
		d *= 2
	}
	return min(d, maxRetryDelay)
}

// scheduleNextOccurrence creates the next scheduled copy of a recurring post.
func (pl *Pipeline) scheduleNextOccurrence(ctx context.Context, p Post, now time.Time) error {
	ref := now
	if p.ScheduledAt.After(ref) {
		ref = p.ScheduledAt
	}
	next, err := gronx.NextTickAfter(p.Recurrence, ref, false)
	if err != nil {
		return fmt.Errorf("next occurrence of %q: %w", p.Recurrence, err)
	}
	cp := p
	cp.ID = uuid.NewString()
	cp.Status = StatusScheduled
	cp.ScheduledAt = next
	cp.PublishedAt = time.Time{}
	cp.Error = ""
	cp.RetryCount = 0
	cp.ExternalIDs = nil
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if err := pl.store.SavePost(ctx, cp); err != nil {
		return err
	}
	pl.enqueue(cp)
	pl.log.Info("recurring post scheduled",
		zap.String("org", cp.OrgID),
		zap.String("post_id", cp.ID),
		zap.String("from_post_id", p.ID),
		zap.Time("at", next))
	return nil
}

func (pl *Pipeline) record(ctx context.Context, p Post, o platformOutcome) {
	if pl.recorder == nil {
		return
	}
	a := &analytics.Attempt{
		PostID:      p.ID,
		OrgID:       p.OrgID,
		Platform:    o.platform,
		Success:     o.err == nil,
		ExternalID:  o.result.ExternalID,
		AttemptedAt: o.started,
		Duration:    o.took,
	}
	if o.err != nil {
		a.Error = o.err.Error()
	}
	if err := pl.recorder.RecordAttempt(ctx, a); err != nil {
		pl.log.Error("record attempt failed", zap.String("post_id", p.ID), zap.Error(err))
	}
}

// Stats returns the number of posts per status for org.
func (pl *Pipeline) Stats(ctx context.Context, org string) (StatusCounts, error) {
	return pl.store.CountByStatus(ctx, org)
}

// Upcoming returns the next limit scheduled posts of org.
func (pl *Pipeline) Upcoming(ctx context.Context, org string, limit int) ([]Post, error) {
	return pl.store.ListUpcoming(ctx, org, pl.now(), limit)
}

// Start loads scheduled posts, publishes the ones missed while the process
// was down and hands the rest to the timer loop. When pollInterval is
// positive PublishDue also runs on that interval. Background work stops
// when ctx is cancelled; Wait blocks until it has.
func (pl *Pipeline) Start(ctx context.Context, pollInterval time.Duration) error {
	pl.mu.Lock()
	if pl.sched != nil {
		pl.mu.Unlock()
		return errors.New("rescuepost: pipeline already started")
	}
	pl.ctx = ctx
	pl.sched = scheduler.New(ctx, pl.trigger, scheduler.WithClock(pl.now))
	pl.mu.Unlock()

	posts, err := pl.store.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled posts: %w", err)
	}
	entries := make([]scheduler.Entry, len(posts))
	for i, p := range posts {
		entries[i] = scheduler.Entry{PostID: p.ID, ScheduledAt: p.ScheduledAt}
	}
	missed, future := scheduler.LoadSchedules(entries, pl.now())
	for _, e := range future {
		pl.sched.Add(e)
	}
	for _, id := range missed {
		pl.trigger(id)
	}
	pl.log.Info("pipeline started",
		zap.Int("scheduled", len(future)),
		zap.Int("missed", len(missed)))

	if pollInterval > 0 {
		pl.wg.Add(1)
		go pl.poll(ctx, pollInterval)
	}
	return nil
}

// trigger publishes a due post in the background.
func (pl *Pipeline) trigger(id string) {
	pl.wg.Add(1)
	go func() {
		defer pl.wg.Done()
		if _, err := pl.publishScheduled(pl.ctx, id); err != nil && pl.ctx.Err() == nil {
			pl.log.Warn("scheduled publish failed", zap.String("post_id", id), zap.Error(err))
		}
	}()
}

func (pl *Pipeline) poll(ctx context.Context, interval time.Duration) {
	defer pl.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pl.PublishDue(ctx)
			if err != nil && ctx.Err() == nil {
				pl.log.Error("publish due failed", zap.Error(err))
			}
			if n > 0 {
				pl.log.Debug("poll published posts", zap.Int("count", n))
			}
		}
	}
}

// Wait blocks until the scheduler and every background attempt started by
// Start have finished. Cancel the context given to Start first.
func (pl *Pipeline) Wait() {
	pl.mu.Lock()
	s := pl.sched
	pl.mu.Unlock()
	if s != nil {
		<-s.Done()
	}
	pl.wg.Wait()
}
