package rescuepost

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/rescuepost/publisher"
)

const testAPIToken = "test-token"

// textView renders a fixed marker so tests can tell which view ran.
func textView(name string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<p>"+name+"</p>")
		return err
	})
}

func stubViews() ViewFuncs {
	return ViewFuncs{
		Index:          func([]Organization, Config) templ.Component { return textView("index") },
		OrgFeed:        func(o Organization, _ []Post, _ Config) templ.Component { return textView("feed " + o.ID) },
		AdminLogin:     func(bool, string) templ.Component { return textView("login") },
		AdminDashboard: func(DashboardData) templ.Component { return textView("dashboard") },
		AdminEditor:    func(PostFormData) templ.Component { return textView("editor") },
		AdminMedia:     func(string, []Media, string) templ.Component { return textView("media") },
		NotFound:       func() templ.Component { return textView("not found") },
		ServerError:    func() templ.Component { return textView("server error") },
	}
}

// stubCompleter answers every prompt with a fixed completion.
type stubCompleter struct {
	mu     sync.Mutex
	answer string
	calls  int
}

func (s *stubCompleter) Complete(context.Context, string, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.answer, nil
}

type apiFixture struct {
	app   *App
	pub   *scriptedPublisher
	clock *testClock
	llm   *stubCompleter
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	dir := t.TempDir()
	f := &apiFixture{
		pub:   &scriptedPublisher{},
		clock: newTestClock(),
		llm:   &stubCompleter{answer: `{"content":"Meet Pepper, a sweet senior cat.","hashtags":["adoptme","#SeniorCat"]}`},
	}
	cfg := Config{
		URL:           "https://rescue.example",
		DatabasePath:  filepath.Join(dir, "rescuepost.db"),
		AdminPassword: "hunter2",
		SessionSecret: "0123456789abcdef0123456789abcdef",
		APIToken:      testAPIToken,
		Organizations: []Organization{
			{ID: "happy-paws", Name: "Happy Paws"},
			{ID: "second-chance", Name: "Second Chance"},
		},
	}
	cfg.AI.MaxRetries = 1
	f.app = New(cfg, stubViews(),
		WithPublisher(f.pub),
		WithCompleter(f.llm),
		WithClock(f.clock.Now),
		WithStaticDir(dir),
	)
	require.NoError(t, f.app.Init(context.Background()))
	t.Cleanup(func() { f.app.Close() })
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+testAPIToken)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.app.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const biscuitJSON = `{"title":"Biscuit","content":"Biscuit is a 3 year old beagle looking for a home.","platforms":["twitter","fb"],"hashtags":["adoptdontshop"]}`

func TestAPIRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/orgs/happy-paws/posts", nil)
	rec := httptest.NewRecorder()
	f.app.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/orgs/happy-paws/posts", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer wrong")
	rec = httptest.NewRecorder()
	f.app.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody[apiError](t, rec).Error)
}

func TestAPIUnknownOrg(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/api/orgs/nobody/posts", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIPostLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/orgs/happy-paws/posts", biscuitJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[Post](t, rec)
	assert.Equal(t, StatusDraft, created.Status)
	assert.Equal(t, []publisher.Platform{publisher.Twitter, publisher.Facebook}, created.Platforms)
	assert.Equal(t, []string{"#adoptdontshop"}, created.Hashtags)

	rec = f.do(t, http.MethodGet, "/api/orgs/happy-paws/posts?platform=twitter", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]Post](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/orgs/second-chance/posts/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "posts are scoped to their organization")

	rec = f.do(t, http.MethodPost, "/api/orgs/happy-paws/posts/"+created.ID+"/schedule", `{"scheduled_at":"2026-03-11T10:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, StatusScheduled, decodeBody[Post](t, rec).Status)

	rec = f.do(t, http.MethodGet, "/api/orgs/happy-paws/upcoming", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]Post](t, rec), 1)

	rec = f.do(t, http.MethodPost, "/api/orgs/happy-paws/posts/"+created.ID+"/publish", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	published := decodeBody[Post](t, rec)
	assert.Equal(t, StatusPublished, published.Status)
	assert.Len(t, published.ExternalIDs, 2)

	rec = f.do(t, http.MethodPut, "/api/orgs/happy-paws/posts/"+created.ID, biscuitJSON)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "published posts are immutable")

	rec = f.do(t, http.MethodPost, "/api/orgs/happy-paws/posts/"+created.ID+"/duplicate", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	dup := decodeBody[Post](t, rec)
	assert.Equal(t, StatusDraft, dup.Status)
	assert.NotEqual(t, created.ID, dup.ID)

	rec = f.do(t, http.MethodGet, "/api/orgs/happy-paws/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[statsResponse](t, rec)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Counts[StatusPublished])

	rec = f.do(t, http.MethodDelete, "/api/orgs/happy-paws/posts/"+dup.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/orgs/happy-paws/posts/"+dup.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIValidationErrors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty content", `{"content":"  ","platforms":["twitter"]}`},
		{"unknown platform", `{"content":"hi","platforms":["myspace"]}`},
		{"no platforms", `{"content":"hi"}`},
		{"too long for twitter", `{"content":"` + strings.Repeat("a", 281) + `","platforms":["twitter"]}`},
		{"bad recurrence", `{"content":"hi","platforms":["twitter"],"recurrence":"every day"}`},
		{"schedule in past", `{"content":"hi","platforms":["twitter"],"scheduled_at":"2020-01-01T00:00:00Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/orgs/happy-paws/posts", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody[apiError](t, rec).Error)
		})
	}
}

func TestAPIPublishFailure(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/orgs/happy-paws/posts", biscuitJSON)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[Post](t, rec).ID

	f.pub.setFail(publisher.Twitter)
	rec = f.do(t, http.MethodPost, "/api/orgs/happy-paws/posts/"+id+"/publish", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody[struct {
		Error string `json:"error"`
		Post  Post   `json:"post"`
	}](t, rec)
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, 1, body.Post.RetryCount)
	assert.Contains(t, body.Post.ExternalIDs, publisher.Facebook)
	assert.NotContains(t, body.Post.ExternalIDs, publisher.Twitter)
}

func TestAPIGenerate(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/orgs/happy-paws/generate", `{"topic":"Senior cat adoption","animal_name":"Pepper","platforms":["instagram"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Content  string   `json:"content"`
		Hashtags []string `json:"hashtags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Meet Pepper, a sweet senior cat.", out.Content)
	assert.Equal(t, []string{"#adoptme", "#SeniorCat"}, out.Hashtags)

	rec = f.do(t, http.MethodPost, "/api/orgs/happy-paws/generate", `{"topic":" "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	f.llm.mu.Lock()
	f.llm.answer = "not json"
	f.llm.mu.Unlock()
	rec = f.do(t, http.MethodPost, "/api/orgs/happy-paws/generate", `{"topic":"Anything"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPublicPages(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	p, err := f.app.Pipeline.CreatePost(ctx, Post{
		OrgID:     "happy-paws",
		Content:   "Biscuit found a home!",
		Platforms: []publisher.Platform{publisher.Facebook},
	})
	require.NoError(t, err)
	_, err = f.app.Pipeline.PublishNow(ctx, "happy-paws", p.ID)
	require.NoError(t, err)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		f.app.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/o/happy-paws/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feed happy-paws")

	rec = get("/o/nobody/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")

	rec = get("/o/happy-paws/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Biscuit found a home!")
	assert.Contains(t, rec.Body.String(), "urn:uuid:"+p.ID)

	rec = get("/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://rescue.example/o/second-chance/")

	rec = get("/robots.txt")
	assert.Contains(t, rec.Body.String(), "Disallow: /admin/")
}

func TestAdminRequiresLogin(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.app.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "login")

	rec = httptest.NewRecorder()
	f.app.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/post/new/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/", rec.Header().Get(echo.HeaderLocation))
}
