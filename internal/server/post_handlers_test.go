package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Author       string   `json:"author"`
	AuthorID     string   `json:"author_id"`
	Points       int      `json:"points"`
	Upvotes      []string `json:"upvotes"`
	Downvotes    []string `json:"downvotes"`
	Domain       string   `json:"domain"`
	HasUpvoted   bool     `json:"has_upvoted"`
	HasDownvoted bool     `json:"has_downvoted"`
	TimeAgo      string   `json:"time_ago"`
}

type voteResponse struct {
	Applied bool          `json:"applied"`
	Post    *postResponse `json:"post"`
}

func (e *testEnv) createPost(t *testing.T, token, title, link string) postResponse {
	t.Helper()
	var post postResponse
	status := e.do(t, http.MethodPost, "/api/posts", token, fiber.Map{
		"title": title,
		"url":   link,
	}, &post)
	require.Equal(t, http.StatusCreated, status)
	return post
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	sarah := env.signup(t, "sarah@example.com", "Sarah Chen")

	post := env.createPost(t, sarah.Token, "The Future of Web Development", "www.techcrunch.com/future")
	assert.Equal(t, "https://www.techcrunch.com/future", post.URL)
	assert.Equal(t, "techcrunch.com", post.Domain)
	assert.Equal(t, "Sarah Chen", post.Author)
	assert.Equal(t, sarah.User.ID, post.AuthorID)
	assert.Equal(t, 1, post.Points)
	assert.Equal(t, []string{sarah.User.ID}, post.Upvotes)
	assert.Empty(t, post.Downvotes)
	assert.True(t, post.HasUpvoted)
	assert.Equal(t, "just now", post.TimeAgo)

	// written through to the database
	stored, err := env.srv.postRepo.GetByID(t.Context(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Points)
}

func TestCreatePostAuthorFallsBackToEmail(t *testing.T) {
	env := newTestEnv(t)
	anon := env.signup(t, "plain@example.com", "")

	post := env.createPost(t, anon.Token, "t", "go.dev")
	assert.Equal(t, "plain@example.com", post.Author)
}

func TestCreatePostKeepsLinkAsTyped(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "u@example.com", "")

	post := env.createPost(t, user.Token, "Homepage", "my site")
	assert.Equal(t, "https://my site", post.URL)
	assert.Empty(t, post.Domain)

	post = env.createPost(t, user.Token, "CDN", "//cdn.example.com/x")
	assert.Equal(t, "https:////cdn.example.com/x", post.URL)
	assert.Equal(t, "cdn.example.com", post.Domain)

	// previews still need a host
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/preview?url=my%20site", "", nil, nil))
}

func TestCreatePostRejections(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "u@example.com", "")

	assert.Equal(t, http.StatusUnauthorized,
		env.do(t, http.MethodPost, "/api/posts", "", fiber.Map{"title": "t", "url": "x.io"}, nil))

	for _, body := range []fiber.Map{
		{"title": "   ", "url": "x.io"},
		{"title": "t", "url": ""},
	} {
		var out map[string]any
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/posts", user.Token, body, &out))
		assert.Equal(t, "VALIDATION_ERROR", out["code"])
	}

	var posts []postResponse
	env.do(t, http.MethodGet, "/api/posts", "", nil, &posts)
	assert.Empty(t, posts)
}

func TestFeedRanking(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice@example.com", "Alice")
	bob := env.signup(t, "bob@example.com", "Bob")
	carol := env.signup(t, "carol@example.com", "Carol")

	first := env.createPost(t, alice.Token, "first", "a.io")
	second := env.createPost(t, alice.Token, "second", "b.io")

	var posts []postResponse
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts", "", nil, &posts))
	require.Len(t, posts, 2)
	// equal points: the newer post sits on top
	assert.Equal(t, second.ID, posts[0].ID)

	for _, voter := range []authResponse{bob, carol} {
		var vote voteResponse
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/posts/"+first.ID+"/vote", voter.Token,
			fiber.Map{"direction": "up"}, &vote))
		assert.True(t, vote.Applied)
	}

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts", bob.Token, nil, &posts))
	assert.Equal(t, first.ID, posts[0].ID)
	assert.Equal(t, 3, posts[0].Points)
	assert.True(t, posts[0].HasUpvoted)
	assert.False(t, posts[1].HasUpvoted)

	// anonymous viewers get no flags
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts?limit=1&offset=1", "", nil, &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.False(t, posts[0].HasUpvoted)
}

func TestVoteToggle(t *testing.T) {
	env := newTestEnv(t)
	author := env.signup(t, "author@example.com", "")
	voter := env.signup(t, "voter@example.com", "")
	post := env.createPost(t, author.Token, "t", "x.io")
	path := "/api/posts/" + post.ID + "/vote"

	steps := []struct {
		direction string
		points    int
		upvoted   bool
		downvoted bool
	}{
		{"up", 2, true, false},
		{"down", 0, false, true},
		{"down", 1, false, false},
		{"DOWN", 0, false, true},
		{"up", 2, true, false},
		{"up", 1, false, false},
	}
	for _, step := range steps {
		var vote voteResponse
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path, voter.Token,
			fiber.Map{"direction": step.direction}, &vote))
		require.True(t, vote.Applied)
		require.NotNil(t, vote.Post)
		assert.Equal(t, step.points, vote.Post.Points, "after %s", step.direction)
		assert.Equal(t, step.upvoted, vote.Post.HasUpvoted)
		assert.Equal(t, step.downvoted, vote.Post.HasDownvoted)
	}
}

func TestVoteEdgeCases(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "u@example.com", "")

	var vote voteResponse
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/posts/missing/vote", user.Token,
		fiber.Map{"direction": "up"}, &vote))
	assert.False(t, vote.Applied)
	assert.Nil(t, vote.Post)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/posts/missing/vote", user.Token,
		fiber.Map{"direction": "sideways"}, nil))
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/posts/missing/vote", "",
		fiber.Map{"direction": "up"}, nil))
}

func TestGetPost(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "u@example.com", "")
	post := env.createPost(t, user.Token, "t", "x.io")

	var got postResponse
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts/"+post.ID, user.Token, nil, &got))
	assert.Equal(t, post.ID, got.ID)
	assert.True(t, got.HasUpvoted)

	var out map[string]any
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/posts/missing", "", nil, &out))
	assert.Equal(t, "NOT_FOUND", out["code"])
}

func TestFeedSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "u@example.com", "")
	voter := env.signup(t, "v@example.com", "")
	post := env.createPost(t, user.Token, "t", "x.io")
	env.do(t, http.MethodPost, "/api/posts/"+post.ID+"/vote", voter.Token, fiber.Map{"direction": "down"}, nil)

	restarted, err := NewServerWithDeps(env.srv.config, env.srv.db, env.rdb)
	require.NoError(t, err)
	require.NoError(t, restarted.LoadFeed(t.Context()))

	got, err := restarted.feed.Get(t.Context(), voter.User.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Points)
	assert.True(t, got.HasDownvoted)
}

func TestStatsAndPreview(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "u@example.com", "")
	env.signup(t, "v@example.com", "")
	env.createPost(t, user.Token, "a", "github.com/a")
	env.createPost(t, user.Token, "b", "www.github.com/b")
	env.createPost(t, user.Token, "c", "medium.com/c")

	var stats struct {
		TotalUsers  int64 `json:"total_users"`
		OnlineUsers int64 `json:"online_users"`
		TopDomains  []struct {
			Domain string `json:"domain"`
			Count  int    `json:"count"`
		} `json:"top_domains"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/stats", "", nil, &stats))
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(0), stats.OnlineUsers)
	require.Len(t, stats.TopDomains, 2)
	assert.Equal(t, "github.com", stats.TopDomains[0].Domain)
	assert.Equal(t, 2, stats.TopDomains[0].Count)

	var preview map[string]string
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/preview?url=www.example.com/post", "", nil, &preview))
	assert.Equal(t, "Content from example.com", preview["title"])
	assert.Equal(t, "example.com", preview["domain"])

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/preview", "", nil, nil))
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", nil, nil))

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Checks["redis"])

	user := env.signup(t, "u@example.com", "")
	env.createPost(t, user.Token, "t", "x.io")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "truuo_posts_submitted_total")

	env.mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/health", "", nil, &ready))
	assert.Equal(t, "unhealthy", ready.Checks["redis"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
