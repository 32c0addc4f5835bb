// Package service holds the application use cases that sit between the
// HTTP handlers and the feed, persistence and notification layers.
package service

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"truuo/internal/cache"
	"truuo/internal/feed"
	"truuo/internal/middleware"
	"truuo/internal/models"
	"truuo/internal/observability"
	"truuo/internal/repository"
	"truuo/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	topDomainsLimit    = 5
	previewDescription = "This is a preview description that would be fetched from the actual URL."
	placeholderImage   = "https://via.placeholder.com/400x200/f97316/ffffff?text="
)

// Publisher fans feed events out to connected clients.
type Publisher interface {
	PublishFeedEvent(ctx context.Context, ev models.FeedEvent) error
}

// UserCounter reports how many accounts exist.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

// OnlineCounter reports how many users hold a live feed stream.
type OnlineCounter interface {
	OnlineUsers(ctx context.Context) int64
}

// SubmitPostInput is a new link as submitted by a user.
type SubmitPostInput struct {
	Title        string
	URL          string
	Caption      string
	PreviewImage string
}

// FeedService threads the acting user into the feed and keeps the
// durable copy, caches and live clients in step with it.
type FeedService struct {
	store     *feed.Store
	posts     repository.PostRepository
	users     UserCounter
	online    OnlineCounter
	publisher Publisher
	statsTTL  time.Duration
	now       func() time.Time
	writes    postLocks
}

// postLocks serializes mutate-then-save per post, so the durable copy is
// written in the order the feed applied the mutations.
type postLocks struct {
	mu    sync.Mutex
	locks map[string]*postLock
}

type postLock struct {
	mu   sync.Mutex
	refs int
}

func (l *postLocks) lock(postID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*postLock)
	}
	pl, ok := l.locks[postID]
	if !ok {
		pl = &postLock{}
		l.locks[postID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, postID)
		}
		l.mu.Unlock()
	}
}

// FeedServiceOption configures a FeedService.
type FeedServiceOption func(*FeedService)

// WithPublisher sets where feed events are sent.
func WithPublisher(p Publisher) FeedServiceOption {
	return func(s *FeedService) { s.publisher = p }
}

// WithOnlineCounter sets the source of the online users stat.
func WithOnlineCounter(c OnlineCounter) FeedServiceOption {
	return func(s *FeedService) { s.online = c }
}

// WithStatsTTL overrides how long community stats stay cached.
func WithStatsTTL(ttl time.Duration) FeedServiceOption {
	return func(s *FeedService) {
		if ttl > 0 {
			s.statsTTL = ttl
		}
	}
}

// WithClock overrides the clock used for age labels.
func WithClock(now func() time.Time) FeedServiceOption {
	return func(s *FeedService) { s.now = now }
}

// NewFeedService wires a feed to its collaborators. posts may be nil, in
// which case the feed lives only in memory.
func NewFeedService(store *feed.Store, posts repository.PostRepository, users UserCounter, opts ...FeedServiceOption) *FeedService {
	s := &FeedService{
		store:    store,
		posts:    posts,
		users:    users,
		statsTTL: cache.StatsTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the feed with the persisted posts.
func (s *FeedService) Load(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "feed", "Load")
	defer func() { observability.EndSpan(span, err) }()

	if s.posts == nil {
		return nil
	}
	posts, err := s.posts.List(ctx)
	if err != nil {
		return err
	}
	s.store.Load(posts)
	observability.FeedSize.Set(float64(s.store.Len()))
	middleware.Logger.InfoContext(ctx, "Feed loaded", slog.Int("posts", len(posts)))
	return nil
}

// SubmitPost validates in and adds it to the feed on behalf of user.
func (s *FeedService) SubmitPost(ctx context.Context, user *models.User, in SubmitPostInput) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "feed", "SubmitPost")
	defer func() { observability.EndSpan(span, err) }()

	if user == nil {
		return nil, models.NewUnauthorizedError("Sign in to submit a post")
	}
	if err := validation.ValidatePostInput(in.Title, in.URL, in.Caption); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post, ok := s.store.SubmitPost(feed.Submission{
		Title:        in.Title,
		URL:          in.URL,
		Caption:      in.Caption,
		PreviewImage: in.PreviewImage,
	}, user)
	if !ok {
		return nil, models.NewValidationError("title and url are required")
	}
	span.SetAttributes(attribute.String("post.id", post.ID))

	observability.PostsSubmitted.Inc()
	observability.FeedSize.Set(float64(s.store.Len()))

	unlock := s.writes.lock(post.ID)
	s.afterMutation(ctx, "submit", post, models.EventPostCreated, map[string]any{"post": post})
	unlock()

	s.present([]*models.Post{post}, user.ID)
	return post, nil
}

// Vote toggles user's vote on postID. The bool reports whether the vote
// was applied; an unknown post is not an error.
func (s *FeedService) Vote(ctx context.Context, user *models.User, postID string, dir models.VoteDirection) (post *models.Post, applied bool, err error) {
	ctx, span := observability.StartSpan(ctx, "feed", "Vote",
		attribute.String("post.id", postID),
		attribute.String("vote.direction", string(dir)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if user == nil {
		return nil, false, models.NewUnauthorizedError("Sign in to vote")
	}

	unlock := s.writes.lock(postID)
	post, applied = s.store.Vote(postID, dir, user)
	span.SetAttributes(attribute.Bool("vote.applied", applied))
	if !applied {
		unlock()
		return nil, false, nil
	}

	observability.VotesApplied.WithLabelValues(string(dir)).Inc()
	s.afterMutation(ctx, "vote", post, models.EventPostVoteUpdated, map[string]any{
		"post_id":   post.ID,
		"points":    post.Points,
		"upvotes":   post.Upvotes,
		"downvotes": post.Downvotes,
	})
	unlock()

	s.present([]*models.Post{post}, user.ID)
	return post, true, nil
}

// afterMutation writes post through and tells everyone about it. Failures
// are logged and counted; the in-memory feed keeps the mutation. Callers
// hold the post's write lock.
func (s *FeedService) afterMutation(ctx context.Context, op string, post *models.Post, eventType string, payload map[string]any) {
	if s.posts != nil {
		if err := s.posts.Save(ctx, post); err != nil {
			observability.PersistenceFailures.WithLabelValues(op).Inc()
			middleware.Logger.ErrorContext(ctx, "Failed to persist post",
				slog.String("operation", op),
				slog.String("post_id", post.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	cache.InvalidateStats(ctx)

	if s.publisher != nil {
		if err := s.publisher.PublishFeedEvent(ctx, models.FeedEvent{Type: eventType, Payload: payload}); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to publish feed event",
				slog.String("type", eventType),
				slog.String("error", err.Error()),
			)
		}
	}
}

// List returns a page of the ranked feed with vote flags for viewerID,
// which may be empty.
func (s *FeedService) List(ctx context.Context, viewerID string, limit, offset int) []*models.Post {
	_, span := observability.StartSpan(ctx, "feed", "List")
	defer span.End()

	posts := s.store.Page(limit, offset)
	s.present(posts, viewerID)
	return posts
}

// Get returns one post with vote flags for viewerID.
func (s *FeedService) Get(ctx context.Context, viewerID, postID string) (*models.Post, error) {
	_, span := observability.StartSpan(ctx, "feed", "Get", attribute.String("post.id", postID))
	defer span.End()

	post, ok := s.store.Get(postID)
	if !ok {
		return nil, models.NewNotFoundError("Post", postID)
	}
	s.present([]*models.Post{post}, viewerID)
	return post, nil
}

// present fills the per-request fields: vote flags for viewerID and the
// age label.
func (s *FeedService) present(posts []*models.Post, viewerID string) {
	feed.MarkViewer(posts, viewerID)
	now := s.now()
	for _, p := range posts {
		p.TimeAgo = feed.TimeAgo(p.CreatedAt, now)
	}
}

// Stats returns the community sidebar numbers, cached for a short while.
func (s *FeedService) Stats(ctx context.Context) (*models.CommunityStats, error) {
	var stats models.CommunityStats
	err := cache.Aside(ctx, cache.CommunityStatsKey, &stats, s.statsTTL, func() error {
		total, err := s.users.CountUsers(ctx)
		if err != nil {
			return err
		}
		stats.TotalUsers = total
		if s.online != nil {
			stats.OnlineUsers = s.online.OnlineUsers(ctx)
		}
		stats.TopDomains = s.store.TopDomains(topDomainsLimit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Preview describes rawURL for the new-post form. It never fetches the
// page; title is used when the user already typed one.
func (s *FeedService) Preview(rawURL, title string) (*models.URLPreview, error) {
	if rawURL == "" {
		return nil, models.NewValidationError("url is required")
	}
	domain := feed.Domain(rawURL)
	if domain == "" {
		return nil, models.NewValidationError("url is not valid")
	}
	if title == "" {
		title = "Content from " + domain
	}
	return &models.URLPreview{
		Title:       title,
		Description: previewDescription,
		Image:       placeholderImage + url.QueryEscape(domain),
		Domain:      domain,
	}, nil
}
