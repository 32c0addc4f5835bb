// Package feed holds the ranked collection of submitted links and the
// rules that mutate it.
//
// Store is the single owner of feed state. Every mutation runs under one
// lock and leaves the collection sorted by points, highest first. Equal
// points keep their relative order, so a fresh post lands above older
// posts with the same score.
package feed

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"truuo/internal/models"

	"github.com/google/uuid"
)

// Submission is the user input of a new post.
type Submission struct {
	Title        string
	URL          string
	Caption      string
	PreviewImage string
}

// Store is the in-memory ranked feed.
type Store struct {
	mu    sync.RWMutex
	posts []*models.Post
	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how post IDs are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates an empty feed.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitPost adds a post authored by user at the top of the feed and
// re-ranks it. The author's upvote is counted as the initial point.
//
// Nothing happens when user is nil or when title or url are blank; the
// returned bool reports whether the post was created.
func (s *Store) SubmitPost(in Submission, user *models.User) (*models.Post, bool) {
	if user == nil {
		return nil, false
	}
	title := strings.TrimSpace(in.Title)
	link := strings.TrimSpace(in.URL)
	if title == "" || link == "" {
		return nil, false
	}
	link = NormalizeURL(link)

	s.mu.Lock()
	defer s.mu.Unlock()

	post := &models.Post{
		ID:           s.newID(),
		Title:        title,
		URL:          link,
		Caption:      strings.TrimSpace(in.Caption),
		Author:       user.Name(),
		AuthorID:     user.ID,
		Points:       1,
		Upvotes:      []string{user.ID},
		Downvotes:    []string{},
		PreviewImage: strings.TrimSpace(in.PreviewImage),
		Domain:       Domain(link),
		CreatedAt:    s.now(),
		Version:      1,
	}

	s.posts = append([]*models.Post{post}, s.posts...)
	s.sortLocked()

	return post.Clone(), true
}

// Vote toggles user's vote on the post identified by postID in the given
// direction and re-ranks the whole feed.
//
// Nothing happens when user is nil, the direction is unknown or no post
// has that ID; the returned bool reports whether a vote was applied.
func (s *Store) Vote(postID string, dir models.VoteDirection, user *models.User) (*models.Post, bool) {
	if user == nil {
		return nil, false
	}
	if dir != models.VoteUp && dir != models.VoteDown {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post := s.findLocked(postID)
	if post == nil {
		return nil, false
	}

	post.Points += applyVote(post, user.ID, dir)
	post.Version++
	s.sortLocked()

	return post.Clone(), true
}

// Load replaces the feed with posts, in the given order, then re-ranks.
// Duplicate voters are collapsed and a voter found in both sets is kept
// only as an upvoter. Points are taken as stored.
func (s *Store) Load(posts []*models.Post) {
	loaded := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		cp := p.Clone()
		cp.Upvotes = dedupe(cp.Upvotes)
		cp.Downvotes = slices.DeleteFunc(dedupe(cp.Downvotes), func(id string) bool {
			return slices.Contains(cp.Upvotes, id)
		})
		cp.HasUpvoted, cp.HasDownvoted = false, false
		loaded = append(loaded, cp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = loaded
	s.sortLocked()
}

// Posts returns a copy of the whole ranked feed.
func (s *Store) Posts() []*models.Post {
	return s.Page(0, 0)
}

// Page returns a copy of up to limit posts starting at offset. A limit
// of zero or less means no limit.
func (s *Store) Page(limit, offset int) []*models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.posts) {
		return []*models.Post{}
	}
	end := len(s.posts)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]*models.Post, 0, end-offset)
	for _, p := range s.posts[offset:end] {
		out = append(out, p.Clone())
	}
	return out
}

// Get returns a copy of the post with the given ID.
func (s *Store) Get(postID string) (*models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post := s.findLocked(postID)
	if post == nil {
		return nil, false
	}
	return post.Clone(), true
}

// Len is the number of posts in the feed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// TopDomains counts posts per domain and returns the n most linked
// domains. Ties keep the order in which the domain first appears in the
// ranked feed.
func (s *Store) TopDomains(n int) []models.DomainCount {
	s.mu.RLock()
	counts := make(map[string]int)
	var order []string
	for _, p := range s.posts {
		if p.Domain == "" {
			continue
		}
		if _, seen := counts[p.Domain]; !seen {
			order = append(order, p.Domain)
		}
		counts[p.Domain]++
	}
	s.mu.RUnlock()

	out := make([]models.DomainCount, 0, len(order))
	for _, d := range order {
		out = append(out, models.DomainCount{Domain: d, Count: counts[d]})
	}
	slices.SortStableFunc(out, func(a, b models.DomainCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (s *Store) findLocked(postID string) *models.Post {
	for _, p := range s.posts {
		if p.ID == postID {
			return p
		}
	}
	return nil
}

func (s *Store) sortLocked() {
	slices.SortStableFunc(s.posts, func(a, b *models.Post) int {
		return cmp.Compare(b.Points, a.Points)
	})
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
