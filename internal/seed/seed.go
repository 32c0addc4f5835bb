// Package seed provides database seeding utilities for development and demos.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"truuo/internal/auth"
	"truuo/internal/feed"
	"truuo/internal/models"
	"truuo/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "Passw0rd123"

const demoEmailDomain = "demo.truuo.dev"

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// VotesPerUser is the number of vote clicks each generated user makes.
	VotesPerUser int
	ShouldClean  bool
	// RandSeed makes a run reproducible; zero picks a time-based seed.
	RandSeed int64
}

// Seeder fills the database with demo accounts, posts and votes. Accounts
// go through the identity provider so they can sign in like real users.
type Seeder struct {
	db       *gorm.DB
	provider auth.IdentityProvider
	posts    repository.PostRepository
	now      func() time.Time
}

// NewSeeder creates a seeder writing to db.
func NewSeeder(db *gorm.DB, provider auth.IdentityProvider) *Seeder {
	return &Seeder{
		db:       db,
		provider: provider,
		posts:    repository.NewPostRepository(db),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ClearAll removes every post and account.
func (s *Seeder) ClearAll(ctx context.Context) error {
	log.Println("🧹 Cleaning database...")
	for _, model := range []any{&models.Post{}, &models.User{}} {
		if err := s.db.WithContext(ctx).Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Run seeds the demo feed, generated users, generated posts and votes.
func (s *Seeder) Run(ctx context.Context, opts Options) error {
	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return err
		}
	}

	randSeed := opts.RandSeed
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	faker := gofakeit.New(randSeed)
	rng := rand.New(rand.NewSource(randSeed))

	demo, err := s.SeedDemoFeed(ctx)
	if err != nil {
		return err
	}

	store := feed.NewStore(feed.WithClock(s.now))
	existing, err := s.posts.List(ctx)
	if err != nil {
		return err
	}
	store.Load(existing)

	users, err := s.SeedUsers(ctx, faker, opts.NumUsers)
	if err != nil {
		return err
	}

	authors := append(demo, users...)
	if err := s.SeedPosts(ctx, store, faker, rng, authors, opts.NumPosts); err != nil {
		return err
	}
	if err := s.SeedVotes(ctx, store, rng, users, opts.VotesPerUser); err != nil {
		return err
	}

	log.Printf("✅ Seeded %d accounts and %d posts", len(authors), store.Len())
	return nil
}

// account signs up email, or signs in when it already exists, and returns
// the resulting user.
func (s *Seeder) account(ctx context.Context, email, displayName string) (*models.User, error) {
	session := auth.NewSession(s.provider)
	err := session.SignUp(ctx, email, DemoPassword, displayName)
	if models.IsCode(err, "CONFLICT") {
		err = session.SignIn(ctx, email, DemoPassword)
	}
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", email, err)
	}
	user := session.CurrentUser()
	if err := session.SignOut(ctx); err != nil {
		log.Printf("sign out %s: %v", email, err)
	}
	return user, nil
}

type demoPost struct {
	title, url, caption, image, domain string
	points                             int
	age                                time.Duration
	// indexes into the demo authors
	author  int
	upvotes []int
}

var demoAuthors = []string{"Sarah Chen", "Alex Rodriguez", "Emma Wilson", "Michael Park"}

var demoPosts = []demoPost{
	{
		title:   "The Future of Web Development: What's Coming in 2024",
		url:     "https://techcrunch.com/future-web-development",
		caption: "An in-depth look at emerging trends and technologies that will shape web development in the coming year.",
		image:   "https://via.placeholder.com/400x200/f97316/ffffff?text=TechCrunch",
		domain:  "techcrunch.com",
		points:  156,
		age:     2 * time.Hour,
		author:  0,
		upvotes: []int{1, 2, 3},
	},
	{
		title:   "Building Scalable Applications with Next.js 14",
		url:     "https://github.com/vercel/next.js",
		caption: "Learn about the new features and performance improvements in the latest version.",
		image:   "https://via.placeholder.com/400x200/000000/ffffff?text=GitHub",
		domain:  "github.com",
		points:  89,
		age:     4 * time.Hour,
		author:  1,
		upvotes: []int{0, 3},
	},
	{
		title:   "Why TypeScript is Becoming the Standard for Large Projects",
		url:     "https://medium.com/typescript-standard",
		caption: "Exploring the benefits and adoption trends of TypeScript in enterprise development.",
		image:   "https://via.placeholder.com/400x200/00ab6c/ffffff?text=Medium",
		domain:  "medium.com",
		points:  67,
		age:     6 * time.Hour,
		author:  2,
		upvotes: []int{0},
	},
	{
		title:   "AI Tools That Are Revolutionizing Software Development",
		url:     "https://ycombinator.com/ai-tools-development",
		caption: "A comprehensive guide to AI-powered development tools and their impact on productivity.",
		image:   "https://via.placeholder.com/400x200/ff6600/ffffff?text=YCombinator",
		domain:  "ycombinator.com",
		points:  134,
		age:     8 * time.Hour,
		author:  3,
		upvotes: []int{0, 1, 2},
	},
}

// DemoPostID is the stable ID of the i-th demo post, so reseeding updates
// the same rows instead of duplicating them.
func DemoPostID(i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("https://%s/posts/%d", demoEmailDomain, i+1))).String()
}

// SeedDemoFeed creates the demo authors and their showcase posts. Posts
// that already exist are left untouched. The demo authors are returned in
// a fixed order.
func (s *Seeder) SeedDemoFeed(ctx context.Context) ([]*models.User, error) {
	authors := make([]*models.User, 0, len(demoAuthors))
	for _, name := range demoAuthors {
		email := strings.ReplaceAll(emailPart(name), " ", ".") + "@" + demoEmailDomain
		user, err := s.account(ctx, email, name)
		if err != nil {
			return nil, err
		}
		authors = append(authors, user)
	}

	created := 0
	for i, dp := range demoPosts {
		id := DemoPostID(i)
		if _, err := s.posts.GetByID(ctx, id); err == nil {
			continue
		} else if !models.IsCode(err, "NOT_FOUND") {
			return nil, err
		}

		upvotes := make([]string, 0, len(dp.upvotes))
		for _, idx := range dp.upvotes {
			upvotes = append(upvotes, authors[idx].ID)
		}
		author := authors[dp.author]
		post := &models.Post{
			ID:           id,
			Title:        dp.title,
			URL:          dp.url,
			Caption:      dp.caption,
			Author:       author.Name(),
			AuthorID:     author.ID,
			Points:       dp.points,
			Upvotes:      upvotes,
			Downvotes:    []string{},
			PreviewImage: dp.image,
			Domain:       dp.domain,
			CreatedAt:    s.now().Add(-dp.age),
			Version:      1,
		}
		if err := s.posts.Save(ctx, post); err != nil {
			return nil, err
		}
		created++
	}
	log.Printf("📰 Seeded %d demo posts", created)
	return authors, nil
}

// SeedUsers creates n accounts with generated names.
func (s *Seeder) SeedUsers(ctx context.Context, faker *gofakeit.Faker, n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := range n {
		first, last := faker.FirstName(), faker.LastName()
		email := fmt.Sprintf("%s.%s.%d@%s", emailPart(first), emailPart(last), i, demoEmailDomain)
		user, err := s.account(ctx, email, first+" "+last)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	log.Printf("👤 Seeded %d users", len(users))
	return users, nil
}

// SeedPosts submits n generated links through the feed on behalf of random
// authors and persists them.
func (s *Seeder) SeedPosts(ctx context.Context, store *feed.Store, faker *gofakeit.Faker, rng *rand.Rand, authors []*models.User, n int) error {
	if len(authors) == 0 {
		return nil
	}
	for range n {
		author := authors[rng.Intn(len(authors))]
		post, ok := store.SubmitPost(feed.Submission{
			Title:   strings.TrimSuffix(faker.Sentence(rng.Intn(6)+4), "."),
			URL:     faker.URL(),
			Caption: faker.Sentence(12),
		}, author)
		if !ok {
			continue
		}
		if err := s.posts.Save(ctx, post); err != nil {
			return err
		}
	}
	return nil
}

// SeedVotes makes every user click votesPerUser random vote buttons and
// persists the posts that changed.
func (s *Seeder) SeedVotes(ctx context.Context, store *feed.Store, rng *rand.Rand, users []*models.User, votesPerUser int) error {
	posts := store.Posts()
	if len(posts) == 0 || votesPerUser <= 0 {
		return nil
	}

	changed := make(map[string]struct{})
	for _, user := range users {
		for range votesPerUser {
			dir := models.VoteUp
			// the crowd is mostly positive
			if rng.Intn(4) == 0 {
				dir = models.VoteDown
			}
			target := posts[rng.Intn(len(posts))].ID
			if _, applied := store.Vote(target, dir, user); applied {
				changed[target] = struct{}{}
			}
		}
	}

	for id := range changed {
		post, ok := store.Get(id)
		if !ok {
			continue
		}
		if err := s.posts.Save(ctx, post); err != nil {
			return err
		}
	}
	log.Printf("🗳️  Applied votes to %d posts", len(changed))
	return nil
}

// emailPart lower-cases name and drops everything but letters and spaces.
func emailPart(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r == ' ':
			return r
		case r >= 'A' && r <= 'Z':
			return unicode.ToLower(r)
		}
		return -1
	}, name)
}
