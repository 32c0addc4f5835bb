// Command seed populates the database with demo accounts, posts and votes.
package main

import (
	"context"
	"flag"
	"log"

	"truuo/internal/auth"
	"truuo/internal/config"
	"truuo/internal/database"
	"truuo/internal/repository"
	"truuo/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of generated users to create")
	numPosts := flag.Int("posts", 40, "Number of generated posts to create")
	votesPerUser := flag.Int("votes", 5, "Number of votes each generated user casts")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	migrateOnly := flag.Bool("migrate", false, "Only run schema migrations")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *migrateOnly {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		log.Println("✨ Schema migrated.")
		return
	}

	log.Printf("Target: %d users, %d posts, %d votes per user, clean=%v\n", *numUsers, *numPosts, *votesPerUser, *shouldClean)

	// no Redis: seeding sessions are signed out right away
	authSvc := auth.NewService(repository.NewUserRepository(db), nil, cfg.JWTSecret)
	s := seed.NewSeeder(db, authSvc)

	err = s.Run(context.Background(), seed.Options{
		NumUsers:     *numUsers,
		NumPosts:     *numPosts,
		VotesPerUser: *votesPerUser,
		ShouldClean:  *shouldClean,
		RandSeed:     *randSeed,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with demo data.")
	log.Printf("📧 All demo users have the password: %s", seed.DemoPassword)
}
