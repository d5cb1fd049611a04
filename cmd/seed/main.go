// Command seed fills the database with sample posts for local development.
// Every seeded post uses the password "password".
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"bboard/internal/config"
	"bboard/internal/db"
	"bboard/internal/model"
	"bboard/internal/password"
	"bboard/internal/repository"
)

const seedPassword = "password"

var samplePosts = []struct {
	title    string
	content  string
	username string
}{
	{"Welcome to the board", "Say hello and introduce yourself here.", "admin"},
	{"House rules", "Be kind. Posts can be edited or deleted with their password.", "admin"},
	{"First!", "Just checking that this thing works.", "minsu"},
	{"Lost umbrella", "Left a black umbrella in the lobby yesterday, anyone seen it?", "jiyoung"},
	{"Study group", "Looking for two more people for a weekend study group.", "hana"},
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Info().Msg("starting seed script")

	cfg := config.Load()

	gormDB, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := gormDB.AutoMigrate(&model.Post{}); err != nil {
		log.Fatal().Err(err).Msg("auto-migrate")
	}

	repo := repository.NewPostRepository(gormDB)
	ctx := context.Background()

	count := 0
	for _, p := range samplePosts {
		hash, err := password.Hash(seedPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("hash seed password")
		}
		post := &model.Post{
			Title:        p.title,
			Content:      p.content,
			Username:     p.username,
			PasswordHash: hash,
		}
		if err := repo.Create(ctx, post); err != nil {
			log.Fatal().Err(err).Str("title", p.title).Msg("create seed post")
		}
		count++
	}

	log.Info().Int("count", count).Msg("seed complete")
	fmt.Printf("seeded %d posts (password %q)\n", count, seedPassword)
}
