package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"huddle/client/internal/app"
	"huddle/client/internal/attach"
	"huddle/client/internal/config"
	"huddle/client/internal/feed"
	"huddle/client/internal/notify"
	"huddle/client/internal/search"
	"huddle/client/internal/session"
	"huddle/client/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	if cfg.UserEmail == "" {
		log.Fatalf("HUDDLE_USER_EMAIL is required")
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	var source interface {
		feed.Publisher
		feed.Source
	}
	var closeFeed func()
	switch cfg.FeedBackend {
	case "pg":
		log.Printf("Using Postgres LISTEN/NOTIFY for the change feed")
		pgFeed, err := feed.NewPgFeed(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("feed connection failed: %v", err)
		}
		source = pgFeed
		closeFeed = func() { _ = pgFeed.Close(context.Background()) }
	default:
		log.Printf("Using Redis pub/sub for the change feed")
		redisFeed, err := feed.NewRedisFeed(cfg.RedisURL)
		if err != nil {
			log.Fatalf("feed connection failed: %v", err)
		}
		source = redisFeed
		closeFeed = func() { _ = redisFeed.Close() }
	}
	defer closeFeed()

	dataStore := store.NewPostgresStore(db).WithPublisher(source)

	sess, err := session.SignIn(ctx, dataStore, cfg.UserEmail)
	if err != nil {
		log.Fatalf("sign in failed: %v", err)
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("parse redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	var surfaces notify.Multi
	if redisClient != nil {
		surfaces = append(surfaces, notify.NewRedisNotifier(redisClient, sess.UserID))
	}
	emailer := notify.NewEmailNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, sess.Email)
	if emailer.IsConfigured() {
		surfaces = append(surfaces, emailer)
	}
	surfaces = append(surfaces, notify.LogNotifier{})

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	searchService.ReindexAllFromPG(ctx)

	client := app.NewClient(sess, dataStore, source, surfaces).
		WithSearch(searchService).
		WithLimits(cfg.ThreadLimit, cfg.FetchTimeout)

	if cfg.MinioEndpoint != "" {
		attachStore, err := attach.New(ctx, attach.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("attachment store failed: %v", err)
		}
		client.WithAttachments(attachStore)
	}

	if err := client.Start(ctx); err != nil {
		log.Fatalf("client start failed: %v", err)
	}
	defer client.Close()

	var presence *session.Presence
	if redisClient != nil {
		presence = session.NewPresenceWithClient(redisClient, sess.UserID)
		if err := presence.Start(ctx); err != nil {
			log.Printf("WARNING: presence unavailable: %v", err)
			presence = nil
		}
	}

	log.Printf("huddled: signed in as %s <%s> (%s)", sess.DisplayName, sess.Email, sess.Role)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("huddled: shutting down")
	if presence != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := presence.Stop(shutdownCtx); err != nil {
			log.Printf("presence stop error: %v", err)
		}
		cancel()
	}
}
