package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"channelboard/api"
	"channelboard/api/validator"
	"channelboard/config"
	"channelboard/postgres"
	"channelboard/redis"
	"channelboard/telegram"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging (LevelInfo)")
	veryVerbose := flag.Bool("vv", false, "Enable very verbose logging (LevelDebug)")
	flag.Parse()

	setLogLevel(*verbose, *veryVerbose)

	if err := godotenv.Load(); err != nil {
		slog.Warn("main: Failed to load .env file", "error", err)
	}

	cfg, err := config.LoadAPI()
	if err != nil {
		slog.Error("main: Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("main: Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := pg.Migrate(ctx); err != nil {
		slog.Error("main: Failed to migrate database", "error", err)
		os.Exit(1)
	}

	tokens, err := redis.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		slog.Error("main: Failed to connect to redis", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.UploadFolder, 0o755); err != nil {
		slog.Error("main: Failed to create upload folder", "error", err, "path", cfg.UploadFolder)
		os.Exit(1)
	}

	var photos api.ProfilePhotoFetcher
	if cfg.BotToken != "" {
		photos = telegram.NewPhotoFetcher(cfg.BotToken, cfg.UploadFolder)
	}

	a := &api.API{
		Logger:           slog.Default(),
		DB:               pg,
		Tokens:           tokens,
		Photos:           photos,
		Sessions:         api.NewSessionStore(cfg.SecretKey, cfg.SecureCookies()),
		Val:              validator.New(),
		Admins:           cfg.AdminIDs(),
		BotToken:         cfg.BotToken,
		LoginTokenSecret: cfg.LoginTokenSecret,
		SiteBaseURL:      cfg.SiteBaseURL,
		UploadDir:        cfg.UploadFolder,
	}

	handler := cors.New(cors.Options{
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(a)

	slog.Info("main: Starting API server", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		slog.Error("main: Server stopped", "error", err)
		os.Exit(1)
	}
}

// setLogLevel configures the logging level based on the provided flags
func setLogLevel(verbose, veryVerbose bool) {
	logLevel := slog.LevelWarn
	if veryVerbose {
		logLevel = slog.LevelDebug
	} else if verbose {
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}
