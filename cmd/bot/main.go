package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"channelboard/apiclient"
	"channelboard/bot"
	"channelboard/config"
	"channelboard/uploader"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging (LevelInfo)")
	veryVerbose := flag.Bool("vv", false, "Enable very verbose logging (LevelDebug)")
	flag.Parse()

	setLogLevel(*verbose, *veryVerbose)

	if err := godotenv.Load(); err != nil {
		slog.Warn("main: Failed to load .env file", "error", err)
	}

	cfg, err := config.LoadBot()
	if err != nil {
		slog.Error("main: Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	up, err := buildUploader(ctx, cfg)
	if err != nil {
		slog.Error("main: Failed to build uploader", "error", err)
		os.Exit(1)
	}

	client := apiclient.New(cfg.APIBaseURL, cfg.LoginTokenSecret)
	defer client.Close()

	b, err := bot.New(cfg.BotToken, client, up, cfg.ChannelUsername)
	if err != nil {
		slog.Error("main: Failed to initialize bot", "error", err)
		os.Exit(1)
	}

	if err := b.RefreshChannelInfo(ctx); err != nil {
		slog.Warn("main: Failed to refresh channel info", "error", err)
	}

	slog.Info("main: Starting bot...", "channel", cfg.ChannelUsername)
	if err := b.Run(cfg.WebhookBaseURL, cfg.ListenAddr); err != nil {
		slog.Error("main: Bot stopped", "error", err)
		os.Exit(1)
	}
}

func buildUploader(ctx context.Context, cfg config.Bot) (uploader.Uploader, error) {
	if cfg.UploadMode == "local" {
		return uploader.NewLocal(cfg.UploadFolder), nil
	}
	return uploader.NewS3(ctx, cfg.S3Bucket, cfg.S3Region, cfg.MediaBaseURL)
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
