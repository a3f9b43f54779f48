// Package config loads environment-driven configuration for both binaries.
// Each config is built once at startup and passed explicitly.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
)

// API holds the API server configuration.
type API struct {
	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	RedisAddr        string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	SecretKey        string `envconfig:"SECRET_KEY" default:"dev-secret-change-in-production"`
	BotToken         string `envconfig:"TELEGRAM_BOT_TOKEN"`
	BotUsername      string `envconfig:"TELEGRAM_BOT_USERNAME"`
	LoginTokenSecret string `envconfig:"LOGIN_TOKEN_SECRET"`
	SiteBaseURL      string `envconfig:"SITE_BASE_URL"`
	AdminTelegramIDs string `envconfig:"ADMIN_TELEGRAM_IDS"`
	UploadFolder     string `envconfig:"UPLOAD_FOLDER" default:"uploads"`
	ListenAddr       string `envconfig:"LISTEN_ADDR" default:":8080"`
}

// LoadAPI reads the API server configuration from the environment.
func LoadAPI() (API, error) {
	var c API
	if err := envconfig.Process("", &c); err != nil {
		return API{}, fmt.Errorf("process env: %w", err)
	}
	c.BotUsername = strings.TrimPrefix(strings.TrimSpace(c.BotUsername), "@")
	c.SiteBaseURL = strings.TrimRight(c.SiteBaseURL, "/")
	return c, nil
}

// AdminIDs parses the comma-separated administrator list into a lookup set.
// Malformed entries are skipped.
func (c API) AdminIDs() map[int64]bool {
	parts := strings.Split(strings.ReplaceAll(c.AdminTelegramIDs, " ", ""), ",")
	ids := lo.FilterMap(parts, func(s string, _ int) (int64, bool) {
		id, err := strconv.ParseInt(s, 10, 64)
		return id, err == nil
	})
	return lo.SliceToMap(ids, func(id int64) (int64, bool) {
		return id, true
	})
}

// SecureCookies reports whether session cookies should be marked Secure.
func (c API) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(c.SiteBaseURL), "https")
}

// Bot holds the ingestion bot configuration.
type Bot struct {
	BotToken         string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	ChannelUsername  string `envconfig:"CHANNEL_USERNAME" required:"true"`
	APIBaseURL       string `envconfig:"API_BASE_URL" default:"http://localhost:8080/api"`
	LoginTokenSecret string `envconfig:"LOGIN_TOKEN_SECRET"`
	WebhookBaseURL   string `envconfig:"WEBHOOK_BASE_URL" required:"true"`
	ListenAddr       string `envconfig:"LISTEN_ADDR" default:":8081"`

	// UploadMode selects where media goes: "s3" for CDN storage, "local"
	// for the upload directory shared with the API server.
	UploadMode   string `envconfig:"UPLOAD_MODE" default:"s3"`
	UploadFolder string `envconfig:"UPLOAD_FOLDER" default:"uploads"`
	S3Bucket     string `envconfig:"S3_BUCKET"`
	S3Region     string `envconfig:"AWS_REGION"`
	MediaBaseURL string `envconfig:"MEDIA_BASE_URL"`
}

// LoadBot reads the bot configuration from the environment.
func LoadBot() (Bot, error) {
	var c Bot
	if err := envconfig.Process("", &c); err != nil {
		return Bot{}, fmt.Errorf("process env: %w", err)
	}
	if !strings.HasPrefix(c.ChannelUsername, "@") {
		c.ChannelUsername = "@" + c.ChannelUsername
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	return c, nil
}
