package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadAPI(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/channelboard")
	t.Setenv("TELEGRAM_BOT_USERNAME", " @mirror_bot ")
	t.Setenv("SITE_BASE_URL", "https://example.com/")

	cfg, err := LoadAPI()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BotUsername != "mirror_bot" {
		t.Errorf("Got bot username %q, want mirror_bot", cfg.BotUsername)
	}
	if cfg.SiteBaseURL != "https://example.com" {
		t.Errorf("Got site base url %q, want https://example.com", cfg.SiteBaseURL)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Got redis addr %q, want localhost:6379", cfg.RedisAddr)
	}
	if cfg.UploadFolder != "uploads" {
		t.Errorf("Got upload folder %q, want uploads", cfg.UploadFolder)
	}
}

func TestAPI_AdminIDs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[int64]bool
	}{
		{
			name: "Empty",
			raw:  "",
			want: map[int64]bool{},
		},
		{
			name: "Single",
			raw:  "42",
			want: map[int64]bool{42: true},
		},
		{
			name: "ManyWithSpaces",
			raw:  "42, 7,  99",
			want: map[int64]bool{42: true, 7: true, 99: true},
		},
		{
			name: "MalformedSkipped",
			raw:  "42,abc,99",
			want: map[int64]bool{42: true, 99: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := API{AdminTelegramIDs: tt.raw}
			if diff := cmp.Diff(tt.want, c.AdminIDs()); diff != "" {
				t.Errorf("Admin set mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAPI_SecureCookies(t *testing.T) {
	if (API{SiteBaseURL: "https://example.com"}).SecureCookies() != true {
		t.Error("Expected secure cookies for an https site")
	}
	if (API{SiteBaseURL: "http://localhost:8080"}).SecureCookies() != false {
		t.Error("Expected insecure cookies for an http site")
	}
	if (API{}).SecureCookies() != false {
		t.Error("Expected insecure cookies without a site base url")
	}
}

func TestLoadBot(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "12345:TEST-TOKEN")
	t.Setenv("CHANNEL_USERNAME", "mychannel")
	t.Setenv("WEBHOOK_BASE_URL", "https://bot.example.com")
	t.Setenv("API_BASE_URL", "http://localhost:8080/api/")

	cfg, err := LoadBot()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChannelUsername != "@mychannel" {
		t.Errorf("Got channel username %q, want @mychannel", cfg.ChannelUsername)
	}
	if cfg.APIBaseURL != "http://localhost:8080/api" {
		t.Errorf("Got api base url %q, want http://localhost:8080/api", cfg.APIBaseURL)
	}
	if cfg.UploadMode != "s3" {
		t.Errorf("Got upload mode %q, want s3", cfg.UploadMode)
	}
}
