package api

import "time"

// A Post represents a mirrored channel post.
type Post struct {
	ID         int64          `json:"id"`
	TelegramID int64          `json:"telegram_id"`
	MediaType  string         `json:"media_type"`
	MediaPath  string         `json:"media_path"`
	Caption    string         `json:"caption"`
	CreatedAt  time.Time      `json:"created_at"`
	Reactions  map[string]int `json:"reactions"`
	MyReaction *string        `json:"my_reaction"`
}

// A ToggleResult holds the outcome of a reaction toggle: the post's updated
// aggregate counts and the reaction the user ended up holding.
type ToggleResult struct {
	Reactions  map[string]int
	MyReaction string
	IsNew      bool
}

// A User represents a Telegram account linked to the site.
type User struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	PhotoURL   string `json:"photo_url"`
	IsAdmin    bool   `json:"is_admin"`
}

// ChannelInfo is the mirrored channel's display name and avatar.
type ChannelInfo struct {
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url"`
	UpdatedAt time.Time `json:"updated_at"`
}
