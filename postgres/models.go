package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"channelboard/api"
)

// A post represents a mirrored channel post in the database. TelegramID is
// the source message id and is unique, which makes ingestion idempotent.
type post struct {
	bun.BaseModel `bun:"table:posts"`

	ID         int64      `bun:",pk,autoincrement"`
	TelegramID int64      `bun:",unique,notnull"`
	MediaType  string     `bun:",notnull"`
	MediaPath  string     `bun:",notnull"`
	Caption    string     `bun:""`
	CreatedAt  time.Time  `bun:",nullzero,notnull,default:now()"`
	Reactions  []reaction `bun:"rel:has-many,join:id=post_id"`
}

// A reaction is the per-(post, kind) aggregate count. The (post, kind) pair
// is unique so concurrent increments land on one row, and rows at count zero
// are deleted rather than kept around.
type reaction struct {
	bun.BaseModel `bun:"table:reactions,alias:reaction"`

	ID           int64  `bun:",pk,autoincrement"`
	PostID       int64  `bun:",notnull,unique:post_reaction"`
	ReactionType string `bun:",notnull,unique:post_reaction"`
	Count        int    `bun:",notnull,default:1"`
}

// A userReaction is the source of truth: one row per (post, user) holding the
// kind that user currently has on the post.
type userReaction struct {
	bun.BaseModel `bun:"table:user_reactions"`

	PostID       int64  `bun:",pk"`
	UserID       string `bun:",pk"`
	ReactionType string `bun:",notnull"`
}

type user struct {
	bun.BaseModel `bun:"table:users"`

	ID         int64     `bun:",pk,autoincrement"`
	TelegramID int64     `bun:",unique,notnull"`
	Username   string    `bun:""`
	FirstName  string    `bun:""`
	LastName   string    `bun:""`
	PhotoURL   string    `bun:""`
	CreatedAt  time.Time `bun:",nullzero,notnull,default:now()"`
}

// channelInfo is a singleton row with id 1.
type channelInfo struct {
	bun.BaseModel `bun:"table:channel_info"`

	ID        int64     `bun:",pk"`
	Name      string    `bun:""`
	AvatarURL string    `bun:""`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}

func (p post) APIPost() api.Post {
	counts := make(map[string]int, len(p.Reactions))
	for _, r := range p.Reactions {
		counts[r.ReactionType] = r.Count
	}

	return api.Post{
		ID:         p.ID,
		TelegramID: p.TelegramID,
		MediaType:  p.MediaType,
		MediaPath:  p.MediaPath,
		Caption:    p.Caption,
		CreatedAt:  p.CreatedAt,
		Reactions:  counts,
	}
}

func (u user) APIUser() api.User {
	return api.User{
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		PhotoURL:   u.PhotoURL,
	}
}

func (c channelInfo) APIChannelInfo() api.ChannelInfo {
	return api.ChannelInfo{
		Name:      c.Name,
		AvatarURL: c.AvatarURL,
		UpdatedAt: c.UpdatedAt,
	}
}
