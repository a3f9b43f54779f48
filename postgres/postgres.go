// Package postgres provides storage in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"channelboard/api"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and pings it to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// Migrate creates missing tables. Existing tables are left untouched.
func (pg *Postgres) Migrate(ctx context.Context) error {
	models := []any{
		(*post)(nil),
		(*reaction)(nil),
		(*userReaction)(nil),
		(*user)(nil),
		(*channelInfo)(nil),
	}
	for _, m := range models {
		if _, err := pg.bun.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// ListPosts returns all posts newest first, with their aggregate reaction
// counts attached.
func (pg *Postgres) ListPosts(ctx context.Context) ([]api.Post, error) {
	var posts []post
	err := pg.bun.NewSelect().
		Model(&posts).
		Relation("Reactions").
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.Post, len(posts))
	for i, p := range posts {
		out[i] = p.APIPost()
	}
	return out, nil
}

// UserReactions returns the reaction kind the user holds on each of the given
// posts, keyed by post id.
func (pg *Postgres) UserReactions(ctx context.Context, userID string, postIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string)
	if len(postIDs) == 0 {
		return out, nil
	}

	var rows []userReaction
	err := pg.bun.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("post_id IN (?)", bun.In(postIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	for _, r := range rows {
		out[r.PostID] = r.ReactionType
	}
	return out, nil
}

// InsertPost inserts a post and returns its id. Inserting the same Telegram
// message id again returns the existing post's id instead of creating a row.
func (pg *Postgres) InsertPost(ctx context.Context, p api.Post) (int64, error) {
	m := &post{
		TelegramID: p.TelegramID,
		MediaType:  p.MediaType,
		MediaPath:  p.MediaPath,
		Caption:    p.Caption,
	}
	_, err := pg.bun.NewInsert().
		Model(m).
		On("CONFLICT (telegram_id) DO NOTHING").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	if m.ID != 0 {
		return m.ID, nil
	}

	// Conflict: the post already exists.
	var id int64
	err = pg.bun.NewSelect().
		Model((*post)(nil)).
		Column("id").
		Where("telegram_id = ?", p.TelegramID).
		Scan(ctx, &id)
	if err != nil {
		return 0, fmt.Errorf("select existing: %w", err)
	}
	return id, nil
}

// ToggleReaction applies the three-state toggle for (post, user, kind) and
// returns the post's updated aggregates together with the user's resulting
// reaction. The whole mutation runs in one transaction so the aggregates
// cannot drift from the user reaction rows.
func (pg *Postgres) ToggleReaction(ctx context.Context, postID int64, userID, kind string) (api.ToggleResult, error) {
	var res api.ToggleResult

	err := pg.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*post)(nil)).
			Where("id = ?", postID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check post: %w", err)
		}
		if !exists {
			return api.ErrNotFound
		}

		current := ""
		var ur userReaction
		err = tx.NewSelect().
			Model(&ur).
			Where("post_id = ? AND user_id = ?", postID, userID).
			Scan(ctx)
		switch {
		case err == nil:
			current = ur.ReactionType
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("load user reaction: %w", err)
		}

		switch {
		case current == kind:
			// Same kind again: clear the reaction.
			_, err := tx.NewDelete().
				Model((*userReaction)(nil)).
				Where("post_id = ? AND user_id = ?", postID, userID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("delete user reaction: %w", err)
			}
			if err := decrementReaction(ctx, tx, postID, kind); err != nil {
				return err
			}
			res.MyReaction = ""
			res.IsNew = false

		case current != "":
			// Different kind: switch, moving one count over.
			_, err := tx.NewUpdate().
				Model((*userReaction)(nil)).
				Set("reaction_type = ?", kind).
				Where("post_id = ? AND user_id = ?", postID, userID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update user reaction: %w", err)
			}
			if err := decrementReaction(ctx, tx, postID, current); err != nil {
				return err
			}
			if err := incrementReaction(ctx, tx, postID, kind); err != nil {
				return err
			}
			res.MyReaction = kind
			res.IsNew = true

		default:
			// No reaction yet: set one.
			_, err := tx.NewInsert().
				Model(&userReaction{PostID: postID, UserID: userID, ReactionType: kind}).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("insert user reaction: %w", err)
			}
			if err := incrementReaction(ctx, tx, postID, kind); err != nil {
				return err
			}
			res.MyReaction = kind
			res.IsNew = true
		}

		counts, err := reactionCounts(ctx, tx, postID)
		if err != nil {
			return err
		}
		res.Reactions = counts
		return nil
	})
	if err != nil {
		return api.ToggleResult{}, err
	}
	return res, nil
}

// decrementReaction lowers the aggregate for (post, kind) by one, deleting
// the row when it would reach zero.
func decrementReaction(ctx context.Context, tx bun.Tx, postID int64, kind string) error {
	r, err := tx.NewUpdate().
		Model((*reaction)(nil)).
		Set("count = count - 1").
		Where("post_id = ? AND reaction_type = ? AND count > 1", postID, kind).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("decrement reaction: %w", err)
	}
	if n, _ := r.RowsAffected(); n > 0 {
		return nil
	}
	_, err = tx.NewDelete().
		Model((*reaction)(nil)).
		Where("post_id = ? AND reaction_type = ?", postID, kind).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	return nil
}

// incrementReaction raises the aggregate for (post, kind) by one, creating
// the row at count 1 when absent. A single upsert keyed on the unique
// (post_id, reaction_type) pair: two users adding the same kind concurrently
// both hit the same row instead of inserting duplicates that would collapse
// to one entry when the counts are read back.
func incrementReaction(ctx context.Context, tx bun.Tx, postID int64, kind string) error {
	_, err := tx.NewInsert().
		Model(&reaction{PostID: postID, ReactionType: kind, Count: 1}).
		On("CONFLICT (post_id, reaction_type) DO UPDATE").
		Set("count = reaction.count + 1").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment reaction: %w", err)
	}
	return nil
}

func reactionCounts(ctx context.Context, tx bun.Tx, postID int64) (map[string]int, error) {
	var rows []reaction
	err := tx.NewSelect().
		Model(&rows).
		Where("post_id = ?", postID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan reactions: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.ReactionType] = r.Count
	}
	return counts, nil
}

// DeletePost removes a post together with its reactions and user reactions,
// returning the media path so the caller can clean up a local file.
func (pg *Postgres) DeletePost(ctx context.Context, postID int64) (string, error) {
	var mediaPath string

	err := pg.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model((*post)(nil)).
			Column("media_path").
			Where("id = ?", postID).
			Scan(ctx, &mediaPath)
		if errors.Is(err, sql.ErrNoRows) {
			return api.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select post: %w", err)
		}

		if _, err := tx.NewDelete().Model((*userReaction)(nil)).Where("post_id = ?", postID).Exec(ctx); err != nil {
			return fmt.Errorf("delete user reactions: %w", err)
		}
		if _, err := tx.NewDelete().Model((*reaction)(nil)).Where("post_id = ?", postID).Exec(ctx); err != nil {
			return fmt.Errorf("delete reactions: %w", err)
		}
		if _, err := tx.NewDelete().Model((*post)(nil)).Where("id = ?", postID).Exec(ctx); err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return mediaPath, nil
}

// UpsertUser creates or fully refreshes the user row for a Telegram account.
func (pg *Postgres) UpsertUser(ctx context.Context, u api.User) error {
	m := &user{
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		PhotoURL:   u.PhotoURL,
	}
	_, err := pg.bun.NewInsert().
		Model(m).
		On("CONFLICT (telegram_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("first_name = EXCLUDED.first_name").
		Set("last_name = EXCLUDED.last_name").
		Set("photo_url = EXCLUDED.photo_url").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateUserNames refreshes the name fields, keeping an existing photo.
func (pg *Postgres) UpdateUserNames(ctx context.Context, telegramID int64, username, firstName, lastName string) error {
	m := &user{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
	}
	_, err := pg.bun.NewInsert().
		Model(m).
		On("CONFLICT (telegram_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("first_name = EXCLUDED.first_name").
		Set("last_name = EXCLUDED.last_name").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert user names: %w", err)
	}
	return nil
}

// EnsureUser creates an empty user row for the account if none exists.
func (pg *Postgres) EnsureUser(ctx context.Context, telegramID int64) error {
	m := &user{TelegramID: telegramID}
	_, err := pg.bun.NewInsert().
		Model(m).
		On("CONFLICT (telegram_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// GetUser returns the user for a Telegram account id.
func (pg *Postgres) GetUser(ctx context.Context, telegramID int64) (api.User, error) {
	var m user
	err := pg.bun.NewSelect().
		Model(&m).
		Where("telegram_id = ?", telegramID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.User{}, api.ErrNotFound
	}
	if err != nil {
		return api.User{}, fmt.Errorf("scan: %w", err)
	}
	return m.APIUser(), nil
}

// SetUserPhoto stores the user's avatar URL.
func (pg *Postgres) SetUserPhoto(ctx context.Context, telegramID int64, photoURL string) error {
	_, err := pg.bun.NewUpdate().
		Model((*user)(nil)).
		Set("photo_url = ?", photoURL).
		Where("telegram_id = ?", telegramID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	return nil
}

// ChannelInfo returns the channel metadata singleton.
func (pg *Postgres) ChannelInfo(ctx context.Context) (api.ChannelInfo, error) {
	var m channelInfo
	err := pg.bun.NewSelect().
		Model(&m).
		Where("id = 1").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.ChannelInfo{}, api.ErrNotFound
	}
	if err != nil {
		return api.ChannelInfo{}, fmt.Errorf("scan: %w", err)
	}
	return m.APIChannelInfo(), nil
}

// SetChannelInfo upserts the channel metadata singleton.
func (pg *Postgres) SetChannelInfo(ctx context.Context, info api.ChannelInfo) error {
	m := &channelInfo{
		ID:        1,
		Name:      info.Name,
		AvatarURL: info.AvatarURL,
		UpdatedAt: info.UpdatedAt,
	}
	_, err := pg.bun.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("avatar_url = EXCLUDED.avatar_url").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert channel info: %w", err)
	}
	return nil
}
