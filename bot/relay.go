package bot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mymmrac/telego"

	"channelboard/apiclient"
)

// channelPostHandler mirrors a channel post: resolve the media file, store
// it, forward the post to the API. Every failure is terminal for the single
// message; it is logged and the post is dropped.
func (b *Bot) channelPostHandler(bot *telego.Bot, post telego.Message) {
	if post.Chat.Username != "" && "@"+post.Chat.Username != b.channel {
		return
	}

	kind, fileID := mediaRef(post)
	if fileID == "" {
		return
	}

	ctx := context.Background()

	file, err := bot.GetFile(&telego.GetFileParams{FileID: fileID})
	if err != nil {
		slog.Error("bot: Cannot resolve media file", "error", err, "message_id", post.MessageID)
		return
	}

	sourceURL := bot.FileDownloadURL(file.FilePath)
	name := mediaFileName(post.MessageID, file.FilePath)

	location, err := b.uploader.Upload(ctx, sourceURL, name)
	if err != nil {
		slog.Error("bot: Cannot upload media", "error", err, "message_id", post.MessageID)
		return
	}

	id, err := b.client.CreatePost(ctx, apiclient.Post{
		TelegramID: int64(post.MessageID),
		MediaType:  kind,
		MediaPath:  location,
		Caption:    post.Caption,
	})
	if err != nil {
		slog.Error("bot: Cannot forward post to API", "error", err, "message_id", post.MessageID)
		return
	}

	slog.Info("bot: Post mirrored", "post_id", id, "message_id", post.MessageID, "media_type", kind)
}

// mediaRef picks the media kind and file reference from a channel post.
// Photos come in multiple sizes, largest last. Animations are treated as
// video, like the site player expects.
func mediaRef(post telego.Message) (kind, fileID string) {
	switch {
	case len(post.Photo) > 0:
		return "photo", post.Photo[len(post.Photo)-1].FileID
	case post.Video != nil:
		return "video", post.Video.FileID
	case post.Animation != nil:
		return "video", post.Animation.FileID
	}
	return "", ""
}

// mediaFileName derives a stable stored name from the message id, keeping
// the source file's extension.
func mediaFileName(messageID int, filePath string) string {
	ext := filepath.Ext(filePath)
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("post_%d%s", messageID, ext)
}

// RefreshChannelInfo pushes the channel's current title and avatar to the
// API server.
func (b *Bot) RefreshChannelInfo(ctx context.Context) error {
	chat, err := b.api.GetChat(&telego.GetChatParams{
		ChatID: telego.ChatID{Username: b.channel},
	})
	if err != nil {
		return fmt.Errorf("get chat: %w", err)
	}

	avatarURL := ""
	if chat.Photo != nil {
		file, err := b.api.GetFile(&telego.GetFileParams{FileID: chat.Photo.BigFileID})
		if err != nil {
			return fmt.Errorf("get avatar file: %w", err)
		}
		name := "channel_avatar" + extOrJPG(file.FilePath)
		avatarURL, err = b.uploader.Upload(ctx, b.api.FileDownloadURL(file.FilePath), name)
		if err != nil {
			return fmt.Errorf("upload avatar: %w", err)
		}
		// Locally stored files are served by the API under /uploads/.
		if !strings.Contains(avatarURL, "://") {
			avatarURL = "/uploads/" + avatarURL
		}
	}

	if err := b.client.UpdateChannelInfo(ctx, chat.Title, avatarURL); err != nil {
		return fmt.Errorf("update channel info: %w", err)
	}

	slog.Info("bot: Channel info refreshed", "title", chat.Title)
	return nil
}

func extOrJPG(filePath string) string {
	if ext := filepath.Ext(filePath); ext != "" {
		return ext
	}
	return ".jpg"
}
