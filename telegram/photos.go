// Package telegram talks to the Telegram Bot API directly where the bot
// framework is not available, currently only for profile photos.
package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"resty.dev/v3"
)

const apiBaseURL = "https://api.telegram.org"

// PhotoFetcher downloads user profile photos into the upload directory and
// returns the local URL they are served under.
type PhotoFetcher struct {
	client    *resty.Client
	token     string
	uploadDir string
}

func NewPhotoFetcher(botToken, uploadDir string) *PhotoFetcher {
	return &PhotoFetcher{
		client:    resty.New().SetBaseURL(apiBaseURL),
		token:     botToken,
		uploadDir: uploadDir,
	}
}

func (f *PhotoFetcher) Close() error {
	return f.client.Close()
}

func (f *PhotoFetcher) r(ctx context.Context) *resty.Request {
	return f.client.R().WithContext(ctx)
}

type photoSize struct {
	FileID string `json:"file_id"`
}

type profilePhotosResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		Photos [][]photoSize `json:"photos"`
	} `json:"result"`
}

type fileResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		FilePath string `json:"file_path"`
	} `json:"result"`
}

// FetchProfilePhoto downloads the user's current profile photo into the
// upload directory and returns its serving URL. An account without a photo
// yields an empty URL and no error.
func (f *PhotoFetcher) FetchProfilePhoto(ctx context.Context, telegramID int64) (string, error) {
	res, err := f.r(ctx).
		SetQueryParam("user_id", fmt.Sprintf("%d", telegramID)).
		SetQueryParam("limit", "1").
		SetResult(&profilePhotosResponse{}).
		Get(fmt.Sprintf("/bot%s/getUserProfilePhotos", f.token))
	if err != nil {
		return "", fmt.Errorf("get profile photos: %w", err)
	}
	photos := res.Result().(*profilePhotosResponse)
	if !photos.OK || len(photos.Result.Photos) == 0 || len(photos.Result.Photos[0]) == 0 {
		return "", nil
	}

	// Sizes are ordered smallest first; take the largest.
	sizes := photos.Result.Photos[0]
	fileID := sizes[len(sizes)-1].FileID

	res, err = f.r(ctx).
		SetQueryParam("file_id", fileID).
		SetResult(&fileResponse{}).
		Get(fmt.Sprintf("/bot%s/getFile", f.token))
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	file := res.Result().(*fileResponse)
	if !file.OK || file.Result.FilePath == "" {
		return "", fmt.Errorf("get file: no file path for %s", fileID)
	}

	res, err = f.r(ctx).Get(fmt.Sprintf("/file/bot%s/%s", f.token, file.Result.FilePath))
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("download photo: unexpected status %s", res.Status())
	}

	ext := filepath.Ext(file.Result.FilePath)
	if ext == "" {
		ext = ".jpg"
	}
	name := fmt.Sprintf("user_avatar_%d%s", telegramID, ext)
	if err := os.WriteFile(filepath.Join(f.uploadDir, name), res.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}

	return "/uploads/" + name, nil
}
