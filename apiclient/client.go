// Package apiclient is the bot's typed client for the API server.
package apiclient

import (
	"context"
	"fmt"

	"resty.dev/v3"
)

// Client calls the API server's ingestion and auth endpoints.
type Client struct {
	client *resty.Client
	secret string
}

// New builds a client for the API base URL (ending in /api). The secret
// authorizes login-token issuance and channel-info updates.
func New(baseURL, loginTokenSecret string) *Client {
	return &Client{
		client: resty.New().SetBaseURL(baseURL),
		secret: loginTokenSecret,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// A Post is the ingestion payload for a mirrored channel post.
type Post struct {
	TelegramID int64  `json:"telegram_id"`
	MediaType  string `json:"media_type"`
	MediaPath  string `json:"media_path"`
	Caption    string `json:"caption"`
}

// CreatePost forwards a mirrored post and returns the post id assigned by
// the server. Repeating a Telegram message id returns the original id.
func (c *Client) CreatePost(ctx context.Context, p Post) (int64, error) {
	type response struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}

	res, err := c.r(ctx).
		SetBody(p).
		SetResult(&response{}).
		Post("/posts")
	if err != nil {
		return 0, fmt.Errorf("create post: %w", err)
	}
	if !res.IsSuccess() {
		return 0, fmt.Errorf("create post: unexpected status %s", res.Status())
	}
	return res.Result().(*response).ID, nil
}

// A LoginUser identifies the Telegram account requesting a login link.
type LoginUser struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// CreateLoginToken asks the server to mint a one-time login token and
// returns the login URL to hand to the user.
func (c *Client) CreateLoginToken(ctx context.Context, u LoginUser) (string, error) {
	type (
		request struct {
			Secret     string `json:"secret"`
			TelegramID int64  `json:"telegram_id"`
			Username   string `json:"username"`
			FirstName  string `json:"first_name"`
			LastName   string `json:"last_name"`
		}
		response struct {
			OK       bool   `json:"ok"`
			LoginURL string `json:"login_url"`
		}
	)

	res, err := c.r(ctx).
		SetBody(request{
			Secret:     c.secret,
			TelegramID: u.TelegramID,
			Username:   u.Username,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
		}).
		SetResult(&response{}).
		Post("/create-login-token")
	if err != nil {
		return "", fmt.Errorf("create login token: %w", err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("create login token: unexpected status %s", res.Status())
	}
	out := res.Result().(*response)
	if !out.OK || out.LoginURL == "" {
		return "", fmt.Errorf("create login token: no login url in response")
	}
	return out.LoginURL, nil
}

// UpdateChannelInfo pushes the channel's display name and avatar URL.
func (c *Client) UpdateChannelInfo(ctx context.Context, name, avatarURL string) error {
	type request struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
		Secret    string `json:"secret"`
	}

	res, err := c.r(ctx).
		SetBody(request{Name: name, AvatarURL: avatarURL, Secret: c.secret}).
		Post("/channel-info")
	if err != nil {
		return fmt.Errorf("update channel info: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("update channel info: unexpected status %s", res.Status())
	}
	return nil
}
