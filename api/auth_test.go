package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"channelboard/auth"
)

// noRedirectClient stops at the first redirect so Location can be asserted.
var noRedirectClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func TestAPI_createLoginToken(t *testing.T) {
	tests := []struct {
		name       string
		db         *testdb
		tokens     *testtokens
		req        string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "WrongSecret",
			db:         &testdb{},
			tokens:     &testtokens{},
			req:        `{"secret": "nope", "telegram_id": 7}`,
			wantStatus: 403,
			wantBody: `{
				"ok": false,
				"error": "Forbidden"
			}`,
		},
		{
			name:       "MissingTelegramID",
			db:         &testdb{},
			tokens:     &testtokens{},
			req:        `{"secret": "hook-secret"}`,
			wantStatus: 400,
			wantBody: `{
				"ok": false,
				"error": "Invalid telegram_id"
			}`,
		},
		{
			name: "OK",
			db: &testdb{
				updateUserNames: func(t *testing.T, telegramID int64, username, firstName, lastName string) error {
					if telegramID != 7 {
						t.Errorf("Got telegram id %d, want 7", telegramID)
					}
					if username != "ann" {
						t.Errorf("Got username %q, want ann", username)
					}
					if firstName != "Ann" {
						t.Errorf("Got first name %q, want Ann", firstName)
					}
					return nil
				},
			},
			tokens: &testtokens{
				issue: func(t *testing.T, telegramID int64) (string, error) {
					if telegramID != 7 {
						t.Errorf("Got telegram id %d, want 7", telegramID)
					}
					return "tok123", nil
				},
			},
			req:        `{"secret": "hook-secret", "telegram_id": 7, "username": "@ann", "first_name": " Ann "}`,
			wantStatus: 200,
			wantBody: `{
				"ok": true,
				"token": "tok123",
				"login_url": "https://example.com/auth/telegram/verify?token=tok123"
			}`,
		},
		{
			name: "IssueError",
			db: &testdb{
				updateUserNames: func(t *testing.T, telegramID int64, username, firstName, lastName string) error {
					return nil
				},
			},
			tokens: &testtokens{
				issue: func(t *testing.T, telegramID int64) (string, error) {
					return "", errors.New("something went wrong")
				},
			},
			req:        `{"secret": "hook-secret", "telegram_id": 7}`,
			wantStatus: 500,
			wantBody: `{
				"error": "Could not issue login token"
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, tt.db, tt.tokens)

			srv := httptest.NewServer(a)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/api/create-login-token", "application/json", strings.NewReader(tt.req))
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			checkBody(t, resp, tt.wantBody)
		})
	}
}

func TestAPI_widgetLogin(t *testing.T) {
	// Signed exactly as Telegram does: over the string forms of every field
	// except the hash itself.
	signed := auth.WidgetHash(map[string]string{
		"id":         "7",
		"first_name": "Ann",
		"username":   "ann",
		"auth_date":  "1700000000",
	}, testBotToken)
	payload := fmt.Sprintf(
		`{"id": 7, "first_name": "Ann", "username": "ann", "auth_date": 1700000000, "hash": %q}`,
		signed)

	tests := []struct {
		name       string
		db         *testdb
		req        string
		wantStatus int
		wantBody   string
		wantCookie bool
	}{
		{
			name:       "EmptyBody",
			db:         &testdb{},
			req:        `{}`,
			wantStatus: 400,
			wantBody: `{
				"ok": false,
				"error": "No data"
			}`,
		},
		{
			name: "InvalidHash",
			db: &testdb{
				upsertUser: func(t *testing.T, u User) error {
					t.Error("UpsertUser called for an unverified payload")
					return nil
				},
			},
			req:        `{"id": 7, "first_name": "Ann", "auth_date": 1700000000, "hash": "deadbeef"}`,
			wantStatus: 403,
			wantBody: `{
				"ok": false,
				"error": "Invalid hash"
			}`,
		},
		{
			name: "OK",
			db: &testdb{
				upsertUser: func(t *testing.T, u User) error {
					if u.TelegramID != 7 {
						t.Errorf("Got telegram id %d, want 7", u.TelegramID)
					}
					if u.Username != "ann" {
						t.Errorf("Got username %q, want ann", u.Username)
					}
					return nil
				},
			},
			req:        payload,
			wantStatus: 200,
			wantBody: `{
				"ok": true,
				"user": {
					"telegram_id": 7,
					"username": "ann",
					"first_name": "Ann",
					"last_name": "",
					"photo_url": "",
					"is_admin": false
				}
			}`,
			wantCookie: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, tt.db, nil)

			srv := httptest.NewServer(a)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/api/auth/telegram", "application/json", strings.NewReader(tt.req))
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			checkBody(t, resp, tt.wantBody)
			checkSessionCookie(t, resp, tt.wantCookie)
		})
	}
}

func TestAPI_widgetCallback(t *testing.T) {
	fields := map[string]string{
		"id":         "7",
		"first_name": "Ann",
		"auth_date":  "1700000000",
	}
	signed := auth.WidgetHash(fields, testBotToken)

	query := url.Values{}
	for k, v := range fields {
		query.Set(k, v)
	}

	t.Run("OK", func(t *testing.T) {
		db := &testdb{
			upsertUser: func(t *testing.T, u User) error {
				if u.TelegramID != 7 {
					t.Errorf("Got telegram id %d, want 7", u.TelegramID)
				}
				return nil
			},
		}
		a := newTestAPI(t, db, nil)

		srv := httptest.NewServer(a)
		defer srv.Close()

		q := url.Values{}
		for k, v := range fields {
			q.Set(k, v)
		}
		q.Set("hash", signed)

		resp, err := noRedirectClient.Get(srv.URL + "/auth/telegram/callback?" + q.Encode())
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 200)
		checkSessionCookie(t, resp, true)
	})

	t.Run("InvalidHash", func(t *testing.T) {
		a := newTestAPI(t, &testdb{}, nil)

		srv := httptest.NewServer(a)
		defer srv.Close()

		q := url.Values{}
		for k, v := range fields {
			q.Set(k, v)
		}
		q.Set("hash", "deadbeef")

		resp, err := noRedirectClient.Get(srv.URL + "/auth/telegram/callback?" + q.Encode())
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 302)
		if loc := resp.Header.Get("Location"); loc != "/" {
			t.Errorf("Got redirect to %q, want /", loc)
		}
		checkSessionCookie(t, resp, false)
	})

	t.Run("NoHash", func(t *testing.T) {
		a := newTestAPI(t, &testdb{}, nil)

		srv := httptest.NewServer(a)
		defer srv.Close()

		resp, err := noRedirectClient.Get(srv.URL + "/auth/telegram/callback?" + query.Encode())
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 302)
		checkSessionCookie(t, resp, false)
	})
}

func TestAPI_redeemLoginToken(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		db := &testdb{
			getUser: func(t *testing.T, telegramID int64) (User, error) {
				if telegramID != 7 {
					t.Errorf("Got telegram id %d, want 7", telegramID)
				}
				return User{TelegramID: 7, Username: "ann", PhotoURL: "/uploads/user_avatar_7.jpg"}, nil
			},
		}
		tokens := &testtokens{
			redeem: func(t *testing.T, token string) (int64, error) {
				if token != "tok123" {
					t.Errorf("Got token %q, want tok123", token)
				}
				return 7, nil
			},
		}
		a := newTestAPI(t, db, tokens)

		srv := httptest.NewServer(a)
		defer srv.Close()

		resp, err := noRedirectClient.Get(srv.URL + "/auth/telegram/verify?token=tok123")
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 302)
		if loc := resp.Header.Get("Location"); loc != "/" {
			t.Errorf("Got redirect to %q, want /", loc)
		}
		checkSessionCookie(t, resp, true)
	})

	t.Run("NewUser", func(t *testing.T) {
		ensured := false
		db := &testdb{
			getUser: func(t *testing.T, telegramID int64) (User, error) {
				return User{}, ErrNotFound
			},
			ensureUser: func(t *testing.T, telegramID int64) error {
				ensured = true
				return nil
			},
		}
		tokens := &testtokens{
			redeem: func(t *testing.T, token string) (int64, error) {
				return 7, nil
			},
		}
		a := newTestAPI(t, db, tokens)

		srv := httptest.NewServer(a)
		defer srv.Close()

		resp, err := noRedirectClient.Get(srv.URL + "/auth/telegram/verify?token=tok123")
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 302)
		checkSessionCookie(t, resp, true)
		if !ensured {
			t.Error("EnsureUser was not called for an unknown user")
		}
	})

	t.Run("PhotoBackfill", func(t *testing.T) {
		saved := ""
		db := &testdb{
			getUser: func(t *testing.T, telegramID int64) (User, error) {
				return User{TelegramID: 7}, nil
			},
			setUserPhoto: func(t *testing.T, telegramID int64, photoURL string) error {
				saved = photoURL
				return nil
			},
		}
		tokens := &testtokens{
			redeem: func(t *testing.T, token string) (int64, error) {
				return 7, nil
			},
		}
		a := newTestAPI(t, db, tokens)
		photos := &testphotos{
			T: t,
			fetch: func(t *testing.T, telegramID int64) (string, error) {
				return "/uploads/user_avatar_7.jpg", nil
			},
		}
		a.Photos = photos

		srv := httptest.NewServer(a)
		defer srv.Close()

		resp, err := noRedirectClient.Get(srv.URL + "/auth/telegram/verify?token=tok123")
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 302)
		if saved != "/uploads/user_avatar_7.jpg" {
			t.Errorf("Got saved photo %q, want /uploads/user_avatar_7.jpg", saved)
		}
	})

	t.Run("UnknownToken", func(t *testing.T) {
		tokens := &testtokens{
			redeem: func(t *testing.T, token string) (int64, error) {
				return 0, ErrTokenNotFound
			},
		}
		a := newTestAPI(t, &testdb{}, tokens)

		srv := httptest.NewServer(a)
		defer srv.Close()

		resp, err := noRedirectClient.Get(srv.URL + "/auth/telegram/verify?token=gone")
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 302)
		if loc := resp.Header.Get("Location"); loc != "/" {
			t.Errorf("Got redirect to %q, want /", loc)
		}
		checkSessionCookie(t, resp, false)
	})

	t.Run("MissingToken", func(t *testing.T) {
		a := newTestAPI(t, &testdb{}, &testtokens{})

		srv := httptest.NewServer(a)
		defer srv.Close()

		resp, err := noRedirectClient.Get(srv.URL + "/auth/telegram/verify")
		if err != nil {
			t.Fatal(err)
		}
		checkStatus(t, resp.StatusCode, 302)
		checkSessionCookie(t, resp, false)
	})
}

func checkSessionCookie(t *testing.T, resp *http.Response, want bool) {
	t.Helper()
	got := false
	for _, c := range resp.Cookies() {
		if c.Name == "session" && c.MaxAge >= 0 {
			got = true
		}
	}
	if got != want {
		t.Errorf("Got session cookie %v, want %v", got, want)
	}
}
