package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"channelboard/api/validator"
	"channelboard/metrics"
)

// ErrNotFound is returned by a DB when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrTokenNotFound is returned by a TokenStore when a login token is unknown,
// already redeemed or expired.
var ErrTokenNotFound = errors.New("login token not found")

// A DB provides the storage layer that persists posts, reactions, users and
// channel metadata.
type DB interface {
	ListPosts(ctx context.Context) ([]Post, error)
	UserReactions(ctx context.Context, userID string, postIDs []int64) (map[int64]string, error)
	InsertPost(ctx context.Context, post Post) (int64, error)
	ToggleReaction(ctx context.Context, postID int64, userID, kind string) (ToggleResult, error)
	DeletePost(ctx context.Context, postID int64) (mediaPath string, err error)
	UpsertUser(ctx context.Context, u User) error
	UpdateUserNames(ctx context.Context, telegramID int64, username, firstName, lastName string) error
	EnsureUser(ctx context.Context, telegramID int64) error
	GetUser(ctx context.Context, telegramID int64) (User, error)
	SetUserPhoto(ctx context.Context, telegramID int64, photoURL string) error
	ChannelInfo(ctx context.Context) (ChannelInfo, error)
	SetChannelInfo(ctx context.Context, info ChannelInfo) error
}

// A TokenStore issues and redeems one-time login tokens. A token may be
// redeemed exactly once and only within its expiry window.
type TokenStore interface {
	Issue(ctx context.Context, telegramID int64) (string, error)
	Redeem(ctx context.Context, token string) (int64, error)
}

// A ProfilePhotoFetcher resolves a user's Telegram profile photo to a local
// URL. Optional; a nil fetcher disables photo backfill on token login.
type ProfilePhotoFetcher interface {
	FetchProfilePhoto(ctx context.Context, telegramID int64) (string, error)
}

// API provides the REST endpoints for the application.
type API struct {
	Logger   *slog.Logger
	DB       DB
	Tokens   TokenStore
	Photos   ProfilePhotoFetcher
	Sessions *SessionStore
	Val      *validator.Validator

	// Admins holds the Telegram ids allowed to use mutating admin endpoints.
	Admins map[int64]bool
	// BotToken signs the login widget payloads.
	BotToken string
	// LoginTokenSecret authorizes the ingestion bot to issue login tokens
	// and to update channel info.
	LoginTokenSecret string
	// SiteBaseURL is the public base URL used in generated login links.
	SiteBaseURL string
	// UploadDir is where locally stored media lives.
	UploadDir string

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/posts", a.listPosts)
	mux.HandleFunc("POST /api/posts", a.createPost)
	mux.HandleFunc("POST /api/posts/{postID}/reactions", a.toggleReaction)
	mux.HandleFunc("DELETE /api/posts/{postID}", a.deletePost)
	mux.HandleFunc("GET /api/channel-info", a.getChannelInfo)
	mux.HandleFunc("POST /api/channel-info", a.setChannelInfo)
	mux.HandleFunc("GET /api/me", a.me)
	mux.HandleFunc("POST /api/logout", a.logout)
	mux.HandleFunc("POST /api/create-login-token", a.createLoginToken)
	mux.HandleFunc("POST /api/auth/telegram", a.widgetLogin)
	mux.HandleFunc("GET /auth/telegram/callback", a.widgetCallback)
	mux.HandleFunc("GET /auth/telegram/verify", a.redeemLoginToken)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(a.UploadDir))))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", a.health)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	// The metric is labelled with the route pattern, not the raw path, so
	// path parameters do not blow up the label cardinality.
	_, pattern := a.mux.Handler(r)
	if pattern == "" {
		pattern = "unmatched"
	}
	metrics.ObserveRequest(r.Method, pattern)
	a.mux.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

// isAdmin reports whether the request carries a session belonging to a
// configured administrator.
func (a *API) isAdmin(r *http.Request) bool {
	u, ok := a.Sessions.User(r)
	return ok && a.Admins[u.TelegramID]
}

// userKey is the per-user identifier stored with reactions.
func userKey(telegramID int64) string {
	return "tg_" + strconv.FormatInt(telegramID, 10)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil
}

func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := a.DB.ListPosts(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list posts")
		return
	}

	if u, ok := a.Sessions.User(r); ok && len(posts) > 0 {
		ids := make([]int64, len(posts))
		for i, p := range posts {
			ids[i] = p.ID
		}
		mine, err := a.DB.UserReactions(r.Context(), userKey(u.TelegramID), ids)
		if err != nil {
			a.respondError(w, http.StatusInternalServerError, err, "Could not list posts")
			return
		}
		for i := range posts {
			if kind, ok := mine[posts[i].ID]; ok {
				k := kind
				posts[i].MyReaction = &k
			}
		}
	}

	a.respond(w, http.StatusOK, posts)
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			TelegramID int64  `json:"telegram_id" validate:"required"`
			MediaType  string `json:"media_type" validate:"required"`
			MediaPath  string `json:"media_path" validate:"required"`
			Caption    string `json:"caption"`
		}
		response struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		}
	)

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return
	}

	// Idempotent on the Telegram message id: a repeated ingestion returns
	// the already assigned post id.
	id, err := a.DB.InsertPost(r.Context(), Post{
		TelegramID: body.TelegramID,
		MediaType:  body.MediaType,
		MediaPath:  body.MediaPath,
		Caption:    body.Caption,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not insert post")
		return
	}
	metrics.PostIngested()

	a.respond(w, http.StatusOK, response{ID: id, Status: "success"})
}

func (a *API) toggleReaction(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			ReactionType string `json:"reaction_type"`
		}
		response struct {
			Reactions  map[string]int `json:"reactions"`
			MyReaction *string        `json:"my_reaction"`
			IsNew      bool           `json:"is_new"`
		}
		errorResponse struct {
			Error string `json:"error"`
		}
	)

	postID, ok := pathID(r, "postID")
	if !ok {
		a.respond(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}

	var body request
	// A missing or malformed body degrades to a missing reaction type.
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.ReactionType == "" {
		a.respond(w, http.StatusBadRequest, errorResponse{Error: "reaction_type required"})
		return
	}

	u, ok := a.Sessions.User(r)
	if !ok {
		a.respond(w, http.StatusUnauthorized, errorResponse{Error: "auth_required"})
		return
	}

	res, err := a.DB.ToggleReaction(r.Context(), postID, userKey(u.TelegramID), body.ReactionType)
	if errors.Is(err, ErrNotFound) {
		a.respond(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not toggle reaction")
		return
	}
	metrics.ReactionToggled()

	out := response{Reactions: res.Reactions, IsNew: res.IsNew}
	if res.MyReaction != "" {
		out.MyReaction = &res.MyReaction
	}
	a.respond(w, http.StatusOK, out)
}

func (a *API) deletePost(w http.ResponseWriter, r *http.Request) {
	type (
		response struct {
			OK bool `json:"ok"`
		}
		errorResponse struct {
			Error string `json:"error"`
		}
	)

	if !a.isAdmin(r) {
		a.respond(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	postID, ok := pathID(r, "postID")
	if !ok {
		a.respond(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}

	mediaPath, err := a.DB.DeletePost(r.Context(), postID)
	if errors.Is(err, ErrNotFound) {
		a.respond(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not delete post")
		return
	}

	a.removeLocalMedia(mediaPath)

	a.respond(w, http.StatusOK, response{OK: true})
}

// removeLocalMedia deletes a locally stored media file. CDN URLs are left
// alone; the row is the only thing the server owns for those.
func (a *API) removeLocalMedia(mediaPath string) {
	if mediaPath == "" || strings.Contains(mediaPath, "://") {
		return
	}
	full := filepath.Join(a.UploadDir, filepath.Clean("/"+mediaPath))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		a.Logger.Error("Could not remove media file", "error", err.Error(), "path", full)
	}
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.respond(w, http.StatusOK, map[string]string{"status": "healthy"})
}
