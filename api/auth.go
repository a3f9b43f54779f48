package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"channelboard/auth"
)

// widgetQueryKeys are the parameters Telegram appends on the widget redirect.
var widgetQueryKeys = []string{"id", "first_name", "last_name", "username", "photo_url", "auth_date", "hash"}

const loggedInPage = `<!DOCTYPE html><html><head><meta charset="utf-8"></head><body>
<script>if(window.opener){window.opener.location.reload();window.close();}else{window.location.href="/";}</script>
<p>Signed in.</p></body></html>`

// createLoginToken mints a one-time login token for the given Telegram
// account. Only the ingestion bot may call it, authenticated by the shared
// secret.
func (a *API) createLoginToken(w http.ResponseWriter, r *http.Request) {
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
			Token    string `json:"token"`
			LoginURL string `json:"login_url"`
		}
		errorResponse struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
	)

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	if a.LoginTokenSecret == "" || body.Secret != a.LoginTokenSecret {
		a.respond(w, http.StatusForbidden, errorResponse{Error: "Forbidden"})
		return
	}
	if body.TelegramID == 0 {
		a.respond(w, http.StatusBadRequest, errorResponse{Error: "Invalid telegram_id"})
		return
	}

	username := strings.TrimPrefix(strings.TrimSpace(body.Username), "@")
	err := a.DB.UpdateUserNames(r.Context(), body.TelegramID, username,
		strings.TrimSpace(body.FirstName), strings.TrimSpace(body.LastName))
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not save user")
		return
	}

	token, err := a.Tokens.Issue(r.Context(), body.TelegramID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not issue login token")
		return
	}

	a.respond(w, http.StatusOK, response{
		OK:       true,
		Token:    token,
		LoginURL: a.loginURL(r, token),
	})
}

func (a *API) loginURL(r *http.Request, token string) string {
	base := a.SiteBaseURL
	if base == "" {
		base = "http://" + r.Host
	}
	return base + "/auth/telegram/verify?token=" + token
}

// widgetLogin verifies a Telegram Login Widget payload sent as JSON and
// establishes a session.
func (a *API) widgetLogin(w http.ResponseWriter, r *http.Request) {
	type (
		response struct {
			OK   bool `json:"ok"`
			User User `json:"user"`
		}
		errorResponse struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
	)

	// The signature covers every field Telegram sent, so the raw payload is
	// kept as a string map for verification before typed extraction.
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || len(raw) == 0 {
		a.respond(w, http.StatusBadRequest, errorResponse{Error: "No data"})
		return
	}

	fields := auth.PayloadFields(raw)
	if a.BotToken == "" || !auth.VerifyWidgetHash(fields, a.BotToken) {
		a.respond(w, http.StatusForbidden, errorResponse{Error: "Invalid hash"})
		return
	}

	user, err := a.loginFromWidget(w, r, fields)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not log in")
		return
	}

	a.respond(w, http.StatusOK, response{OK: true, User: user})
}

// widgetCallback handles the redirect variant of the widget flow: Telegram
// sends the signed payload as query parameters.
func (a *API) widgetCallback(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]string, len(widgetQueryKeys))
	for _, k := range widgetQueryKeys {
		if r.URL.Query().Has(k) {
			fields[k] = r.URL.Query().Get(k)
		}
	}
	if fields["hash"] == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if a.BotToken == "" || !auth.VerifyWidgetHash(fields, a.BotToken) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if _, err := a.loginFromWidget(w, r, fields); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not log in")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(loggedInPage))
}

// loginFromWidget upserts the user carried by a verified widget payload and
// writes the session cookie.
func (a *API) loginFromWidget(w http.ResponseWriter, r *http.Request, fields map[string]string) (User, error) {
	telegramID, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return User{}, errors.New("widget payload: invalid id")
	}

	user := User{
		TelegramID: telegramID,
		Username:   fields["username"],
		FirstName:  fields["first_name"],
		LastName:   fields["last_name"],
		PhotoURL:   fields["photo_url"],
		IsAdmin:    a.Admins[telegramID],
	}
	if err := a.DB.UpsertUser(r.Context(), user); err != nil {
		return User{}, err
	}

	err = a.Sessions.SetUser(w, r, SessionUser{
		TelegramID: user.TelegramID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		PhotoURL:   user.PhotoURL,
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// redeemLoginToken logs the user in through a one-time token from the bot.
// Unknown, used and expired tokens all redirect back without a session.
func (a *API) redeemLoginToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	telegramID, err := a.Tokens.Redeem(r.Context(), token)
	if errors.Is(err, ErrTokenNotFound) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not redeem login token")
		return
	}

	user, err := a.DB.GetUser(r.Context(), telegramID)
	if errors.Is(err, ErrNotFound) {
		user = User{TelegramID: telegramID}
		err = a.DB.EnsureUser(r.Context(), telegramID)
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not load user")
		return
	}

	if user.PhotoURL == "" && a.Photos != nil {
		if photoURL, err := a.Photos.FetchProfilePhoto(r.Context(), telegramID); err != nil {
			a.Logger.Error("Could not fetch profile photo", "error", err.Error(), "telegram_id", telegramID)
		} else if photoURL != "" {
			user.PhotoURL = photoURL
			if err := a.DB.SetUserPhoto(r.Context(), telegramID, photoURL); err != nil {
				a.Logger.Error("Could not save profile photo", "error", err.Error(), "telegram_id", telegramID)
			}
		}
	}

	err = a.Sessions.SetUser(w, r, SessionUser{
		TelegramID: user.TelegramID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		PhotoURL:   user.PhotoURL,
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not save session")
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}
