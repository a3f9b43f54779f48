package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

func (a *API) getChannelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := a.DB.ChannelInfo(r.Context())
	if errors.Is(err, ErrNotFound) {
		type response struct {
			Name      string `json:"name"`
			AvatarURL string `json:"avatar_url"`
		}
		a.respond(w, http.StatusOK, response{Name: "Telegram Channel"})
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not get channel info")
		return
	}
	a.respond(w, http.StatusOK, info)
}

// setChannelInfo upserts the channel metadata singleton. Allowed for admin
// sessions and for the ingestion bot, which authenticates with the shared
// login-token secret instead of a session.
func (a *API) setChannelInfo(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			Name      string `json:"name" validate:"required"`
			AvatarURL string `json:"avatar_url"`
			Secret    string `json:"secret"`
		}
		response struct {
			Status string `json:"status"`
		}
		errorResponse struct {
			Error string `json:"error"`
		}
	)

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	botCaller := a.LoginTokenSecret != "" && body.Secret == a.LoginTokenSecret
	if !botCaller && !a.isAdmin(r) {
		a.respond(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	err := a.DB.SetChannelInfo(r.Context(), ChannelInfo{
		Name:      body.Name,
		AvatarURL: body.AvatarURL,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not update channel info")
		return
	}

	a.respond(w, http.StatusOK, response{Status: "success"})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	u, ok := a.Sessions.User(r)
	if !ok {
		a.respond(w, http.StatusOK, struct{}{})
		return
	}
	a.respond(w, http.StatusOK, User{
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		PhotoURL:   u.PhotoURL,
		IsAdmin:    a.Admins[u.TelegramID],
	})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	type response struct {
		OK bool `json:"ok"`
	}
	if err := a.Sessions.Clear(w, r); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not clear session")
		return
	}
	a.respond(w, http.StatusOK, response{OK: true})
}
