package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	immoerrs "github.com/CharlT24/social-immo/internal/errors"
	"github.com/CharlT24/social-immo/internal/immo"
)

const sessionCookieName = "immo_session"

// Describes a user's sessionState that's persisted to their cookie.
type sessionState struct {
	UserID string
}

// Fetches the current session tied to the request.
func session(r *http.Request, secureCookie *securecookie.SecureCookie) sessionState {
	cookie, err := r.Cookie(sessionCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return sessionState{}
	}
	if err != nil {
		slog.Error("error fetching cookie", "err", err)
		return sessionState{}
	}

	value := sessionState{}
	if err := secureCookie.Decode(sessionCookieName, cookie.Value, &value); err != nil {
		slog.Error("error decoding cookie", "err", err)
		return sessionState{}
	}

	return value
}

// Sets the session on the request.
func setSession(w http.ResponseWriter, secureCookie *securecookie.SecureCookie, https bool, sess sessionState) {
	encoded, err := secureCookie.Encode(sessionCookieName, sess)
	if err != nil {
		slog.Error("error encoding cookie", "err", err)
		return
	}

	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    encoded,
		Path:     "/",
		Secure:   https,
		HttpOnly: true,
	}
	http.SetCookie(w, cookie)
}

func requireSessionMiddleware(sc *securecookie.SecureCookie) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := session(r, sc)
			if state.UserID == "" {
				http.Error(w, "Unauthenticated", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// staffUser loads the session's user and checks the staff flag. Dashboard
// routes are staff-only.
func (s Server) staffUser(r *http.Request) (immo.User, error) {
	state := session(r, s.secureCookie)

	usr, err := s.repo.User(r.Context(), state.UserID)
	if err != nil {
		return immo.User{}, immoerrs.E("unknown user", http.StatusUnauthorized)
	}
	if !usr.Staff {
		return immo.User{}, immoerrs.E("staff only", http.StatusForbidden)
	}

	return usr, nil
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req credentialsReq) Validate() error {
	if strings.TrimSpace(req.Username) == "" {
		return immoerrs.E("username is required", http.StatusBadRequest)
	}
	if len(req.Password) < 8 {
		return immoerrs.E("password must be at least 8 characters", http.StatusBadRequest)
	}

	return nil
}

type viewerResp struct {
	Authenticated bool     `json:"authenticated"`
	UserID        string   `json:"user_id,omitempty"`
	Username      string   `json:"username,omitempty"`
	Staff         bool     `json:"staff,omitempty"`
	Favorites     []string `json:"favorites,omitempty"`
}

func (s Server) postSignup(w http.ResponseWriter, r *http.Request) error {
	body, err := decodeValid[credentialsReq](r.Body)
	if err != nil {
		var sErr *immoerrs.Error
		if errors.As(err, &sErr) {
			return sErr
		}
		return immoerrs.E(err, http.StatusBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	usr, err := s.repo.CreateUser(r.Context(), strings.TrimSpace(body.Username), string(hash))
	if errors.Is(err, immo.ErrConflict) {
		return immoerrs.E("username taken", http.StatusConflict)
	}
	if err != nil {
		return err
	}

	setSession(w, s.secureCookie, s.httpsCookies, sessionState{UserID: usr.ID})

	return writeJSON(w, http.StatusCreated, viewerResp{
		Authenticated: true,
		UserID:        usr.ID,
		Username:      usr.Username,
	})
}

func (s Server) postLogin(w http.ResponseWriter, r *http.Request) error {
	body, err := decodeValid[credentialsReq](r.Body)
	if err != nil {
		var sErr *immoerrs.Error
		if errors.As(err, &sErr) {
			return sErr
		}
		return immoerrs.E(err, http.StatusBadRequest)
	}

	usr, err := s.repo.UserByUsername(r.Context(), strings.TrimSpace(body.Username))
	if errors.Is(err, immo.ErrNotFound) {
		return immoerrs.E("invalid credentials", http.StatusUnauthorized)
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(body.Password)); err != nil {
		return immoerrs.E("invalid credentials", http.StatusUnauthorized)
	}

	setSession(w, s.secureCookie, s.httpsCookies, sessionState{UserID: usr.ID})

	return writeJSON(w, http.StatusOK, viewerResp{
		Authenticated: true,
		UserID:        usr.ID,
		Username:      usr.Username,
		Staff:         usr.Staff,
	})
}

func (s Server) getLogout(w http.ResponseWriter, r *http.Request) error {
	setSession(w, s.secureCookie, s.httpsCookies, sessionState{})

	return writeJSON(w, http.StatusOK, viewerResp{})
}

func (s Server) handleViewer(w http.ResponseWriter, r *http.Request) error {
	state := session(r, s.secureCookie)
	if state.UserID == "" {
		return writeJSON(w, http.StatusOK, viewerResp{})
	}

	usr, err := s.repo.User(r.Context(), state.UserID)
	if errors.Is(err, immo.ErrNotFound) {
		// Stale cookie referencing a gone user
		return writeJSON(w, http.StatusOK, viewerResp{})
	}
	if err != nil {
		return err
	}

	favorites, err := s.repo.FavoriteListingIDs(r.Context(), usr.ID)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, viewerResp{
		Authenticated: true,
		UserID:        usr.ID,
		Username:      usr.Username,
		Staff:         usr.Staff,
		Favorites:     favorites,
	})
}
