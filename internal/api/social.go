package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/gorilla/mux"
	"github.com/sym01/htmlsanitizer"

	immoerrs "github.com/CharlT24/social-immo/internal/errors"
	"github.com/CharlT24/social-immo/internal/immo"
)

type (
	postCommentReq struct {
		Body string `json:"body"`
	}

	CommentResp struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Body      string    `json:"body"`
		CreatedAt time.Time `json:"created_at"`
	}
)

func apiComment(c immo.CommentWithAuthor) CommentResp {
	return CommentResp{
		ID:        c.ID,
		Username:  c.Username,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

func (s Server) postComment(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx       = r.Context()
		reference = mux.Vars(r)["reference"]
		state     = session(r, s.secureCookie)
	)

	var body postCommentReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return immoerrs.E(err, http.StatusBadRequest)
	}

	// Comments show on a public page, so keep them short, clean, and
	// free of markup.
	const maxLength = 2048
	body.Body = strings.TrimSpace(body.Body)
	if body.Body == "" {
		return immoerrs.E("comment is empty", http.StatusBadRequest)
	}
	if len(body.Body) > maxLength {
		return immoerrs.E("comment too long", http.StatusUnprocessableEntity)
	}
	if goaway.IsProfane(body.Body) {
		return immoerrs.E("profanity detected in comment", http.StatusUnprocessableEntity)
	}

	sanitizer := htmlsanitizer.NewHTMLSanitizer()
	cleaned, err := sanitizer.SanitizeString(body.Body)
	if err != nil {
		return err
	}

	listing, err := s.repo.ListingByReference(ctx, reference)
	if errors.Is(err, immo.ErrNotFound) {
		return immoerrs.E("listing not found", http.StatusNotFound)
	}
	if err != nil {
		return err
	}

	comment, err := s.repo.InsertComment(ctx, listing.ID, state.UserID, cleaned)
	if err != nil {
		return err
	}

	usr, err := s.repo.User(ctx, state.UserID)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, apiComment(immo.CommentWithAuthor{
		Comment:  comment,
		Username: usr.Username,
	}))
}

type (
	toggleFavoriteReq struct {
		ListingID string `json:"listing_id"`
	}

	toggleFavoriteResp struct {
		Liked bool `json:"liked"`
	}
)

func (req toggleFavoriteReq) Validate() error {
	if req.ListingID == "" {
		return immoerrs.E("listing_id is required", http.StatusBadRequest)
	}

	return nil
}

func (s Server) postToggleFavorite(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx   = r.Context()
		state = session(r, s.secureCookie)
	)

	body, err := decodeValid[toggleFavoriteReq](r.Body)
	if err != nil {
		var sErr *immoerrs.Error
		if errors.As(err, &sErr) {
			return sErr
		}
		return immoerrs.E(err, http.StatusBadRequest)
	}

	// Make sure the listing is real before toggling
	if _, err := s.repo.Listing(ctx, body.ListingID); errors.Is(err, immo.ErrNotFound) {
		return immoerrs.E("listing not found", http.StatusNotFound)
	} else if err != nil {
		return err
	}

	liked, err := s.repo.ToggleFavorite(ctx, state.UserID, body.ListingID)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, toggleFavoriteResp{Liked: liked})
}
