package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"modernc.org/sqlite"

	"github.com/CharlT24/social-immo/internal/immo"
)

const (
	commentNamespace  = "-cmt"
	favoriteNamespace = "-fav"
)

func (r Repo) InsertComment(ctx context.Context, listingID, userID, body string) (immo.Comment, error) {
	const q = `INSERT INTO comments (id, listing_id, user_id, body)
	VALUES (:id, :listing_id, :user_id, :body);`

	c := immo.Comment{
		ID:        fmt.Sprintf("%s%s", uuid.NewString(), commentNamespace),
		ListingID: listingID,
		UserID:    userID,
		Body:      body,
	}
	if _, err := r.db.NamedExecContext(ctx, q, c); err != nil {
		return immo.Comment{}, fmt.Errorf("error inserting comment: %s", err)
	}

	const get = `SELECT * FROM comments WHERE id = ?;`
	if err := r.db.GetContext(ctx, &c, get, c.ID); err != nil {
		return immo.Comment{}, fmt.Errorf("error fetching comment: %s", err)
	}

	return c, nil
}

// ListingComments returns a listing's comments oldest-first, chat style.
func (r Repo) ListingComments(ctx context.Context, listingID string) ([]immo.CommentWithAuthor, error) {
	const q = `SELECT comments.*, users.username FROM comments
	JOIN users ON users.id = comments.user_id
	WHERE comments.listing_id = ?
	ORDER BY comments.created_at ASC;`

	var comments []immo.CommentWithAuthor
	if err := r.db.SelectContext(ctx, &comments, q, listingID); err != nil {
		return nil, fmt.Errorf("error fetching comments: %s", err)
	}

	return comments, nil
}

// LatestComments returns the newest comments across all listings, for
// moderation on the dashboard.
func (r Repo) LatestComments(ctx context.Context, limit int) ([]immo.CommentWithAuthor, error) {
	const q = `SELECT comments.*, users.username FROM comments
	JOIN users ON users.id = comments.user_id
	ORDER BY comments.created_at DESC LIMIT ?;`

	var comments []immo.CommentWithAuthor
	if err := r.db.SelectContext(ctx, &comments, q, limit); err != nil {
		return nil, fmt.Errorf("error fetching latest comments: %s", err)
	}

	return comments, nil
}

// ToggleFavorite flips the user's favorite on a listing: insert when
// missing, delete when present. Reports whether the favorite now exists.
func (r Repo) ToggleFavorite(ctx context.Context, userID, listingID string) (bool, error) {
	const q = `INSERT INTO favorites (id, user_id, listing_id)
	VALUES (:id, :user_id, :listing_id);`

	f := immo.Favorite{
		ID:        fmt.Sprintf("%s%s", uuid.NewString(), favoriteNamespace),
		UserID:    userID,
		ListingID: listingID,
	}
	_, err := r.db.NamedExecContext(ctx, q, f)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == 2067 {
		// Already favorited: the toggle removes it.
		const del = `DELETE FROM favorites WHERE user_id = ? AND listing_id = ?;`
		if _, err := r.db.ExecContext(ctx, del, userID, listingID); err != nil {
			return false, fmt.Errorf("error deleting favorite: %s", err)
		}

		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error inserting favorite: %s", err)
	}

	return true, nil
}

// FavoriteListingIDs returns the ids of the listings the user has liked.
func (r Repo) FavoriteListingIDs(ctx context.Context, userID string) ([]string, error) {
	const q = `SELECT listing_id FROM favorites WHERE user_id = ?;`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, q, userID); err != nil {
		return nil, fmt.Errorf("error fetching favorites: %s", err)
	}

	return ids, nil
}
