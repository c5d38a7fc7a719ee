package immo

import (
	"context"
	"time"
)

type (
	User struct {
		ID           string    `db:"id"`
		Username     string    `db:"username"`
		PasswordHash string    `db:"password_hash"`
		Staff        bool      `db:"staff"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	// Comment is a user's question or remark on a listing. Comments read
	// oldest-first, chat style.
	Comment struct {
		ID        string    `db:"id"`
		ListingID string    `db:"listing_id"`
		UserID    string    `db:"user_id"`
		Body      string    `db:"body"`
		CreatedAt time.Time `db:"created_at"`
	}

	// CommentWithAuthor joins the commenter's username for display.
	CommentWithAuthor struct {
		Comment

		Username string `db:"username"`
	}

	// Favorite links a user to a listing they've liked. One per pair.
	Favorite struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		ListingID string    `db:"listing_id"`
		CreatedAt time.Time `db:"created_at"`
	}

	UserRepo interface {
		CreateUser(ctx context.Context, username, passwordHash string) (User, error)
		User(ctx context.Context, id string) (User, error)
		UserByUsername(ctx context.Context, username string) (User, error)
	}

	SocialRepo interface {
		InsertComment(ctx context.Context, listingID, userID, body string) (Comment, error)
		ListingComments(ctx context.Context, listingID string) ([]CommentWithAuthor, error)
		LatestComments(ctx context.Context, limit int) ([]CommentWithAuthor, error)
		// ToggleFavorite flips the user's favorite on a listing and
		// reports whether it is now set.
		ToggleFavorite(ctx context.Context, userID, listingID string) (bool, error)
		FavoriteListingIDs(ctx context.Context, userID string) ([]string, error)
	}
)
