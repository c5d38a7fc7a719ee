// Package sqlite implements the storage surfaces on top of sqlx and a
// sqlite database.
package sqlite

import (
	"github.com/jmoiron/sqlx"

	"github.com/CharlT24/social-immo/internal/immo"
)

// Ensure Repo implements the storage interfaces
var (
	_ immo.ListingRepo = (*Repo)(nil)
	_ immo.SocialRepo  = (*Repo)(nil)
	_ immo.UserRepo    = (*Repo)(nil)
)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}
