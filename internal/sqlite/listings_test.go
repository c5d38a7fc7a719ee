package sqlite_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/CharlT24/social-immo/internal/immo"
	"github.com/CharlT24/social-immo/internal/migrations"
	immoqlite "github.com/CharlT24/social-immo/internal/sqlite"
)

func newTestRepo(t *testing.T) immoqlite.Repo {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })

	// A second pool connection would get its own empty in-memory db
	dbx.SetMaxOpenConns(1)

	require.NoError(t, migrations.Run(dbx))

	return immoqlite.New(dbx)
}

func upsertFor(reference, city string, price int64) immo.ListingUpsert {
	return immo.ListingUpsert{
		Reference: reference,
		Title:     "Listing " + reference,
		Property: &immo.PropertyFields{
			City:    city,
			Surface: decimal.NewNullDecimal(decimal.NewFromInt(80)),
		},
		Pricing: &immo.PricingFields{
			TransactionType: immo.TransactionSale,
			Price:           decimal.NewFromInt(price),
		},
	}
}

func TestReconcile_CreateThenUpdate(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	listing, created, err := repo.Reconcile(ctx, upsertFor("REF-1", "Nantes", 300000), nil, false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "REF-1", listing.Reference)
	assert.True(t, listing.Active)

	// Same reference again: updated in place, never duplicated
	listing2, created, err := repo.Reconcile(ctx, upsertFor("REF-1", "Rennes", 310000), nil, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, listing.ID, listing2.ID)
	assert.Equal(t, "Rennes", listing2.City)
	assert.Equal(t, "310000", listing2.Price.String())

	all, err := repo.FilterListings(ctx, immo.ListingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReconcile_DefaultsWithoutSections(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	listing, created, err := repo.Reconcile(ctx, immo.ListingUpsert{Reference: "REF-2", Title: "Bare"}, nil, false)
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, immo.TransactionSale, listing.TransactionType)
	assert.True(t, listing.Price.IsZero())
	assert.False(t, listing.Surface.Valid)
	assert.Nil(t, listing.RoomCount)
}

func TestReconcile_ReplacePhotos(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	first := []immo.Photo{
		{URL: "https://cdn.example.com/a.jpg", Position: 1},
		{URL: "https://cdn.example.com/b.jpg", Position: 2},
	}
	listing, _, err := repo.Reconcile(ctx, upsertFor("REF-3", "Nantes", 100), first, true)
	require.NoError(t, err)

	photos, err := repo.Photos(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, photos, 2)

	// Replacement is destructive, not a diff
	second := []immo.Photo{{URL: "https://cdn.example.com/c.jpg", Position: 1}}
	_, _, err = repo.Reconcile(ctx, upsertFor("REF-3", "Nantes", 100), second, true)
	require.NoError(t, err)

	photos, err = repo.Photos(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "https://cdn.example.com/c.jpg", photos[0].URL)

	// replacePhotos unset leaves the stored set alone
	_, _, err = repo.Reconcile(ctx, upsertFor("REF-3", "Nantes", 100), nil, false)
	require.NoError(t, err)

	photos, err = repo.Photos(ctx, listing.ID)
	require.NoError(t, err)
	assert.Len(t, photos, 1)
}

func TestFilterListings(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	_, _, err := repo.Reconcile(ctx, upsertFor("REF-10", "Nantes", 200000), nil, false)
	require.NoError(t, err)
	_, _, err = repo.Reconcile(ctx, upsertFor("REF-11", "Rennes", 450000), nil, false)
	require.NoError(t, err)

	rental := upsertFor("REF-12", "Nantes", 900)
	rental.Pricing.TransactionType = immo.TransactionRental
	_, _, err = repo.Reconcile(ctx, rental, nil, false)
	require.NoError(t, err)

	maxPrice := 250000
	got, err := repo.FilterListings(ctx, immo.ListingFilter{MaxPrice: &maxPrice})
	require.NoError(t, err)
	require.Len(t, got, 2) // the cheap sale and the rental

	got, err = repo.FilterListings(ctx, immo.ListingFilter{City: "nant"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.FilterListings(ctx, immo.ListingFilter{TransactionType: immo.TransactionRental})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "REF-12", got[0].Reference)

	cities, err := repo.Cities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nantes", "Rennes"}, cities)
}

func TestToggleFavorite(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	usr, err := repo.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	listing, _, err := repo.Reconcile(ctx, upsertFor("REF-20", "Nantes", 100), nil, false)
	require.NoError(t, err)

	liked, err := repo.ToggleFavorite(ctx, usr.ID, listing.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	ids, err := repo.FavoriteListingIDs(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{listing.ID}, ids)

	// Second toggle removes it
	liked, err = repo.ToggleFavorite(ctx, usr.ID, listing.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	ids, err = repo.FavoriteListingIDs(ctx, usr.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCreateUser_Conflict(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	_, err := repo.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, "bob", "other")
	require.ErrorIs(t, err, immo.ErrConflict)
}

func TestComments(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	usr, err := repo.CreateUser(ctx, "carol", "hash")
	require.NoError(t, err)
	listing, _, err := repo.Reconcile(ctx, upsertFor("REF-30", "Nantes", 100), nil, false)
	require.NoError(t, err)

	_, err = repo.InsertComment(ctx, listing.ID, usr.ID, "first")
	require.NoError(t, err)
	_, err = repo.InsertComment(ctx, listing.ID, usr.ID, "second")
	require.NoError(t, err)

	comments, err := repo.ListingComments(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "carol", comments[0].Username)

	bodies := []string{comments[0].Body, comments[1].Body}
	assert.ElementsMatch(t, []string{"first", "second"}, bodies)
}
