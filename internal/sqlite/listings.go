package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/CharlT24/social-immo/internal/immo"
)

const (
	listingNamespace = "-lst"
	photoNamespace   = "-pht"
)

func (r Repo) Listing(ctx context.Context, id string) (immo.Listing, error) {
	const q = `SELECT * FROM listings WHERE id = ?;`

	var listing immo.Listing
	err := r.db.GetContext(ctx, &listing, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return immo.Listing{}, immo.ErrNotFound
	}
	if err != nil {
		return immo.Listing{}, fmt.Errorf("error fetching listing: %s", err)
	}

	return listing, nil
}

func (r Repo) ListingByReference(ctx context.Context, reference string) (immo.Listing, error) {
	return listingByReference(ctx, r.db, reference)
}

func listingByReference(ctx context.Context, ext sqlx.ExtContext, reference string) (immo.Listing, error) {
	const q = `SELECT * FROM listings WHERE reference = ?;`

	var listing immo.Listing
	err := sqlx.GetContext(ctx, ext, &listing, q, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return immo.Listing{}, immo.ErrNotFound
	}
	if err != nil {
		return immo.Listing{}, fmt.Errorf("error fetching listing: %s", err)
	}

	return listing, nil
}

// FilterListings returns the active listings matching the filter, newest
// first.
func (r Repo) FilterListings(ctx context.Context, filter immo.ListingFilter) ([]immo.Listing, error) {
	q := sq.Select("*").From("listings").Where(sq.Eq{"active": true})
	if filter.City != "" {
		q = q.Where(sq.Like{"city": "%" + filter.City + "%"})
	}
	if filter.MaxPrice != nil {
		q = q.Where(sq.LtOrEq{"price": *filter.MaxPrice})
	}
	if filter.MinSurface != nil {
		q = q.Where(sq.GtOrEq{"surface": *filter.MinSurface})
	}
	if filter.TransactionType != "" {
		q = q.Where(sq.Eq{"transaction_type": filter.TransactionType})
	}
	q = q.OrderBy("created_at DESC")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var listings []immo.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("error fetching listings: %s", err)
	}

	return listings, nil
}

// Cities returns the distinct cities of active listings, for the filter
// dropdown.
func (r Repo) Cities(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT city FROM listings WHERE active = 1 AND city != '' ORDER BY city;`

	var cities []string
	if err := r.db.SelectContext(ctx, &cities, q); err != nil {
		return nil, fmt.Errorf("error fetching cities: %s", err)
	}

	return cities, nil
}

// LatestListings returns the newest active listings, for the dashboard.
func (r Repo) LatestListings(ctx context.Context, limit int) ([]immo.Listing, error) {
	const q = `SELECT * FROM listings WHERE active = 1 ORDER BY created_at DESC LIMIT ?;`

	var listings []immo.Listing
	if err := r.db.SelectContext(ctx, &listings, q, limit); err != nil {
		return nil, fmt.Errorf("error fetching latest listings: %s", err)
	}

	return listings, nil
}

// Reconcile upserts one listing keyed by its reference and, when
// replacePhotos is set, drops and recreates its photo set. Both run in one
// transaction so a failure can't leave the listing with the wrong photos.
func (r Repo) Reconcile(ctx context.Context, up immo.ListingUpsert, photos []immo.Photo, replacePhotos bool) (immo.Listing, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return immo.Listing{}, false, fmt.Errorf("error starting transaction: %s", err)
	}
	defer tx.Rollback()

	var (
		created bool
		id      string
	)
	existing, err := listingByReference(ctx, tx, up.Reference)
	switch {
	case errors.Is(err, immo.ErrNotFound):
		id, err = insertListing(ctx, tx, up)
		if err != nil {
			return immo.Listing{}, false, err
		}
		created = true
	case err != nil:
		return immo.Listing{}, false, err
	default:
		id = existing.ID
		if err := updateListing(ctx, tx, id, up); err != nil {
			return immo.Listing{}, false, err
		}
	}

	if replacePhotos {
		if err := replaceListingPhotos(ctx, tx, id, photos); err != nil {
			return immo.Listing{}, false, err
		}
	}

	listing, err := listingByReference(ctx, tx, up.Reference)
	if err != nil {
		return immo.Listing{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return immo.Listing{}, false, fmt.Errorf("error committing reconcile: %s", err)
	}

	return listing, created, nil
}

func insertListing(ctx context.Context, ext sqlx.ExtContext, up immo.ListingUpsert) (string, error) {
	const q = `INSERT INTO listings (
		id, reference, client_reference, title, body, type_code,
		contact_name, contact_email, contact_phone,
		postal_code, city, room_count, bedroom_count, surface, construction_year,
		energy_class, energy_value, emission_class,
		transaction_type, price, fee_payer
	) VALUES (
		:id, :reference, :client_reference, :title, :body, :type_code,
		:contact_name, :contact_email, :contact_phone,
		:postal_code, :city, :room_count, :bedroom_count, :surface, :construction_year,
		:energy_class, :energy_value, :emission_class,
		:transaction_type, :price, :fee_payer
	);`

	// Absent sub-sections fall through to the model defaults.
	l := immo.Listing{
		ID:              fmt.Sprintf("%s%s", uuid.NewString(), listingNamespace),
		Reference:       up.Reference,
		ClientReference: up.ClientReference,
		Title:           up.Title,
		Body:            up.Body,
		TypeCode:        up.TypeCode,
		ContactName:     up.ContactName,
		ContactEmail:    up.ContactEmail,
		ContactPhone:    up.ContactPhone,
		TransactionType: immo.TransactionSale,
		Price:           decimal.Zero,
	}
	if p := up.Property; p != nil {
		l.PostalCode = p.PostalCode
		l.City = p.City
		l.RoomCount = p.RoomCount
		l.BedroomCount = p.BedroomCount
		l.Surface = p.Surface
		l.ConstructionYear = p.ConstructionYear
	}
	if d := up.Diagnostics; d != nil {
		l.EnergyClass = d.EnergyClass
		l.EnergyValue = d.EnergyValue
		l.EmissionClass = d.EmissionClass
	}
	if p := up.Pricing; p != nil {
		l.TransactionType = p.TransactionType
		l.Price = p.Price
		l.FeePayer = p.FeePayer
	}

	if _, err := sqlx.NamedExecContext(ctx, ext, q, l); err != nil {
		return "", fmt.Errorf("error inserting listing: %s", err)
	}

	return l.ID, nil
}

// updateListing overwrites the stored fields with the extracted ones. Only
// the sub-sections present on the upsert get written; an absent section
// keeps whatever the row already holds.
func updateListing(ctx context.Context, ext sqlx.ExtContext, id string, up immo.ListingUpsert) error {
	q := sq.Update("listings").
		Set("client_reference", up.ClientReference).
		Set("title", up.Title).
		Set("body", up.Body).
		Set("type_code", up.TypeCode).
		Set("contact_name", up.ContactName).
		Set("contact_email", up.ContactEmail).
		Set("contact_phone", up.ContactPhone).
		Set("updated_at", sq.Expr("CURRENT_TIMESTAMP"))
	if p := up.Property; p != nil {
		q = q.Set("postal_code", p.PostalCode).
			Set("city", p.City).
			Set("room_count", p.RoomCount).
			Set("bedroom_count", p.BedroomCount).
			Set("surface", p.Surface).
			Set("construction_year", p.ConstructionYear)
	}
	if d := up.Diagnostics; d != nil {
		q = q.Set("energy_class", d.EnergyClass).
			Set("energy_value", d.EnergyValue).
			Set("emission_class", d.EmissionClass)
	}
	if p := up.Pricing; p != nil {
		q = q.Set("transaction_type", p.TransactionType).
			Set("price", p.Price).
			Set("fee_payer", p.FeePayer)
	}
	q = q.Where(sq.Eq{"id": id})

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}
	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error executing listing update: %s", err)
	}

	return nil
}

func replaceListingPhotos(ctx context.Context, ext sqlx.ExtContext, listingID string, photos []immo.Photo) error {
	const del = `DELETE FROM photos WHERE listing_id = ?;`
	if _, err := ext.ExecContext(ctx, del, listingID); err != nil {
		return fmt.Errorf("error deleting photos: %s", err)
	}

	if len(photos) == 0 {
		return nil
	}

	// Create id's for the photos and tie them to the listing
	for i := range photos {
		photos[i].ID = fmt.Sprintf("%s%s", uuid.NewString(), photoNamespace)
		photos[i].ListingID = listingID
	}

	const q = `INSERT INTO photos (id, listing_id, url, position)
	VALUES (:id, :listing_id, :url, :position);`
	if _, err := sqlx.NamedExecContext(ctx, ext, q, photos); err != nil {
		return fmt.Errorf("error inserting photos: %s", err)
	}

	return nil
}

// Photos returns a listing's photos in display order.
func (r Repo) Photos(ctx context.Context, listingID string) ([]immo.Photo, error) {
	const q = `SELECT * FROM photos WHERE listing_id = ? ORDER BY position ASC;`

	var photos []immo.Photo
	if err := r.db.SelectContext(ctx, &photos, q, listingID); err != nil {
		return nil, fmt.Errorf("error fetching photos: %s", err)
	}

	return photos, nil
}

// Stats computes the aggregate block for the dashboard.
func (r Repo) Stats(ctx context.Context) (immo.Stats, error) {
	const listingQ = `SELECT COUNT(*) AS total_listings,
		COALESCE(AVG(price), 0) AS average_price,
		COALESCE(SUM(price), 0) AS total_value
	FROM listings WHERE active = 1;`

	var stats immo.Stats
	if err := r.db.GetContext(ctx, &stats, listingQ); err != nil {
		return immo.Stats{}, fmt.Errorf("error computing listing stats: %s", err)
	}

	const commentQ = `SELECT COUNT(*) FROM comments WHERE created_at >= datetime('now', '-1 day');`
	if err := r.db.GetContext(ctx, &stats.RecentComments, commentQ); err != nil {
		return immo.Stats{}, fmt.Errorf("error counting recent comments: %s", err)
	}

	const todayQ = `SELECT COUNT(*) FROM listings WHERE date(created_at) = date('now');`
	if err := r.db.GetContext(ctx, &stats.ImportedToday, todayQ); err != nil {
		return immo.Stats{}, fmt.Errorf("error counting today's imports: %s", err)
	}

	return stats, nil
}
