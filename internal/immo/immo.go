// Package immo holds the domain types for the listing service: property
// listings imported from the Ubiflow feed, their photos, and the surfaces
// the storage layer implements.
package immo

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")
)

// TransactionType says whether a listing is for sale or for rent.
type TransactionType string

const (
	TransactionSale   TransactionType = "sale"
	TransactionRental TransactionType = "rental"
)

type (
	// Listing is a property listing. The external `reference` is the
	// natural key: re-importing the same reference updates the stored row
	// in place, it never duplicates.
	Listing struct {
		ID              string `db:"id"`
		Reference       string `db:"reference"`
		ClientReference string `db:"client_reference"`

		Title    string `db:"title"`
		Body     string `db:"body"`
		TypeCode string `db:"type_code"`

		ContactName  string `db:"contact_name"`
		ContactEmail string `db:"contact_email"`
		ContactPhone string `db:"contact_phone"`

		PostalCode string `db:"postal_code"`
		City       string `db:"city"`

		RoomCount        *int                `db:"room_count"`
		BedroomCount     *int                `db:"bedroom_count"`
		Surface          decimal.NullDecimal `db:"surface"`
		ConstructionYear *int                `db:"construction_year"`

		// Energy diagnostics: A-G labels plus the consumption figure.
		EnergyClass   string `db:"energy_class"`
		EnergyValue   *int   `db:"energy_value"`
		EmissionClass string `db:"emission_class"`

		TransactionType TransactionType `db:"transaction_type"`
		Price           decimal.Decimal `db:"price"`
		FeePayer        string          `db:"fee_payer"`

		Active    bool      `db:"active"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	// Photo belongs to exactly one listing and is cascade-deleted with it.
	// A listing's photo set is wholesale-replaced on every re-import, so
	// photos are a cache of the feed's current state, nothing more.
	Photo struct {
		ID        string `db:"id"`
		ListingID string `db:"listing_id"`
		URL       string `db:"url"`
		Position  int    `db:"position"`
	}

	// ListingUpsert carries one feed entry's extracted fields. The three
	// pointer groups mirror the feed's optional sub-sections: a nil group
	// was absent from the entry and must leave the stored values alone.
	ListingUpsert struct {
		Reference       string
		ClientReference string

		Title        string
		Body         string
		TypeCode     string
		ContactName  string
		ContactEmail string
		ContactPhone string

		Property    *PropertyFields
		Diagnostics *DiagnosticFields
		Pricing     *PricingFields
	}

	// PropertyFields is the `bien` sub-section of a feed entry.
	PropertyFields struct {
		PostalCode       string
		City             string
		RoomCount        *int
		BedroomCount     *int
		Surface          decimal.NullDecimal
		ConstructionYear *int
	}

	// DiagnosticFields is the `diagnostiques` sub-section.
	DiagnosticFields struct {
		EnergyClass   string
		EnergyValue   *int
		EmissionClass string
	}

	// PricingFields is the `prestation` sub-section.
	PricingFields struct {
		TransactionType TransactionType
		Price           decimal.Decimal
		FeePayer        string
	}

	// ListingFilter narrows a browse query. Zero values mean "don't
	// filter on this".
	ListingFilter struct {
		City            string
		MaxPrice        *int
		MinSurface      *int
		TransactionType TransactionType
	}

	// Stats is the aggregate block shown on the admin dashboard.
	Stats struct {
		TotalListings  int             `db:"total_listings"`
		AveragePrice   decimal.Decimal `db:"average_price"`
		TotalValue     decimal.Decimal `db:"total_value"`
		RecentComments int             `db:"recent_comments"`
		ImportedToday  int             `db:"imported_today"`
	}

	ListingRepo interface {
		Listing(ctx context.Context, id string) (Listing, error)
		ListingByReference(ctx context.Context, reference string) (Listing, error)
		FilterListings(ctx context.Context, filter ListingFilter) ([]Listing, error)
		Cities(ctx context.Context) ([]string, error)
		LatestListings(ctx context.Context, limit int) ([]Listing, error)
		// Reconcile upserts one listing by reference and, when
		// replacePhotos is set, swaps its whole photo set in the same
		// transaction. The bool reports whether the row was created.
		Reconcile(ctx context.Context, up ListingUpsert, photos []Photo, replacePhotos bool) (Listing, bool, error)
		Photos(ctx context.Context, listingID string) ([]Photo, error)
		Stats(ctx context.Context) (Stats, error)
	}

	// Repository is everything the API server needs from storage.
	Repository interface {
		ListingRepo
		SocialRepo
		UserRepo
	}
)
