package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	immoerrs "github.com/CharlT24/social-immo/internal/errors"
	"github.com/CharlT24/social-immo/internal/immo"
)

type (
	ListingResp struct {
		ID               string               `json:"id"`
		Reference        string               `json:"reference"`
		Title            string               `json:"title"`
		Body             string               `json:"body"`
		TypeCode         string               `json:"type_code"`
		ContactName      string               `json:"contact_name"`
		ContactEmail     string               `json:"contact_email"`
		ContactPhone     string               `json:"contact_phone"`
		PostalCode       string               `json:"postal_code"`
		City             string               `json:"city"`
		RoomCount        *int                 `json:"room_count"`
		BedroomCount     *int                 `json:"bedroom_count"`
		Surface          decimal.NullDecimal  `json:"surface"`
		ConstructionYear *int                 `json:"construction_year"`
		EnergyClass      string               `json:"energy_class"`
		EnergyValue      *int                 `json:"energy_value"`
		EmissionClass    string               `json:"emission_class"`
		TransactionType  immo.TransactionType `json:"transaction_type"`
		Price            decimal.Decimal      `json:"price"`
		FeePayer         string               `json:"fee_payer"`
		CreatedAt        time.Time            `json:"created_at"`
		UpdatedAt        time.Time            `json:"updated_at"`
		Photos           []PhotoResp          `json:"photos"`
		Favorited        bool                 `json:"favorited"`
	}

	PhotoResp struct {
		URL      string `json:"url"`
		Position int    `json:"position"`
	}

	ListingListResp struct {
		Listings []ListingResp `json:"listings"`
		Cities   []string      `json:"cities"`
	}

	ListingDetailResp struct {
		ListingResp

		Comments []CommentResp `json:"comments"`
	}
)

func apiListing(l immo.Listing, photos []PhotoResp) ListingResp {
	return ListingResp{
		ID:               l.ID,
		Reference:        l.Reference,
		Title:            l.Title,
		Body:             l.Body,
		TypeCode:         l.TypeCode,
		ContactName:      l.ContactName,
		ContactEmail:     l.ContactEmail,
		ContactPhone:     l.ContactPhone,
		PostalCode:       l.PostalCode,
		City:             l.City,
		RoomCount:        l.RoomCount,
		BedroomCount:     l.BedroomCount,
		Surface:          l.Surface,
		ConstructionYear: l.ConstructionYear,
		EnergyClass:      l.EnergyClass,
		EnergyValue:      l.EnergyValue,
		EmissionClass:    l.EmissionClass,
		TransactionType:  l.TransactionType,
		Price:            l.Price,
		FeePayer:         l.FeePayer,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
		Photos:           photos,
	}
}

// Builds the filter from the query string. Unusable numeric values are
// dropped rather than erroring, so a mangled filter form still renders the
// unfiltered list.
func listingFilter(r *http.Request) immo.ListingFilter {
	var (
		query  = r.URL.Query()
		filter = immo.ListingFilter{City: query.Get("city")}
	)
	if n, err := strconv.Atoi(query.Get("max_price")); err == nil {
		filter.MaxPrice = &n
	}
	if n, err := strconv.Atoi(query.Get("min_surface")); err == nil {
		filter.MinSurface = &n
	}
	switch t := immo.TransactionType(query.Get("type")); t {
	case immo.TransactionSale, immo.TransactionRental:
		filter.TransactionType = t
	}

	return filter
}

func (s Server) getListings(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	listings, err := s.repo.FilterListings(ctx, listingFilter(r))
	if err != nil {
		return err
	}

	cities, err := s.repo.Cities(ctx)
	if err != nil {
		return err
	}

	// The viewer's favorites, when logged in
	favorited := map[string]bool{}
	if state := session(r, s.secureCookie); state.UserID != "" {
		ids, err := s.repo.FavoriteListingIDs(ctx, state.UserID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			favorited[id] = true
		}
	}

	items := make([]ListingResp, 0, len(listings))
	for _, l := range listings {
		photos, err := s.listingPhotos(r, l)
		if err != nil {
			return err
		}

		resp := apiListing(l, photos)
		resp.Favorited = favorited[l.ID]
		items = append(items, resp)
	}

	return writeJSON(w, http.StatusOK, ListingListResp{
		Listings: items,
		Cities:   cities,
	})
}

func (s Server) getListing(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx       = r.Context()
		reference = mux.Vars(r)["reference"]
	)

	listing, err := s.repo.ListingByReference(ctx, reference)
	if errors.Is(err, immo.ErrNotFound) {
		return immoerrs.E("listing not found", http.StatusNotFound)
	}
	if err != nil {
		return err
	}
	if !listing.Active {
		return immoerrs.E("listing not found", http.StatusNotFound)
	}

	photos, err := s.listingPhotos(r, listing)
	if err != nil {
		return err
	}

	comments, err := s.repo.ListingComments(ctx, listing.ID)
	if err != nil {
		return err
	}

	resp := ListingDetailResp{
		ListingResp: apiListing(listing, photos),
		Comments:    make([]CommentResp, 0, len(comments)),
	}
	for _, c := range comments {
		resp.Comments = append(resp.Comments, apiComment(c))
	}

	if state := session(r, s.secureCookie); state.UserID != "" {
		ids, err := s.repo.FavoriteListingIDs(ctx, state.UserID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == listing.ID {
				resp.Favorited = true
			}
		}
	}

	return writeJSON(w, http.StatusOK, resp)
}

// listingPhotos returns the listing's ordered photo payload, cached per
// reference. Imports purge the cache since they rewrite photo sets.
func (s Server) listingPhotos(r *http.Request, listing immo.Listing) ([]PhotoResp, error) {
	if photos, ok := s.photoCache.Get(listing.Reference); ok {
		return photos, nil
	}

	stored, err := s.repo.Photos(r.Context(), listing.ID)
	if err != nil {
		return nil, err
	}

	photos := make([]PhotoResp, 0, len(stored))
	for _, p := range stored {
		photos = append(photos, PhotoResp{URL: p.URL, Position: p.Position})
	}
	s.photoCache.Add(listing.Reference, photos)

	return photos, nil
}
