package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	immoerrs "github.com/CharlT24/social-immo/internal/errors"
	"github.com/CharlT24/social-immo/internal/feed"
)

type (
	DashboardResp struct {
		TotalListings  int             `json:"total_listings"`
		AveragePrice   decimal.Decimal `json:"average_price"`
		TotalValue     decimal.Decimal `json:"total_value"`
		RecentComments int             `json:"recent_comments"`
		ImportedToday  int             `json:"imported_today"`

		LatestListings []ListingResp `json:"latest_listings"`
		LatestComments []CommentResp `json:"latest_comments"`
	}

	ImportResp struct {
		Result feed.Result `json:"result"`
	}
)

func (s Server) getDashboard(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	if _, err := s.staffUser(r); err != nil {
		return err
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return err
	}

	listings, err := s.repo.LatestListings(ctx, 10)
	if err != nil {
		return err
	}

	comments, err := s.repo.LatestComments(ctx, 5)
	if err != nil {
		return err
	}

	resp := DashboardResp{
		TotalListings:  stats.TotalListings,
		AveragePrice:   stats.AveragePrice,
		TotalValue:     stats.TotalValue,
		RecentComments: stats.RecentComments,
		ImportedToday:  stats.ImportedToday,
	}
	for _, l := range listings {
		photos, err := s.listingPhotos(r, l)
		if err != nil {
			return err
		}
		resp.LatestListings = append(resp.LatestListings, apiListing(l, photos))
	}
	for _, c := range comments {
		resp.LatestComments = append(resp.LatestComments, apiComment(c))
	}

	return writeJSON(w, http.StatusOK, resp)
}

// postRunImport triggers a batch import of the configured feed and reports
// its counts. A document-level failure means nothing was touched.
func (s Server) postRunImport(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	if _, err := s.staffUser(r); err != nil {
		return err
	}

	result, err := s.importer.Run(ctx, s.feedSource)
	if err != nil {
		return immoerrs.E(err, http.StatusBadGateway)
	}

	// Imports rewrite photo sets, so cached payloads are now suspect.
	s.photoCache.Purge()

	return writeJSON(w, http.StatusOK, ImportResp{Result: result})
}
