package feed

import (
	"context"
	"log/slog"

	"github.com/beevik/etree"

	"github.com/CharlT24/social-immo/internal/immo"
)

type (
	// Importer runs one batch import: parse the feed, reconcile every
	// entry against storage, count the outcomes.
	Importer struct {
		repo immo.ListingRepo
	}

	// Result are the counts reported at the end of a batch.
	Result struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
		Errors  int `json:"errors"`
	}
)

func NewImporter(repo immo.ListingRepo) Importer {
	return Importer{repo: repo}
}

// Run imports the feed at src, a file path or an http(s) URL.
//
// A missing source or malformed document fails the whole batch with zero
// records touched. Past that point failures are scoped to their entry:
// they're logged with the best reference available, counted, and the batch
// moves on. Each entry's upsert and photo replacement is one transaction,
// but entries are independent of each other and no retries happen here.
func (im Importer) Run(ctx context.Context, src string) (Result, error) {
	rc, err := Open(ctx, src)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	clients, err := Parse(rc)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, client := range clients {
		for _, el := range client.Listings {
			created, err := im.reconcile(ctx, el, client.Reference)
			if err != nil {
				res.Errors++
				slog.Error("error importing listing",
					"reference", text(el, "reference", "unknown"),
					"client", client.Reference,
					"error", err,
				)
				continue
			}

			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
	}

	slog.Info("import finished", "created", res.Created, "updated", res.Updated, "errors", res.Errors)

	return res, nil
}

func (im Importer) reconcile(ctx context.Context, el *etree.Element, clientRef string) (bool, error) {
	entry, err := ExtractEntry(el, clientRef)
	if err != nil {
		return false, err
	}

	listing, created, err := im.repo.Reconcile(ctx, entry.Upsert, entry.Photos, entry.ReplacePhotos)
	if err != nil {
		return false, err
	}

	action := "updated"
	if created {
		action = "created"
	}
	slog.Info("reconciled listing", "action", action, "reference", listing.Reference, "title", listing.Title)

	return created, nil
}
