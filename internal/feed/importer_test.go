package feed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/CharlT24/social-immo/internal/feed"
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

func writeFeed(t *testing.T, doc string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "export.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	return path
}

const feedOneListing = `<?xml version="1.0" encoding="UTF-8"?>
<export>
  <client reference="AGENCE-01">
    <annonce>
      <reference>REF-100</reference>
      <titre>Appartement T3</titre>
      <texte>Lumineux, proche gare.</texte>
      <bien>
        <code_postal>44000</code_postal>
        <ville>Nantes</ville>
        <surface>64,2</surface>
      </bien>
      <diagnostiques>
        <dpe_etiquette_conso>B</dpe_etiquette_conso>
        <dpe_valeur_conso>88</dpe_valeur_conso>
        <dpe_etiquette_ges>C</dpe_etiquette_ges>
      </diagnostiques>
      <prestation>
        <type>L</type>
        <prix>890,00</prix>
      </prestation>
      <photos>
        <photo ordre="1">https://cdn.example.com/one.jpg</photo>
        <photo ordre="2">https://cdn.example.com/two.jpg</photo>
      </photos>
    </annonce>
  </client>
</export>`

func TestRun_CreatesThenUpdates(t *testing.T) {
	var (
		ctx      = context.Background()
		repo     = newTestRepo(t)
		importer = feed.NewImporter(repo)
		path     = writeFeed(t, feedOneListing)
	)

	res, err := importer.Run(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, feed.Result{Created: 1}, res)

	// Same feed again: the listing reconciles in place
	res, err = importer.Run(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, feed.Result{Updated: 1}, res)

	listing, err := repo.ListingByReference(ctx, "REF-100")
	require.NoError(t, err)
	assert.Equal(t, "Appartement T3", listing.Title)
	assert.Equal(t, "Nantes", listing.City)
	assert.Equal(t, "rental", string(listing.TransactionType))
	assert.Equal(t, "890", listing.Price.String())
	require.True(t, listing.Surface.Valid)
	assert.Equal(t, "64.2", listing.Surface.Decimal.String())

	photos, err := repo.Photos(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "https://cdn.example.com/one.jpg", photos[0].URL)
}

func TestRun_PartialUpdateKeepsAbsentSections(t *testing.T) {
	var (
		ctx      = context.Background()
		repo     = newTestRepo(t)
		importer = feed.NewImporter(repo)
	)

	_, err := importer.Run(ctx, writeFeed(t, feedOneListing))
	require.NoError(t, err)

	// Re-import the same reference without the diagnostics section but
	// with new pricing
	const second = `<export><client reference="AGENCE-01"><annonce>
		<reference>REF-100</reference>
		<titre>Appartement T3</titre>
		<prestation><type>L</type><prix>920</prix></prestation>
	</annonce></client></export>`
	res, err := importer.Run(ctx, writeFeed(t, second))
	require.NoError(t, err)
	assert.Equal(t, feed.Result{Updated: 1}, res)

	listing, err := repo.ListingByReference(ctx, "REF-100")
	require.NoError(t, err)

	// Pricing moved, diagnostics stayed put
	assert.Equal(t, "920", listing.Price.String())
	assert.Equal(t, "B", listing.EnergyClass)
	require.NotNil(t, listing.EnergyValue)
	assert.Equal(t, 88, *listing.EnergyValue)
	// The bien section was absent too
	assert.Equal(t, "Nantes", listing.City)

	// No photos node in the second pass: the old set survives
	photos, err := repo.Photos(ctx, listing.ID)
	require.NoError(t, err)
	assert.Len(t, photos, 2)
}

func TestRun_PhotosReplacedWholesale(t *testing.T) {
	var (
		ctx      = context.Background()
		repo     = newTestRepo(t)
		importer = feed.NewImporter(repo)
	)

	_, err := importer.Run(ctx, writeFeed(t, feedOneListing))
	require.NoError(t, err)

	const second = `<export><client reference="AGENCE-01"><annonce>
		<reference>REF-100</reference>
		<titre>Appartement T3</titre>
		<photos>
			<photo ordre="1">https://cdn.example.com/three.jpg</photo>
		</photos>
	</annonce></client></export>`
	_, err = importer.Run(ctx, writeFeed(t, second))
	require.NoError(t, err)

	listing, err := repo.ListingByReference(ctx, "REF-100")
	require.NoError(t, err)

	photos, err := repo.Photos(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "https://cdn.example.com/three.jpg", photos[0].URL)
}

func TestRun_EmptyPhotosNodeWipes(t *testing.T) {
	var (
		ctx      = context.Background()
		repo     = newTestRepo(t)
		importer = feed.NewImporter(repo)
	)

	_, err := importer.Run(ctx, writeFeed(t, feedOneListing))
	require.NoError(t, err)

	const second = `<export><client reference="AGENCE-01"><annonce>
		<reference>REF-100</reference>
		<titre>Appartement T3</titre>
		<photos></photos>
	</annonce></client></export>`
	_, err = importer.Run(ctx, writeFeed(t, second))
	require.NoError(t, err)

	listing, err := repo.ListingByReference(ctx, "REF-100")
	require.NoError(t, err)

	photos, err := repo.Photos(ctx, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestRun_BadEntryDoesNotAbortBatch(t *testing.T) {
	var (
		ctx      = context.Background()
		repo     = newTestRepo(t)
		importer = feed.NewImporter(repo)
	)

	// The second entry has an unparseable photo ordre, the third has no
	// reference at all; the first and fourth are fine.
	const doc = `<export><client reference="AGENCE-01">
		<annonce><reference>REF-A</reference><titre>A</titre></annonce>
		<annonce><reference>REF-B</reference>
			<photos><photo ordre="deux">https://cdn.example.com/x.jpg</photo></photos>
		</annonce>
		<annonce><titre>no reference</titre></annonce>
		<annonce><reference>REF-D</reference><titre>D</titre></annonce>
	</client></export>`

	res, err := importer.Run(ctx, writeFeed(t, doc))
	require.NoError(t, err)
	assert.Equal(t, feed.Result{Created: 2, Errors: 2}, res)

	_, err = repo.ListingByReference(ctx, "REF-A")
	require.NoError(t, err)
	_, err = repo.ListingByReference(ctx, "REF-D")
	require.NoError(t, err)
	_, err = repo.ListingByReference(ctx, "REF-B")
	require.Error(t, err)
}

func TestRun_MissingFile(t *testing.T) {
	importer := feed.NewImporter(newTestRepo(t))

	_, err := importer.Run(context.Background(), filepath.Join(t.TempDir(), "nope.xml"))
	require.Error(t, err)
}

func TestRun_MalformedDocument(t *testing.T) {
	importer := feed.NewImporter(newTestRepo(t))

	_, err := importer.Run(context.Background(), writeFeed(t, "<export><client></export>"))
	require.Error(t, err)
}
