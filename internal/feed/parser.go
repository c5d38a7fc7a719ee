// Package feed parses the Ubiflow/LeBonCoin XML export and reconciles its
// listing entries into storage.
package feed

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/CharlT24/social-immo/internal/immo"
)

type (
	// Client is one <client> group from the feed. Its reference attribute
	// only labels import reports, it is not stored on listings.
	Client struct {
		Reference string
		Listings  []*etree.Element
	}

	// Entry is the flat extracted field set for one listing entry, plus
	// its photo descriptors. ReplacePhotos is set when the entry carried
	// a <photos> node at all: the feed owns the photo set, so a present
	// node replaces it wholesale, even when empty.
	Entry struct {
		Upsert        immo.ListingUpsert
		Photos        []immo.Photo
		ReplacePhotos bool
	}
)

// Parse reads the whole feed document and returns its client groups. A
// document that isn't well-formed XML fails here, before any entry is
// looked at.
func Parse(r io.Reader) ([]Client, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("error parsing feed xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("feed document has no root element")
	}

	var clients []Client
	for _, el := range root.FindElements("//client") {
		clients = append(clients, Client{
			Reference: el.SelectAttrValue("reference", ""),
			Listings:  el.FindElements(".//annonce"),
		})
	}

	return clients, nil
}

// ExtractEntry pulls the typed field set out of one <annonce> element.
//
// Extraction is deliberately lenient: a tag is looked up anywhere below the
// element (feed variants nest at different depths), unparseable numbers fall
// back to unset, and an unknown transaction code is coerced to a sale. The
// one hard requirement is the reference, without which the entry can't be
// reconciled.
func ExtractEntry(el *etree.Element, clientRef string) (Entry, error) {
	reference := text(el, "reference", "")
	if reference == "" {
		return Entry{}, errors.New("entry has no reference")
	}

	entry := Entry{
		Upsert: immo.ListingUpsert{
			Reference:       reference,
			ClientReference: clientRef,
			Title:           sanitize(text(el, "titre", "")),
			Body:            sanitize(text(el, "texte", "")),
			TypeCode:        text(el, "code_type", ""),
			ContactName:     text(el, "contact_a_afficher", ""),
			ContactEmail:    text(el, "email_a_afficher", ""),
			ContactPhone:    text(el, "telephone_a_afficher", ""),
		},
	}

	if bien := el.FindElement(".//bien"); bien != nil {
		entry.Upsert.Property = &immo.PropertyFields{
			PostalCode:       text(bien, "code_postal", ""),
			City:             text(bien, "ville", ""),
			RoomCount:        intField(bien, "nb_pieces_logement"),
			BedroomCount:     intField(bien, "nombre_de_chambres"),
			Surface:          decimalField(bien, "surface"),
			ConstructionYear: intField(bien, "annee_construction"),
		}
	}

	if diag := el.FindElement(".//diagnostiques"); diag != nil {
		entry.Upsert.Diagnostics = &immo.DiagnosticFields{
			EnergyClass:   text(diag, "dpe_etiquette_conso", ""),
			EnergyValue:   intField(diag, "dpe_valeur_conso"),
			EmissionClass: text(diag, "dpe_etiquette_ges", ""),
		}
	}

	if prestation := el.FindElement(".//prestation"); prestation != nil {
		price := decimal.Zero
		if d := decimalField(prestation, "prix"); d.Valid {
			price = d.Decimal
		}
		entry.Upsert.Pricing = &immo.PricingFields{
			TransactionType: transactionType(text(prestation, "type", "")),
			Price:           price,
			FeePayer:        text(prestation, "honoraires_payeurs", ""),
		}
	}

	if photos := el.FindElement(".//photos"); photos != nil {
		entry.ReplacePhotos = true
		for _, p := range photos.SelectElements("photo") {
			url := strings.TrimSpace(p.Text())
			if url == "" {
				continue
			}

			position := 1
			if attr := p.SelectAttr("ordre"); attr != nil {
				n, err := strconv.Atoi(attr.Value)
				if err != nil {
					// Unlike the field coercions above there is no
					// fallback here: a bad ordre fails the entry.
					return Entry{}, fmt.Errorf("bad photo ordre %q: %w", attr.Value, err)
				}
				position = n
			}

			entry.Photos = append(entry.Photos, immo.Photo{
				URL:      url,
				Position: position,
			})
		}
	}

	return entry, nil
}

// The feed uses the Ubiflow codes: V for a sale, L for a rental. Anything
// else is forced to a sale rather than rejecting the entry.
func transactionType(code string) immo.TransactionType {
	if code == "L" {
		return immo.TransactionRental
	}

	return immo.TransactionSale
}

// text finds the first descendant with the given tag and returns its
// trimmed text, or the fallback when the tag is absent or empty.
func text(el *etree.Element, tag, fallback string) string {
	found := el.FindElement(".//" + tag)
	if found == nil {
		return fallback
	}
	s := strings.TrimSpace(found.Text())
	if s == "" {
		return fallback
	}

	return s
}

// intField parses the tag's text as an integer, unset on absence or a
// parse failure.
func intField(el *etree.Element, tag string) *int {
	s := text(el, tag, "")
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}

	return &n
}

// decimalField parses the tag's text as a decimal, tolerating the feed's
// European formatting ("125,50", "1 250"). Unset on absence or a parse
// failure.
func decimalField(el *etree.Element, tag string) decimal.NullDecimal {
	s := text(el, tag, "")
	if s == "" {
		return decimal.NullDecimal{}
	}
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, " ", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}

	return decimal.NullDecimal{Decimal: d, Valid: true}
}

var stripPolicy = bluemonday.StrictPolicy()

// Removes all html tags from the string, usually a description.
//
// Also limits the length of the string so there's not a massive chunk of text being output.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = stripPolicy.Sanitize(s)
	if len(s) > 4096 {
		s = s[:4096]
	}

	return s
}
