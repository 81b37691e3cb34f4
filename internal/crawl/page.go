package crawl

import (
	"fmt"
	"strconv"
	"strings"

	crerr "github.com/cockroachdb/errors"
)

// Category is the page kind encoded in a federation URL.
type Category string

const (
	CategorySeason   Category = "saison"
	CategoryDivision Category = "liga"
	CategoryReport   Category = "spielbericht"
)

var (
	// ErrInvalidSeason marks a season outside the supported range. The
	// federation never published a 2021 season page, so that year is a
	// hard gap in the page-id sequence.
	ErrInvalidSeason = crerr.New("invalid season")
	// ErrValidation marks a malformed URL or page id.
	ErrValidation = crerr.New("validation failed")
)

// PageIDForSeason maps a season year onto the federation's season page
// id. Seasons 2012 through 2020 map directly; 2021 was never played;
// later seasons are shifted down one to close the gap.
func PageIDForSeason(year, currentYear int) (int, error) {
	switch {
	case year >= 2012 && year <= 2020:
		return year - 2000, nil
	case year >= 2022 && year <= currentYear:
		return year - 2001, nil
	default:
		return 0, fmt.Errorf("%w: season %d", ErrInvalidSeason, year)
	}
}

// SeasonForPageID is the inverse of PageIDForSeason.
func SeasonForPageID(pageID int) int {
	if pageID >= 12 && pageID <= 20 {
		return 2000 + pageID
	}
	return 2001 + pageID
}

// PageURL builds the canonical frame-free URL of a page.
func PageURL(baseURL string, category Category, pageID int) string {
	return fmt.Sprintf("%s/%s/anzeigen/%d/no_frame", baseURL, category, pageID)
}

// ParsePageURL reads the category and page id back out of a federation
// URL of the form <base>/<category>/anzeigen/<id>/<suffix>.
func ParsePageURL(rawURL string) (Category, int, error) {
	parts := strings.Split(rawURL, "/")
	if len(parts) < 6 {
		return "", 0, fmt.Errorf("%w: malformed page url %q", ErrValidation, rawURL)
	}
	category := Category(parts[4])
	switch category {
	case CategorySeason, CategoryDivision, CategoryReport:
	default:
		return "", 0, fmt.Errorf("%w: unknown page category %q in %q", ErrValidation, parts[4], rawURL)
	}
	pageID, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return "", 0, fmt.Errorf("%w: page id in %q", ErrValidation, rawURL)
	}
	if pageID < 1 {
		return "", 0, fmt.Errorf("%w: page id %d in %q", ErrValidation, pageID, rawURL)
	}
	return category, pageID, nil
}
