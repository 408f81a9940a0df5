package catalogfs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bobmcallan/ticker/internal/models"
)

const (
	MaxSearchResults = 10
	MaxQueryLength   = 50
)

var (
	domesticQuery = regexp.MustCompile(`^[가-힣a-zA-Z0-9\s]+$`)
	usQuery       = regexp.MustCompile(`^[A-Z0-9.\-\s]+$`)
)

// matcher holds the market-specific query rules.
type matcher struct {
	sanitize func(query string) (string, bool)
	match    func(e models.CatalogEntry, q string) bool
}

func matcherFor(market models.Market) (matcher, error) {
	switch market {
	case models.MarketKorea:
		return matcher{
			sanitize: func(query string) (string, bool) {
				return clean(query, domesticQuery)
			},
			match: func(e models.CatalogEntry, q string) bool {
				return strings.Contains(e.Code, q) || strings.Contains(e.Name, q)
			},
		}, nil
	case models.MarketUS:
		return matcher{
			sanitize: func(query string) (string, bool) {
				return clean(strings.ToUpper(query), usQuery)
			},
			match: func(e models.CatalogEntry, q string) bool {
				return strings.Contains(strings.ToUpper(e.Code), q) || strings.Contains(strings.ToUpper(e.Name), q)
			},
		}, nil
	}
	return matcher{}, models.NewError(models.KindUnknownMarket, "catalog", fmt.Errorf("market %q", market))
}

// clean trims, caps the query at MaxQueryLength runes and checks the
// character class. Whitespace-only input is rejected.
func clean(query string, class *regexp.Regexp) (string, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", false
	}
	if r := []rune(q); len(r) > MaxQueryLength {
		q = strings.TrimSpace(string(r[:MaxQueryLength]))
	}
	if !class.MatchString(q) {
		return "", false
	}
	return q, true
}
