package treasury

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// --- TreasuryRates fetcher ---

type treasuryRatesFetcher struct {
	provider.BaseFetcher
	baseURL string
	now     func() time.Time
}

func newTreasuryRatesFetcher(baseURL string) *treasuryRatesFetcher {
	return &treasuryRatesFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelTreasuryRates,
			"10-year par yield from the Treasury daily yield curve page",
			nil,
			nil,
			provider.WithCacheTTL(time.Hour),
			provider.WithRateLimit(1, 1),
		),
		baseURL: baseURL,
		now:     time.Now,
	}
}

var errNoYield = errors.New("no 10-year yield on page")

func (f *treasuryRatesFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		url := fmt.Sprintf("%s%s?type=daily_treasury_yield_curve&field_tdr_date_value_month=%s",
			f.baseURL, yieldCurvePath, f.now().Format("200601"))
		doc, err := fetchPage(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("treasury yield curve: %w", err)
		}
		if q, ok := parseYieldTable(doc); ok {
			return q, nil
		}
		if q, ok := parseYieldText(doc.Text()); ok {
			return q, nil
		}
		return nil, fmt.Errorf("treasury yield curve: %w", errNoYield)
	})
}

// parseYieldTable reads the "10 Yr" column of the last row that has one.
// Rows are dated oldest first.
func parseYieldTable(doc *goquery.Document) (models.YieldQuote, bool) {
	var (
		quote models.YieldQuote
		found bool
	)
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		col, dateCol := -1, -1
		table.Find("thead th").Each(func(i int, th *goquery.Selection) {
			switch normalizeHeader(th.Text()) {
			case "10 yr", "10 year":
				col = i
			case "date":
				dateCol = i
			}
		})
		if col < 0 {
			return true
		}
		table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if col >= cells.Length() {
				return
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cells.Eq(col).Text()), 64)
			if err != nil {
				return
			}
			quote = models.YieldQuote{Source: "US Treasury", Value: v / 100}
			if dateCol >= 0 && dateCol < cells.Length() {
				quote.AsOf, _ = time.Parse("01/02/2006", strings.TrimSpace(cells.Eq(dateCol).Text()))
			}
			found = true
		})
		return !found
	})
	return quote, found
}

var tenYearText = regexp.MustCompile(`10 Year\s*(\d+\.\d+)`)

// parseYieldText is the fallback for pages without a recognizable table.
func parseYieldText(text string) (models.YieldQuote, bool) {
	m := tenYearText.FindStringSubmatch(text)
	if m == nil {
		return models.YieldQuote{}, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.YieldQuote{}, false
	}
	return models.YieldQuote{Source: "US Treasury", Value: v / 100}, true
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
