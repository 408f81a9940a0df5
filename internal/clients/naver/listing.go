package naver

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/korean"

	"github.com/bobmcallan/ticker/internal/clients/ratelimit"
	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

const (
	DefaultListingBaseURL  = "https://finance.naver.com"
	DefaultListingInterval = 500 * time.Millisecond
)

var hrefCodePattern = regexp.MustCompile(`code=(\d{6})`)

// ListingClient reads the paginated market-capitalisation listing (HTML, EUC-KR).
type ListingClient struct {
	baseURL string
	http    *ratelimit.Client
	logger  *common.Logger
}

// NewListingClient creates a listing client. interval spaces page requests.
func NewListingClient(baseURL string, interval, timeout time.Duration, logger *common.Logger) *ListingClient {
	if baseURL == "" {
		baseURL = DefaultListingBaseURL
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &ListingClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    ratelimit.NewClient("naver-listing", interval, ratelimit.WithTimeout(timeout), ratelimit.WithLogger(logger)),
		logger:  logger,
	}
}

// FetchPage returns the instrument rows of one listing page. segment is the
// listing id ("0" KOSPI, "1" KOSDAQ). An empty result marks the end of the listing.
func (c *ListingClient) FetchPage(ctx context.Context, segment string, page int) ([]models.CatalogEntry, error) {
	params := url.Values{}
	params.Set("sosok", segment)
	params.Set("page", strconv.Itoa(page))
	reqURL := fmt.Sprintf("%s/sise/sise_market_sum.naver?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := models.KindUpstream
		if resp.StatusCode == http.StatusNotFound {
			kind = models.KindNotFound
		}
		return nil, &models.QuoteError{Kind: kind, Status: resp.StatusCode, Op: fmt.Sprintf("listing %s page %d", segment, page)}
	}

	entries, err := parseListing(decodeBody(resp), segment)
	if err != nil {
		return nil, models.NewError(models.KindMalformed, fmt.Sprintf("listing %s page %d", segment, page), err)
	}
	return entries, nil
}

// decodeBody wraps the body in an EUC-KR decoder unless the response declares UTF-8.
func decodeBody(resp *http.Response) io.Reader {
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if strings.EqualFold(params["charset"], "utf-8") {
			return resp.Body
		}
	}
	return korean.EUCKR.NewDecoder().Reader(resp.Body)
}

// parseListing extracts (code, name) from the listing table rows. Separator and
// blank rows have no link and are skipped.
func parseListing(r io.Reader, segment string) ([]models.CatalogEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var entries []models.CatalogEntry
	doc.Find("table.type_2 tbody tr").Each(func(_ int, tr *goquery.Selection) {
		link := tr.Find("td:nth-child(2) a").First()
		name := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		if name == "" || !ok {
			return
		}
		m := hrefCodePattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		entries = append(entries, models.CatalogEntry{Code: m[1], Name: name, Segment: segment})
	})
	return entries, nil
}

// Ensure ListingClient implements ListingSource
var _ interfaces.ListingSource = (*ListingClient)(nil)
