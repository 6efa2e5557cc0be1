package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/serplens/engine/internal/analyzer/metrics"
	"github.com/serplens/engine/internal/common/configtypes"
	"github.com/serplens/engine/internal/common/htmlprocessor"
	"github.com/serplens/engine/internal/common/urlutil"
	"github.com/serplens/engine/pkg/pattern"
	"github.com/serplens/engine/pkg/types"
)

// Request validation errors. Handlers map these to 400; anything else from
// Fetch is an upstream failure and maps to 502.
var (
	ErrInvalidSite     = errors.New("invalid site URL")
	ErrInvalidResource = errors.New("invalid resource")
	ErrHostNotAllowed  = errors.New("site host not allowed")
)

const maxPerPage = 100 // WordPress REST API hard limit

// Fetcher retrieves published content from WordPress sites over the REST API,
// paginating through wp-json/wp/v2/{resource} and reducing rendered HTML
// fields to plain text suitable for analysis.
type Fetcher struct {
	config  configtypes.WordPressConfig
	client  *fasthttp.Client
	allowed pattern.List
	cache   *FetchCache
	metrics *metrics.MetricsCollector
	logger  *zap.Logger
}

// NewFetcher creates a Fetcher. cache may be nil when caching is disabled.
func NewFetcher(cfg configtypes.WordPressConfig, cache *FetchCache, collector *metrics.MetricsCollector, logger *zap.Logger) (*Fetcher, error) {
	allowed, err := pattern.CompileList(cfg.AllowedHosts)
	if err != nil {
		return nil, fmt.Errorf("invalid wordpress.allowed_hosts: %w", err)
	}

	timeout := time.Duration(cfg.Timeout)
	client := &fasthttp.Client{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Enable SSRF protection by default (blocks DNS rebinding to private IPs)
	if cfg.SSRFProtection == nil || *cfg.SSRFProtection {
		client.Dial = ssrfSafeDial
	}

	return &Fetcher{
		config:  cfg,
		client:  client,
		allowed: allowed,
		cache:   cache,
		metrics: collector,
		logger:  logger,
	}, nil
}

// restRendered is the {"rendered": "..."} wrapper WordPress puts around
// HTML-bearing fields.
type restRendered struct {
	Rendered string `json:"rendered"`
}

// restPost is the subset of a wp/v2 post or page object we consume.
type restPost struct {
	ID      int          `json:"id"`
	Link    string       `json:"link"`
	Title   restRendered `json:"title"`
	Excerpt restRendered `json:"excerpt"`
}

// Fetch retrieves up to maxPages pages of a resource from a site, starting at
// the requested page. Results come from the cache when a previous identical
// fetch is still fresh. A failure on any page fails the whole fetch; partial
// results are never returned.
func (f *Fetcher) Fetch(ctx context.Context, request *types.WordPressAPIRequest) (*types.WordPressAPIData, error) {
	resource, err := normalizeResource(request.Resource)
	if err != nil {
		return nil, err
	}

	base, host, err := normalizeSiteURL(request.SiteURL)
	if err != nil {
		return nil, err
	}

	if len(f.allowed) > 0 && !f.allowed.MatchAny(host) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}

	// Literal private IPs are rejected before any connection attempt; DNS
	// names are validated again at dial time after resolution.
	if f.config.SSRFProtection == nil || *f.config.SSRFProtection {
		if err := urlutil.ValidateHostNotPrivateIP(host); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHostNotAllowed, err)
		}
	}

	page := request.Page
	if page < 1 {
		page = 1
	}
	perPage := request.PerPage
	if perPage < 1 {
		perPage = f.config.PerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	maxPages := f.config.MaxPages
	if request.MaxPages > 0 && request.MaxPages < maxPages {
		maxPages = request.MaxPages
	}

	var cacheKey string
	if f.cache != nil {
		cacheKey = f.cache.Key(host, resource, page, perPage, maxPages)
		if cached, found := f.cache.Get(ctx, cacheKey); found {
			f.metrics.RecordWordPressCacheHit(host)
			cached.Cached = true
			return cached, nil
		}
		f.metrics.RecordWordPressCacheMiss(host)
	}

	start := time.Now()
	result, err := f.fetchAll(base, host, resource, page, perPage, maxPages)
	if err != nil {
		f.metrics.RecordWordPressFetchError(host, time.Since(start))
		return nil, err
	}
	f.metrics.RecordWordPressFetchSuccess(host, time.Since(start))

	if f.cache != nil {
		f.cache.Set(ctx, cacheKey, result)
	}

	return result, nil
}

// InvalidateSite drops every cached fetch for the given site and returns the
// number of entries removed. Zero when caching is disabled.
func (f *Fetcher) InvalidateSite(ctx context.Context, siteURL string) (int, error) {
	_, host, err := normalizeSiteURL(siteURL)
	if err != nil {
		return 0, err
	}
	if f.cache == nil {
		return 0, nil
	}

	removed, err := f.cache.InvalidateSite(ctx, host)
	if err != nil {
		return 0, fmt.Errorf("cache invalidation for %s failed: %w", host, err)
	}

	f.logger.Info("Invalidated cached fetches",
		zap.String("host", host),
		zap.Int("removed", removed))
	return removed, nil
}

// fetchAll walks pages from the starting page until the site reports no more
// pages or the page cap is reached. Pages are fetched in order so items keep
// their site-side ordering.
func (f *Fetcher) fetchAll(base, host, resource string, page, perPage, maxPages int) (*types.WordPressAPIData, error) {
	items := make([]types.WordPressItem, 0, perPage)
	totalPages := 0
	total := 0
	fetched := 0
	lastPage := page + maxPages - 1

	for p := page; p <= lastPage; p++ {
		pageURL := fmt.Sprintf("%s/wp-json/wp/v2/%s?page=%d&per_page=%d", base, resource, p, perPage)

		pageItems, reportedPages, reportedTotal, err := f.fetchPage(pageURL)
		if err != nil {
			f.logger.Warn("WordPress page fetch failed",
				zap.String("host", host),
				zap.String("url", pageURL),
				zap.Int("pages_fetched", fetched),
				zap.Error(err))
			return nil, err
		}

		items = append(items, pageItems...)
		fetched++
		if reportedPages > 0 {
			totalPages = reportedPages
		}
		if reportedTotal > 0 {
			total = reportedTotal
		}

		// Missing X-WP-TotalPages means we cannot trust pagination; stop
		// after the page we have.
		if totalPages == 0 || p >= totalPages {
			break
		}
	}

	f.logger.Info("WordPress fetch completed",
		zap.String("host", host),
		zap.String("resource", resource),
		zap.Int("items", len(items)),
		zap.Int("pages_fetched", fetched),
		zap.Int("total_pages", totalPages))

	return &types.WordPressAPIData{
		Site:         base,
		Resource:     resource,
		Total:        total,
		TotalPages:   totalPages,
		PagesFetched: fetched,
		Items:        items,
	}, nil
}

// fetchPage retrieves one REST page and returns its items plus the totals the
// site reports in X-WP-TotalPages and X-WP-Total.
func (f *Fetcher) fetchPage(pageURL string) ([]types.WordPressItem, int, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(pageURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	var err error
	if f.config.MaxRedirects > 0 {
		err = f.client.DoRedirects(req, resp, f.config.MaxRedirects)
	} else {
		err = f.client.Do(req, resp)
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("request to %s failed: %w", pageURL, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, 0, 0, fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), pageURL)
	}

	totalPages, _ := strconv.Atoi(string(resp.Header.Peek("X-WP-TotalPages")))
	total, _ := strconv.Atoi(string(resp.Header.Peek("X-WP-Total")))

	var posts []restPost
	if err := json.Unmarshal(resp.Body(), &posts); err != nil {
		return nil, 0, 0, fmt.Errorf("invalid JSON from %s: %w", pageURL, err)
	}

	items := make([]types.WordPressItem, 0, len(posts))
	for _, post := range posts {
		items = append(items, types.WordPressItem{
			ID:          post.ID,
			Link:        post.Link,
			Title:       htmlprocessor.ExtractText(post.Title.Rendered),
			Description: htmlprocessor.ExtractText(post.Excerpt.Rendered),
		})
	}

	return items, totalPages, total, nil
}

func normalizeResource(resource string) (string, error) {
	switch resource {
	case "":
		return types.WPResourcePosts, nil
	case types.WPResourcePosts, types.WPResourcePages:
		return resource, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidResource, resource)
	}
}

// normalizeSiteURL turns user input into a canonical site base URL. A bare
// host gets an https scheme; query and fragment are dropped; a trailing slash
// is trimmed so path joining stays predictable. Subdirectory installs keep
// their path.
func normalizeSiteURL(raw string) (base, host string, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", fmt.Errorf("%w: empty site_url", ErrInvalidSite)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, perr := url.Parse(trimmed)
	if perr != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSite, perr)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSite, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("%w: missing host", ErrInvalidSite)
	}

	u.Fragment = ""
	u.RawQuery = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), u.Hostname(), nil
}

// ssrfSafeDial resolves the hostname, validates all IPs are public, then connects.
// Prevents DNS rebinding attacks where an attacker's domain resolves to a private IP.
func ssrfSafeDial(addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("DNS resolution failed for %q: %w", host, err)
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("no IP addresses found for %q", host)
	}

	for _, ip := range ips {
		if err := urlutil.ValidateResolvedIP(ip); err != nil {
			return nil, fmt.Errorf("SSRF protection for %q: %w", host, err)
		}
	}

	// All IPs validated as public; connect to the first one
	return fasthttp.DialTimeout(net.JoinHostPort(ips[0].String(), port), 10*time.Second)
}
