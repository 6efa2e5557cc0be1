package types

// WordPress REST resource constants
const (
	WPResourcePosts = "posts"
	WPResourcePages = "pages"
)

// WordPressAPIRequest is the request body for POST /wordpress/posts.
// Resource defaults to "posts"; Page/PerPage/MaxPages default from config.
type WordPressAPIRequest struct {
	SiteURL  string `json:"site_url"`
	Resource string `json:"resource,omitempty"`
	Page     int    `json:"page,omitempty"`
	PerPage  int    `json:"per_page,omitempty"`
	MaxPages int    `json:"max_pages,omitempty"`
}

// WordPressItem is one fetched content entry with its rendered fields reduced
// to plain text.
type WordPressItem struct {
	ID          int    `json:"id"`
	Link        string `json:"link"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// WordPressAPIData is the data payload for the /wordpress/posts response
type WordPressAPIData struct {
	Site         string          `json:"site"`
	Resource     string          `json:"resource"`
	Total        int             `json:"total"`
	TotalPages   int             `json:"total_pages"`
	PagesFetched int             `json:"pages_fetched"`
	Cached       bool            `json:"cached"`
	Items        []WordPressItem `json:"items"`
}

// WordPressInvalidateRequest is the request body for
// POST /wordpress/cache/invalidate.
type WordPressInvalidateRequest struct {
	SiteURL string `json:"site_url"`
}

// WordPressInvalidateData is the data payload for the cache invalidation
// response.
type WordPressInvalidateData struct {
	SiteURL     string `json:"site_url"`
	Invalidated int    `json:"invalidated"`
}
