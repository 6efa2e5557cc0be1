package redis

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const fetchKeyPrefix = "wpfetch"

// KeyGenerator builds Redis keys for cached WordPress fetches. The host stays
// readable in the key for operational inspection; the full parameter set is
// collapsed into an xxhash so keys stay bounded.
type KeyGenerator struct{}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// FetchCacheKey returns the key for one site+resource fetch shape. The page
// window (start page, page size, page cap) is part of the identity.
// Format: wpfetch:{host}:{resource}:{xxhash64 hex}
func (kg *KeyGenerator) FetchCacheKey(host, resource string, page, perPage, maxPages int) string {
	sum := xxhash.Sum64String(fmt.Sprintf("%s|%s|%d|%d|%d", normalizeHost(host), resource, page, perPage, maxPages))
	return fmt.Sprintf("%s:%s:%s:%016x", fetchKeyPrefix, normalizeHost(host), resource, sum)
}

// SitePattern returns a glob matching every cached fetch for a host,
// usable with SCAN or DEL for invalidation.
func (kg *KeyGenerator) SitePattern(host string) string {
	return fmt.Sprintf("%s:%s:*", fetchKeyPrefix, normalizeHost(host))
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
