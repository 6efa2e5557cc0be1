package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxLength caps request IDs at UUID length so log fields stay uniform.
	MaxLength = 36
	// prefixLength is the length of the random prefix added to client IDs.
	prefixLength = 5
	// maxClientIDLength leaves room for the prefix and joining hyphen.
	maxClientIDLength = MaxLength - prefixLength - 1
)

var (
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// Generate creates a request ID. A client-supplied ID is sanitized and
// prefixed with random characters so collisions between clients cannot
// produce duplicate IDs. Without a usable client ID it returns a UUID.
func Generate(clientID string) string {
	sanitized := sanitize(clientID)
	if sanitized == "" {
		return uuid.New().String()
	}

	if len(sanitized) > maxClientIDLength {
		sanitized = sanitized[:maxClientIDLength]
	}

	return randomPrefix() + "-" + sanitized
}

// sanitize keeps [a-zA-Z0-9-], converting spaces to hyphens and collapsing
// hyphen runs. Returns "" when nothing usable remains.
func sanitize(raw string) string {
	s := strings.ReplaceAll(raw, " ", "-")
	s = invalidChars.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func randomPrefix() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand failure leaves uuid as the entropy source
		return uuid.New().String()[:prefixLength]
	}
	return hex.EncodeToString(bytes)[:prefixLength]
}
