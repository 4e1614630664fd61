package cache

import (
	"net/url"
	"strings"
)

// KeyPrefix namespaces every label key in Redis.
const KeyPrefix = "swapi:label:"

// LabelKey identifies the cached label of one reference URL.
type LabelKey struct {
	// URL is the reference URL as it appears in a record.
	URL string
}

// String generates a deterministic cache key string. Scheme and host case
// and query parameter order do not change the key; every other part of the
// URL does, so two distinct references never share a key.
//
// Example:
//
//	swapi:label:https://swapi.dev/api/planets/1/
func (k LabelKey) String() string {
	u, err := url.Parse(k.URL)
	if err != nil || u.Host == "" {
		return KeyPrefix + k.URL
	}

	key := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.EscapedPath()

	// Encode sorts by parameter name and keeps repeated values in order.
	if query := u.Query(); len(query) > 0 {
		key += "?" + query.Encode()
	}

	return KeyPrefix + key
}
