package identity

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
)

const hashLength = 12

var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/(\d+)/?$`),
	regexp.MustCompile(`id=(\d+)`),
	regexp.MustCompile(`product[_-](\d+)`),
	regexp.MustCompile(`goods[_-](\d+)`),
}

// Generate derives a stable product id from its URL and name. A numeric id
// embedded in the URL wins; otherwise the id is a truncated digest of
// name + "_" + url.
func Generate(productURL, name string) string {
	if id, ok := FromURL(productURL); ok {
		return id
	}
	sum := md5.Sum([]byte(name + "_" + productURL))
	return hex.EncodeToString(sum[:])[:hashLength]
}

// FromURL returns the first numeric id captured by the known URL shapes.
func FromURL(productURL string) (string, bool) {
	for _, pattern := range urlPatterns {
		if m := pattern.FindStringSubmatch(productURL); len(m) > 1 && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}
