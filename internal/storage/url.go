package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultPublicBaseURL is the production download host
const DefaultPublicBaseURL = "https://firebasestorage.googleapis.com"

// URLBuilder produces stable public URLs for tokened objects
type URLBuilder struct {
	BaseURL string
}

// NewURLBuilder creates a builder; an empty base selects DefaultPublicBaseURL.
// Point it at a local emulator (e.g. http://localhost:9199) for development.
func NewURLBuilder(baseURL string) URLBuilder {
	if baseURL == "" {
		baseURL = DefaultPublicBaseURL
	}
	return URLBuilder{BaseURL: strings.TrimRight(baseURL, "/")}
}

// TokenURL returns {base}/v0/b/{bucket}/o/{escaped path}?alt=media&token={token}
func (b URLBuilder) TokenURL(ref ObjectRef, token string) string {
	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media&token=%s",
		b.BaseURL, ref.Bucket, url.PathEscape(ref.Path), url.QueryEscape(token))
}
