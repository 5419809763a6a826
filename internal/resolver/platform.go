package resolver

import (
	"fmt"
	"net/url"
	"strings"
)

// Platform describes a supported video site for the frontend picker.
type Platform struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ExampleURL string   `json:"example_url"`
	MatchHosts []string `json:"-"`
}

var platformCatalog = []Platform{
	{
		ID:         "youtube",
		Name:       "YouTube",
		ExampleURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		MatchHosts: []string{"youtube.com", "youtu.be", "music.youtube.com"},
	},
	{
		ID:         "tiktok",
		Name:       "TikTok",
		ExampleURL: "https://www.tiktok.com/@scout2015/video/6718335390845095173",
		MatchHosts: []string{"tiktok.com", "vm.tiktok.com", "vt.tiktok.com"},
	},
	{
		ID:         "instagram",
		Name:       "Instagram",
		ExampleURL: "https://www.instagram.com/reel/C8X2kM1yQxT/",
		MatchHosts: []string{"instagram.com", "instagr.am"},
	},
	{
		ID:         "twitter",
		Name:       "X (Twitter)",
		ExampleURL: "https://x.com/NASA/status/1410624005669169154",
		MatchHosts: []string{"twitter.com", "x.com", "t.co"},
	},
	{
		ID:         "facebook",
		Name:       "Facebook",
		ExampleURL: "https://www.facebook.com/watch/?v=10153231379946729",
		MatchHosts: []string{"facebook.com", "fb.watch", "fb.com"},
	},
	{
		ID:         "vimeo",
		Name:       "Vimeo",
		ExampleURL: "https://vimeo.com/347119375",
		MatchHosts: []string{"vimeo.com", "player.vimeo.com"},
	},
}

// Platforms returns the supported platform catalog in display order.
func Platforms() []Platform {
	out := make([]Platform, len(platformCatalog))
	copy(out, platformCatalog)
	return out
}

// DetectPlatform maps a URL to a platform id, or "generic" when the host
// matches no known site.
func DetectPlatform(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	for _, p := range platformCatalog {
		if matchesHost(host, p.MatchHosts) {
			return p.ID
		}
	}
	return "generic"
}

// matchesHost reports whether host equals any suffix or is a subdomain of
// it, so "www.youtube.com" matches "youtube.com" but "notyoutube.com" does
// not.
func matchesHost(host string, suffixes []string) bool {
	for _, s := range suffixes {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// NormalizeURL validates pasted input and returns the parsed URL. Only
// absolute http(s) URLs with a hostname are accepted.
func NormalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if !strings.Contains(u.Hostname(), ".") && u.Hostname() != "localhost" {
		return nil, fmt.Errorf("%w: hostname %q is not a valid site", ErrInvalidURL, u.Hostname())
	}
	return u, nil
}
