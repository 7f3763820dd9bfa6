package studio

import (
	"fmt"
	"sort"
	"strings"
)

// apiRoot is the path prefix for the current stable public API. Session
// endpoints live under it; the OAuth endpoints do not.
const apiRoot = "/publicapi/v1"

// OAuth endpoint paths, relative to a region base URL.
const (
	authorizePath = "/oauth/authorize"
	tokenPath     = "/oauth/token"
)

// DefaultBaseURL is the US region base, used when no region is configured.
const DefaultBaseURL = "https://api.bluebeam.com"

// DefaultScopes grants Sessions access; offline_access is required to
// receive refresh tokens.
var DefaultScopes = []string{"full_user", "offline_access"}

// regionBaseURLs maps known public region codes to their API hosts.
var regionBaseURLs = map[string]string{
	"US": "https://api.bluebeam.com",
	"DE": "https://api.bluebeamstudio.de",
	"AU": "https://api.bluebeamstudio.com.au",
	"UK": "https://api.bluebeamstudio.co.uk",
	"SE": "https://api.bluebeamstudio.se",
}

// BaseURLForRegion resolves a region code (case-insensitive) to its base URL.
func BaseURLForRegion(region string) (string, error) {
	base, ok := regionBaseURLs[strings.ToUpper(region)]
	if !ok {
		return "", fmt.Errorf("studio: unknown region %q (known: %s)", region, strings.Join(Regions(), ", "))
	}

	return base, nil
}

// Regions returns the known region codes, sorted.
func Regions() []string {
	codes := make([]string, 0, len(regionBaseURLs))
	for code := range regionBaseURLs {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	return codes
}
