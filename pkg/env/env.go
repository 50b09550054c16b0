// Package env resolves the Inngest server URLs the SDK talks to, taking the
// INNGEST_DEV environment variable into account.
package env

import (
	"net/url"
	"os"
)

const (
	// DevServerOrigin is the default origin of a locally-running dev server.
	DevServerOrigin = "http://127.0.0.1:8288"

	// APIServerOrigin is the production API origin.
	APIServerOrigin = "https://api.inngest.com"

	// EventAPIServerOrigin is the production event API origin.
	EventAPIServerOrigin = "https://inn.gs"
)

// IsDev returns whether the SDK runs against a dev server.  Any non-empty
// INNGEST_DEV value enables dev mode.
func IsDev() bool {
	return os.Getenv("INNGEST_DEV") != ""
}

// APIServerURL returns the base URL for the Inngest API.  In dev mode this is
// the dev server origin, or the URL held in INNGEST_DEV when it is itself a
// valid URL.
func APIServerURL() string {
	if dev := os.Getenv("INNGEST_DEV"); dev != "" {
		return devURLOr(dev, DevServerOrigin)
	}
	return APIServerOrigin
}

// EventAPIServerURL returns the base URL for the Inngest event API, following
// the same dev-mode rules as APIServerURL.
func EventAPIServerURL() string {
	if dev := os.Getenv("INNGEST_DEV"); dev != "" {
		return devURLOr(dev, DevServerOrigin)
	}
	return EventAPIServerOrigin
}

func devURLOr(dev, fallback string) string {
	if u, err := url.Parse(dev); err == nil && u.Host != "" {
		return dev
	}
	return fallback
}
