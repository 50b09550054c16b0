package inngestgo

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
)

const (
	devServerURL = "http://127.0.0.1:8288"

	envKeyAPIBaseURL         = "INNGEST_API_BASE_URL"
	envKeyDev                = "INNGEST_DEV"
	envKeyEnv                = "INNGEST_ENV"
	envKeyEventAPIBaseURL    = "INNGEST_EVENT_API_BASE_URL"
	envKeyEventKey           = "INNGEST_EVENT_KEY"
	envKeyLogLevel           = "INNGEST_LOG_LEVEL"
	envKeyServeOrigin        = "INNGEST_SERVE_ORIGIN"
	envKeyServePath          = "INNGEST_SERVE_PATH"
	envKeySigningKey         = "INNGEST_SIGNING_KEY"
	envKeySigningKeyFallback = "INNGEST_SIGNING_KEY_FALLBACK"
)

// IsDev returns whether to use the dev server, by checking the presence of the INNGEST_DEV
// environment variable.
//
// To use the dev server, set INNGEST_DEV to any non-empty value OR the URL of the development
// server, eg:
//
//	INNGEST_DEV=1
//	INNGEST_DEV=http://192.168.1.254:8288
func IsDev() bool {
	return os.Getenv(envKeyDev) != ""
}

// DevServerURL returns the URL for the Inngest dev server.  This uses the INNGEST_DEV
// environment variable, or defaults to 'http://127.0.0.1:8288' if unset.
func DevServerURL() string {
	if dev := os.Getenv(envKeyDev); dev != "" {
		if u, err := url.Parse(dev); err == nil && u.Host != "" {
			// Only return this if it's a valid URL.
			return dev
		}
	}
	return devServerURL
}

// envLogLevel parses INNGEST_LOG_LEVEL, defaulting to info.
func envLogLevel() slog.Level {
	switch strings.ToLower(os.Getenv(envKeyLogLevel)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
