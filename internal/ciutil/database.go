package ciutil

import (
	"log/slog"
	"net/url"
	"strings"
)

// Defaults filled into a CI database URL that leaves them out.
const (
	StandardCIDatabase = "tasknotify_test"
	StandardCIOptions  = "sslmode=disable"
)

// TestDatabaseURL returns the Postgres URL for integration tests, or "" when
// none is configured. Under CI a URL without a database name or options
// gets the standard test database and sslmode=disable, matching the
// service containers CI runners start.
func TestDatabaseURL(logger *slog.Logger) string {
	dbURL := GetEnvWithFallbacks([]string{EnvTestDatabaseURL, EnvDatabaseURL}, "", logger)
	if dbURL == "" || !IsCI() {
		return dbURL
	}

	standardized, err := standardizeDatabaseURL(dbURL)
	if err != nil {
		if logger != nil {
			logger.Warn("using database URL as given",
				"error", err,
				"url", MaskSensitiveValue(dbURL))
		}
		return dbURL
	}
	if standardized != dbURL && logger != nil {
		logger.Info("standardized database URL for CI",
			"url", MaskSensitiveValue(standardized))
	}
	return standardized
}

func standardizeDatabaseURL(dbURL string) (string, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return dbURL, nil
	}
	if strings.TrimPrefix(u.Path, "/") == "" {
		u.Path = "/" + StandardCIDatabase
	}
	if u.RawQuery == "" {
		u.RawQuery = StandardCIOptions
	}
	return u.String(), nil
}
