package envutil

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// IsDev reports whether MINIDP_ENV selects development mode,
// which allows plain-http identity provider domains
func IsDev() bool {
	env := strings.ToLower(os.Getenv("MINIDP_ENV"))
	return env == "development" || env == "dev"
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Split returns the non-empty, trimmed entries of a comma separated list.
func Split(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
