package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables holding the API credentials.
const (
	EnvAPIURL = "CALLBELL_API_URL"
	EnvAPIKey = "CALLBELL_API_KEY"
)

// MissingEnvError lists required variables that are unset or empty.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s\n"+
		"Please check your .env file and ensure all required variables are set.", strings.Join(e.Names, ", "))
}

// Credentials are the resolved API endpoint and key.
type Credentials struct {
	APIURL string
	APIKey string
}

// LoadEnv loads the given .env files into the process environment. Variables
// already set are kept, so earlier files win over later ones. Missing files are skipped.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ResolveCredentials reads the credentials from the environment. The
// environment URL overrides the profile's api_url; the key has no fallback.
func ResolveCredentials(p *Profile) (Credentials, error) {
	creds := Credentials{
		APIURL: strings.TrimSpace(os.Getenv(EnvAPIURL)),
		APIKey: strings.TrimSpace(os.Getenv(EnvAPIKey)),
	}
	if creds.APIURL == "" && p != nil {
		creds.APIURL = strings.TrimSpace(p.APIURL)
	}

	var missing []string
	if creds.APIURL == "" {
		missing = append(missing, EnvAPIURL)
	}
	if creds.APIKey == "" {
		missing = append(missing, EnvAPIKey)
	}
	if len(missing) > 0 {
		return Credentials{}, &MissingEnvError{Names: missing}
	}
	return creds, nil
}
