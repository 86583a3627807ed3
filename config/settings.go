package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// BoolFromEnv accepts 1/true/yes/y/on (case-insensitive).
func BoolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y" || v == "on"
}

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func StringFromEnv(key string, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// TokenLifespan is how long a login session stays valid.
// Set via env: TOKEN_HOUR_LIFESPAN (default 24)
func TokenLifespan() time.Duration {
	return time.Duration(IntFromEnv("TOKEN_HOUR_LIFESPAN", 24)) * time.Hour
}

// DefaultCountry is the region used to validate phone numbers and tax ids
// when a company has no country configured.
// Set via env: DEFAULT_COUNTRY (default US)
func DefaultCountry() string {
	return strings.ToUpper(StringFromEnv("DEFAULT_COUNTRY", "US"))
}

// PostOnCreateAllowed lets journal entries be created and posted in one request.
// Set via env: ALLOW_POST_ON_CREATE=false to force a separate post step.
func PostOnCreateAllowed() bool {
	if strings.TrimSpace(os.Getenv("ALLOW_POST_ON_CREATE")) == "" {
		return true
	}
	return BoolFromEnv("ALLOW_POST_ON_CREATE")
}
