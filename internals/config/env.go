package config

import (
	"log"
	"os"
	"strconv"
)

// GetEnv fetches a key or returns an empty string.
// Security-critical env vars (JWT_SECRET) go through this one so a missing
// value is loud in the logs.
func GetEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	log.Printf("Critical: environment variable %s not set\n", key)
	return ""
}

// GetEnvAsStr fetches a key or returns a fallback value.
func GetEnvAsStr(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvAsInt fetches a key as integer, optionally requiring it to be
// positive, or returns the fallback.
func GetEnvAsInt(key string, fallback int, ensurePositive bool) int {
	if valueStr, ok := os.LookupEnv(key); ok {
		if value, err := strconv.Atoi(valueStr); err == nil {
			if ensurePositive && value <= 0 {
				log.Printf("Warning: environment variable %s is not positive, using fallback\n", key)
				return fallback
			}
			return value
		}
		log.Printf("Warning: environment variable %s is not an integer, using fallback\n", key)
	}
	return fallback
}
