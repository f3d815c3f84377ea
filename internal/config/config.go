// Package config loads process-level configuration from the environment —
// the ambient concern distinct from internal/sysconfig's Firestore-backed
// SystemConfig document (feature flags, fares, timeouts). Grounded on the
// teacher's envOrDefault/envOrDefaultInt helper shape, generalized from the
// teacher's Postgres/HTTP settings to this service's Firestore/Redis/
// Firebase/Gemini settings — this service has no SQL database of its own,
// so DB.DSN is dropped rather than kept unwired.
package config

import (
	"os"
	"strconv"
)

type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

type FirestoreConfig struct {
	ProjectID string
}

type RedisConfig struct {
	Addr string
}

type MatchingConfig struct {
	SweepIntervalSec int
}

type AIConfig struct {
	GeminiKey string
}

type MapsConfig struct {
	APIKey string
}

type Config struct {
	HTTP struct {
		Addr string
	}
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	Redis     RedisConfig
	Matching  MatchingConfig
	AI        AIConfig
	Maps      MapsConfig
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("ARK_HTTP_ADDR", ":8080")
	cfg.Firebase.ProjectID = envOrDefault("ARK_FIREBASE_PROJECT_ID", "")
	cfg.Firebase.CredentialsFile = envOrDefault("ARK_FIREBASE_CREDENTIALS_FILE", "")
	cfg.Firestore.ProjectID = envOrDefault("ARK_FIRESTORE_PROJECT_ID", cfg.Firebase.ProjectID)
	cfg.Redis.Addr = envOrDefault("ARK_REDIS_ADDR", "localhost:6379")
	cfg.Matching.SweepIntervalSec = envOrDefaultInt("ARK_SWEEP_INTERVAL_SEC", 60)
	cfg.AI.GeminiKey = envOrDefault("GEMINI_API_KEY", "")
	cfg.Maps.APIKey = envOrDefault("ARK_MAPS_API_KEY", "")
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
