package main

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	MongoDB      string
	ModelURL     string
	ArtifactPath string
	PowerURL     string
	JWTSecret    string
	Port         string
}

func mustConfig() Config {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		MongoURI:     getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getenv("MONGO_DB", "agrostress"),
		ModelURL:     getenv("MODEL_URL", "http://127.0.0.1:8000"),
		ArtifactPath: getenv("ARTIFACT_PATH", "artifact.json"),
		PowerURL:     getenv("POWER_URL", ""),
		JWTSecret:    getenv("JWT_SECRET", "change_me"),
		Port:         getenv("PORT", "8080"),
	}

	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
