package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Secrets are the credentials read from the environment.
type Secrets struct {
	ORCIDClientID     string
	ORCIDClientSecret string
	HFToken           string
	OpenAIKey         string
	Neo4jPassword     string
	RedisPassword     string
}

// Environment variables holding secrets.
const (
	EnvORCIDClientID     = "ORCID_CLIENT_ID"
	EnvORCIDClientSecret = "ORCID_CLIENT_SECRET"
	EnvHFToken           = "HF_API_TOKEN"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvNeo4jPassword     = "NEO4J_PASSWORD"
	EnvRedisPassword     = "REDIS_PASSWORD"
)

// LoadDotEnv loads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// SecretsFromEnv reads every secret from the environment.
func SecretsFromEnv() Secrets {
	return Secrets{
		ORCIDClientID:     os.Getenv(EnvORCIDClientID),
		ORCIDClientSecret: os.Getenv(EnvORCIDClientSecret),
		HFToken:           os.Getenv(EnvHFToken),
		OpenAIKey:         os.Getenv(EnvOpenAIKey),
		Neo4jPassword:     os.Getenv(EnvNeo4jPassword),
		RedisPassword:     os.Getenv(EnvRedisPassword),
	}
}

// Present reports which secrets are set, by environment variable name,
// without revealing their values.
func (s Secrets) Present() map[string]bool {
	return map[string]bool{
		EnvORCIDClientID:     s.ORCIDClientID != "",
		EnvORCIDClientSecret: s.ORCIDClientSecret != "",
		EnvHFToken:           s.HFToken != "",
		EnvOpenAIKey:         s.OpenAIKey != "",
		EnvNeo4jPassword:     s.Neo4jPassword != "",
		EnvRedisPassword:     s.RedisPassword != "",
	}
}
