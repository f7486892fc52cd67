package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	SslCertPath  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	OpenAIAPIKey    string
	ChatModel       string
	EmbedModel      string
	TitleModel      string
	ModerationModel string

	ChunkSize        int
	ChunkOverlap     int
	MaxFileSizeBytes int64

	JWTSecret string
	Port      string
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "ap-northeast-2"),
		BucketName:   getEnv("BUCKET_NAME", "dochat-documents"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-4o-mini"),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-3-small"),
		TitleModel:      getEnv("TITLE_MODEL", "gpt-4o-mini"),
		ModerationModel: getEnv("MODERATION_MODEL", "omni-moderation-latest"),

		ChunkSize:        getEnvInt("CHUNK_SIZE", 900),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 150),
		MaxFileSizeBytes: int64(getEnvInt("MAX_FILE_SIZE_BYTES", 15*1024*1024)),

		JWTSecret: getEnv("JWT_SECRET", ""),
		Port:      getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
