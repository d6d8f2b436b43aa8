package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	DBPath      string

	// Media preparation
	MediaDir        string
	MediaPublicBase string
	FFmpegBin       string

	// Cloud API host (graph.facebook.com in production)
	GraphHost string

	CampaignBatchSize   int
	CampaignSendDelayMS int

	GatewayTimeoutSec int
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DBPath:              getEnv("DB_PATH", "./whatsapp-crm.db"),
		MediaDir:            getEnv("MEDIA_DIR", "./public/media"),
		MediaPublicBase:     getEnv("MEDIA_PUBLIC_BASE", "/media"),
		FFmpegBin:           getEnv("FFMPEG_BIN", "ffmpeg"),
		GraphHost:           getEnv("GRAPH_HOST", "graph.facebook.com"),
		CampaignBatchSize:   getEnvInt("CAMPAIGN_BATCH_SIZE", 50),
		CampaignSendDelayMS: getEnvInt("CAMPAIGN_SEND_DELAY_MS", 100),
		GatewayTimeoutSec:   getEnvInt("GATEWAY_TIMEOUT_SEC", 30),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
