package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	BackendURL  string `mapstructure:"BACKEND_URL"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// Redis (optional; the execution-result cache falls back to memory)
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Scratch directory for the sandbox runner. Empty means os.TempDir.
	ScratchDir string `mapstructure:"SCRATCH_DIR"`
}

var AppConfig *Config

func LoadConfig() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "5000")
	viper.SetDefault("BACKEND_URL", "https://codesync-backend-i4w6.onrender.com")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
}
