package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Bot      BotConfig
	Provider ProviderConfig
	QRIS     QRISConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type BotConfig struct {
	Token    string
	AdminIDs []string
}

type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	StockURL   string
	Timeout    time.Duration
	MinTopUp   int64
	MinDestLen int
}

type QRISConfig struct {
	Static string
	APIURL string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PROVIDER_TIMEOUT", "15s")
	viper.SetDefault("QRIS_API_URL", "https://qrisku.my.id/api")
	viper.SetDefault("MIN_TOPUP", 10000)
	viper.SetDefault("MIN_DEST_LEN", 9)

	timeout, err := time.ParseDuration(viper.GetString("PROVIDER_TIMEOUT"))
	if err != nil {
		timeout = 15 * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Bot: BotConfig{
			Token:    viper.GetString("BOT_TOKEN"),
			AdminIDs: splitList(viper.GetString("BOT_ADMIN_IDS")),
		},
		Provider: ProviderConfig{
			APIKey:     viper.GetString("PROVIDER_API_KEY"),
			BaseURL:    viper.GetString("PROVIDER_BASE_URL"),
			StockURL:   viper.GetString("PROVIDER_STOCK_URL"),
			Timeout:    timeout,
			MinTopUp:   viper.GetInt64("MIN_TOPUP"),
			MinDestLen: viper.GetInt("MIN_DEST_LEN"),
		},
		QRIS: QRISConfig{
			Static: viper.GetString("QRIS_STATIC"),
			APIURL: viper.GetString("QRIS_API_URL"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Bot.Token == "" {
		log.Println("WARNING: BOT_TOKEN is not set")
	}
	if cfg.Provider.BaseURL == "" {
		log.Println("WARNING: PROVIDER_BASE_URL is not set")
	}

	return cfg, nil
}

// IsAdmin reports whether the given chat ID belongs to a configured admin.
func (b *BotConfig) IsAdmin(chatID string) bool {
	for _, id := range b.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
