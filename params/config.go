package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Engine struct {
	// AutoProvision controls the unknown-symbol policy: when true, submitting
	// an order for a symbol with no book creates an empty book on the fly;
	// when false, the order is rejected.
	AutoProvision bool
	// SnapshotDepth caps the number of price levels per side in top-of-book
	// payloads sent to participants.
	SnapshotDepth int
	// TradeHistory is the number of recent trades retained per symbol.
	TradeHistory int
}

type API struct {
	Addr string
	// AllowedOrigins for CORS (comma-separated in env).
	AllowedOrigins []string
}

type Journal struct {
	// Path of the pebble event journal. Empty disables journaling.
	Path string
}

type Feed struct {
	// Brokers enables the kafka trade feed when non-empty.
	Brokers []string
	Topic   string
}

type Config struct {
	Engine  Engine
	API     API
	Journal Journal
	Feed    Feed
	LogFile string
}

func Default() Config {
	return Config{
		Engine: Engine{
			AutoProvision: true,
			SnapshotDepth: 5,
			TradeHistory:  100,
		},
		API: API{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Journal: Journal{
			Path: "data/journal",
		},
		Feed: Feed{
			Brokers: nil,
			Topic:   "trades",
		},
		LogFile: "data/server.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if origins := os.Getenv("API_ALLOWED_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = strings.Split(origins, ",")
	}
	if v := os.Getenv("ENGINE_AUTO_PROVISION"); v != "" {
		cfg.Engine.AutoProvision = v == "true"
	}
	if v := os.Getenv("ENGINE_SNAPSHOT_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Engine.SnapshotDepth = n
		}
	}
	if v := os.Getenv("ENGINE_TRADE_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Engine.TradeHistory = n
		}
	}
	if path := os.Getenv("JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Feed.Brokers = strings.Split(brokers, ",")
	}
	if topic := os.Getenv("KAFKA_TOPIC"); topic != "" {
		cfg.Feed.Topic = topic
	}
	if lf := os.Getenv("LOG_FILE"); lf != "" {
		cfg.LogFile = lf
	}

	return cfg
}
