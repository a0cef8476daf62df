package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	API        APIConfig
	Replica    ReplicaConfig
	Remote     RemoteConfig
	Sync       SyncConfig
	Encryption EncryptionConfig
}

// APIConfig is the loopback HTTP surface for the editor webview.
type APIConfig struct {
	Host           string `validate:"required"`
	Port           string `validate:"required"`
	AllowedOrigins string
}

// ReplicaConfig points at the local CouchDB node holding the replica,
// pending log and conflict set.
type ReplicaConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Name     string `validate:"required"`
}

type RemoteConfig struct {
	BaseURL         string `validate:"required,url"`
	ChannelEndpoint string `validate:"required,url"`
	Credential      string `validate:"required"`
}

type SyncConfig struct {
	DebounceWindow time.Duration `validate:"gt=0"`
	LoadTimeout    time.Duration `validate:"gt=0"`
	BackoffBase    time.Duration `validate:"gt=0"`
}

// EncryptionConfig carries the hex-encoded 256-bit key from the unlocked
// keychain.
type EncryptionConfig struct {
	KeyHex string `validate:"required,hexadecimal,len=64"`
}

func Load() (*Config, error) {
	godotenv.Load()

	debounce, err := time.ParseDuration(getEnv("SYNC_DEBOUNCE_WINDOW", "500ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_DEBOUNCE_WINDOW: %w", err)
	}

	loadTimeout, err := time.ParseDuration(getEnv("SYNC_LOAD_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_LOAD_TIMEOUT: %w", err)
	}

	backoffBase, err := time.ParseDuration(getEnv("CHANNEL_BACKOFF_BASE", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHANNEL_BACKOFF_BASE: %w", err)
	}

	cfg := &Config{
		API: APIConfig{
			Host:           getEnv("API_HOST", "127.0.0.1"),
			Port:           getEnv("API_PORT", "8787"),
			AllowedOrigins: getEnv("API_ALLOWED_ORIGINS", "tauri://localhost"),
		},
		Replica: ReplicaConfig{
			Host:     getEnv("REPLICA_DB_HOST", "localhost"),
			Port:     getEnv("REPLICA_DB_PORT", "5984"),
			User:     getEnv("REPLICA_DB_USER", "admin"),
			Password: getEnv("REPLICA_DB_PASSWORD", "password"),
			Name:     getEnv("REPLICA_DB_NAME", "wolffia"),
		},
		Remote: RemoteConfig{
			BaseURL:         getEnv("REMOTE_BASE_URL", "https://store.wolffia.app"),
			ChannelEndpoint: getEnv("REMOTE_CHANNEL_ENDPOINT", "wss://store.wolffia.app/channel"),
			Credential:      getEnv("SYNC_CREDENTIAL", ""),
		},
		Sync: SyncConfig{
			DebounceWindow: debounce,
			LoadTimeout:    loadTimeout,
			BackoffBase:    backoffBase,
		},
		Encryption: EncryptionConfig{
			KeyHex: getEnv("ENCRYPTION_KEY", ""),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
