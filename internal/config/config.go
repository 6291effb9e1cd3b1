// Package config loads the service configuration from YAML with environment
// overrides. The file describes which chains this process serves: at most
// one settlement manager role and any number of balance locker roles.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Transport  TransportConfig  `yaml:"transport"`
	Settlement SettlementConfig `yaml:"settlement"`
	Lockers    []LockerConfig   `yaml:"lockers"`
	Chains     []ChainConfig    `yaml:"chains"`
	Admin      AdminConfig      `yaml:"admin"`
	CORS       CORSConfig       `yaml:"cors"`
}

// ServerConfig is the HTTP listener configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects the storage backend. Driver "postgres" needs a DSN;
// driver "memory" runs the in-process store for local and test deployments.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// TransportConfig selects the message relay. Mode "local" runs every domain
// in-process over the local network; mode "nats" relays over JetStream.
type TransportConfig struct {
	Mode string     `yaml:"mode"`
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig is the JetStream relay connection.
type NATSConfig struct {
	URL    string `yaml:"url"`
	Events bool   `yaml:"events"` // also publish domain events over NATS
}

// SettlementConfig is the settlement manager role: the destination domain
// this process settles on and the manager's address there.
type SettlementConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DomainID uint32 `yaml:"domainId"`
	Manager  string `yaml:"manager"`
	Mailbox  string `yaml:"mailbox"`
}

// LockerConfig is one balance locker role: a source domain and the locker's
// address there.
type LockerConfig struct {
	DomainID uint32 `yaml:"domainId"`
	Address  string `yaml:"address"`
	Mailbox  string `yaml:"mailbox"`
}

// ChainConfig seeds the chain configuration table at startup.
type ChainConfig struct {
	DomainID         uint32 `yaml:"domainId"`
	Mailbox          string `yaml:"mailbox"`
	DisplayName      string `yaml:"displayName"`
	BlockTimeHintSec uint16 `yaml:"blockTimeHintSec"`
}

// AdminConfig guards the admin API surface.
type AdminConfig struct {
	JWTSecret  string   `yaml:"jwtSecret"`
	AllowedIPs []string `yaml:"allowedIPs"`
}

// CORSConfig is the browser access policy.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

var AppConfig *Config

// LoadConfig reads the configuration file, applies environment overrides and
// validates the role setup.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return err
	}

	AppConfig = &config
	return nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	if config.Transport.Mode == "" {
		config.Transport.Mode = "local"
	}
	if config.Transport.NATS.URL == "" {
		config.Transport.NATS.URL = "nats://localhost:4222"
	}
}

func validate(config *Config) error {
	switch config.Database.Driver {
	case "postgres":
		if config.Database.DSN == "" {
			return fmt.Errorf("database driver postgres requires a dsn")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver: %s", config.Database.Driver)
	}

	switch config.Transport.Mode {
	case "local", "nats":
	default:
		return fmt.Errorf("unknown transport mode: %s", config.Transport.Mode)
	}

	if config.Settlement.Enabled {
		if config.Settlement.DomainID == 0 || config.Settlement.Manager == "" {
			return fmt.Errorf("settlement role requires domainId and manager address")
		}
	}
	for _, locker := range config.Lockers {
		if locker.DomainID == 0 || locker.Address == "" {
			return fmt.Errorf("locker role requires domainId and address")
		}
		if config.Settlement.Enabled && config.Transport.Mode == "nats" && locker.DomainID == config.Settlement.DomainID {
			return fmt.Errorf("locker domain %d collides with the settlement domain", locker.DomainID)
		}
	}
	if !config.Settlement.Enabled && len(config.Lockers) == 0 {
		return fmt.Errorf("no roles configured: enable settlement or add at least one locker")
	}
	return nil
}

// overrideFromEnv applies environment variable overrides.
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if mode := os.Getenv("TRANSPORT_MODE"); mode != "" {
		config.Transport.Mode = mode
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.Transport.NATS.URL = natsURL
	}

	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		config.Admin.JWTSecret = secret
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// GetLockerConfig returns the locker role for a domain.
func GetLockerConfig(domainID uint32) (*LockerConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	for i := range AppConfig.Lockers {
		if AppConfig.Lockers[i].DomainID == domainID {
			return &AppConfig.Lockers[i], nil
		}
	}
	return nil, fmt.Errorf("no locker configured for domain %d", domainID)
}
