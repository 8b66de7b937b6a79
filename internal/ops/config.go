package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/yanun0323/errors"
)

// Database modes.
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
)

// Gateway modes.
const (
	GatewaySim = "sim"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Gateway  GatewayConfig  `json:"gateway"`
	Users    []UserConfig   `json:"users"`
}

// ServerConfig describes the listening socket and queue sizing.
type ServerConfig struct {
	Listen            string `json:"listen"`
	Path              string `json:"path"`
	OutboundQueueSize int    `json:"outboundQueueSize"`
	OrderQueueSize    int    `json:"orderQueueSize"`
	FeedQueueSize     int    `json:"feedQueueSize"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Mode     string `json:"mode"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// GatewayConfig selects and sizes the broker gateway.
type GatewayConfig struct {
	Mode           string `json:"mode"`
	TradeQuota     int    `json:"tradeQuota"`
	SubscribeQuota int    `json:"subscribeQuota"`
}

// UserConfig seeds one login into the memory store. Ignored in postgres mode,
// accounts live in the users table there.
type UserConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Load reads a JSON config file, fills defaults and validates.
func Load(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, errors.Wrap(err, "read config file")
	}

	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, errors.Wrap(err, "parse config file")
	}

	cfg.resolve()
	if err := cfg.validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (c *FileConfig) resolve() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Path == "" {
		c.Server.Path = "/ws"
	}
	if c.Server.OutboundQueueSize <= 0 {
		c.Server.OutboundQueueSize = 256
	}
	if c.Server.OrderQueueSize <= 0 {
		c.Server.OrderQueueSize = 128
	}
	if c.Server.FeedQueueSize <= 0 {
		c.Server.FeedQueueSize = 128
	}
	if c.Database.Mode == "" {
		c.Database.Mode = DatabaseMemory
	}
	if c.Gateway.Mode == "" {
		c.Gateway.Mode = GatewaySim
	}
}

func (c *FileConfig) validate() error {
	switch c.Database.Mode {
	case DatabaseMemory:
	case DatabasePostgres:
		if c.Database.Database == "" {
			return fmt.Errorf("database name is empty")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is empty")
		}
	default:
		return fmt.Errorf("unknown database mode: %s", c.Database.Mode)
	}

	switch c.Gateway.Mode {
	case GatewaySim:
	default:
		return fmt.Errorf("unknown gateway mode: %s", c.Gateway.Mode)
	}

	for i, u := range c.Users {
		if u.Username == "" {
			return fmt.Errorf("users[%d] username is empty", i)
		}
	}
	return nil
}
