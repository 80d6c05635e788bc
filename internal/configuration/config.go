package configuration

import (
	"Promo/internal/hub"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type MongoConfig struct {
	Uri                string `json:"uri" yaml:"uri"`
	Database           string `json:"database" yaml:"database"`
	MessagesCollection string `json:"messagesCollection" yaml:"messagesCollection"`
	UsersCollection    string `json:"usersCollection" yaml:"usersCollection"`
	SocketRoute        string `json:"socketRoute" yaml:"socketRoute"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port" yaml:"app_port"`
	SocketPort     int      `json:"socket_port" yaml:"socket_port"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

type HubConfig struct {
	WorkerPoolSize    int   `json:"worker_pool_size" yaml:"worker_pool_size"`
	InboundBufferSize int   `json:"inbound_buffer_size" yaml:"inbound_buffer_size"`
	SendBufferSize    int   `json:"send_buffer_size" yaml:"send_buffer_size"`
	MaxMessageSize    int64 `json:"max_message_size" yaml:"max_message_size"`
	PongWaitMs        int   `json:"pong_wait_ms" yaml:"pong_wait_ms"`
	WriteWaitMs       int   `json:"write_wait_ms" yaml:"write_wait_ms"`
	SendTimeoutMs     int   `json:"send_timeout_ms" yaml:"send_timeout_ms"`
	PushTimeoutMs     int   `json:"push_timeout_ms" yaml:"push_timeout_ms"`
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
}

type Config struct {
	ChatDatabase MongoConfig  `json:"mongo" yaml:"mongo"`
	Server       ServerConfig `json:"server" yaml:"server"`
	Hub          HubConfig    `json:"hub" yaml:"hub"`
	Log          LogConfig    `json:"log" yaml:"log"`
}

const (
	EnvMongoURI = "PROMO_MONGO_URI"
	EnvLogLevel = "PROMO_LOG_LEVEL"
)

// LoadConfig reads a JSON or YAML (.yaml/.yml) config file, then applies
// defaults and environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, &config)
	default:
		err = json.Unmarshal(file, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvMongoURI); v != "" {
		c.ChatDatabase.Uri = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.ChatDatabase.MessagesCollection == "" {
		c.ChatDatabase.MessagesCollection = "messages"
	}
	if c.ChatDatabase.UsersCollection == "" {
		c.ChatDatabase.UsersCollection = "users"
	}
	if c.ChatDatabase.SocketRoute == "" {
		c.ChatDatabase.SocketRoute = "ws"
	}
	c.ChatDatabase.SocketRoute = strings.TrimPrefix(c.ChatDatabase.SocketRoute, "/")

	if c.Server.AppPort == 0 {
		c.Server.AppPort = 5000
	}
	if c.Server.SocketPort == 0 {
		c.Server.SocketPort = 5001
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.ChatDatabase.Uri == "" {
		errs = append(errs, errors.New("mongo.uri is required"))
	}
	if c.ChatDatabase.Database == "" {
		errs = append(errs, errors.New("mongo.database is required"))
	}
	if !validPort(c.Server.AppPort) {
		errs = append(errs, fmt.Errorf("server.app_port %d out of range", c.Server.AppPort))
	}
	if !validPort(c.Server.SocketPort) {
		errs = append(errs, fmt.Errorf("server.socket_port %d out of range", c.Server.SocketPort))
	}
	if c.Server.AppPort == c.Server.SocketPort {
		errs = append(errs, errors.New("server.app_port and server.socket_port must differ"))
	}
	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// HubOptions converts the hub section. Zero fields are left for the hub
// to default.
func (c *Config) HubOptions() hub.Options {
	return hub.Options{
		WorkerPoolSize:    c.Hub.WorkerPoolSize,
		InboundBufferSize: c.Hub.InboundBufferSize,
		SendBufferSize:    c.Hub.SendBufferSize,
		MaxMessageSize:    c.Hub.MaxMessageSize,
		WriteWait:         millis(c.Hub.WriteWaitMs),
		PongWait:          millis(c.Hub.PongWaitMs),
		SendTimeout:       millis(c.Hub.SendTimeoutMs),
		PushTimeout:       millis(c.Hub.PushTimeoutMs),
		AllowedOrigins:    c.Server.AllowedOrigins,
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
