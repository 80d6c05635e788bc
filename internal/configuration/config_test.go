package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"mongo": {"uri": "mongodb://localhost:27017", "database": "promo"},
		"server": {"app_port": 8080, "socket_port": 8081, "allowed_origins": ["http://localhost:4200"]},
		"hub": {"worker_pool_size": 4, "push_timeout_ms": 100}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "promo", cfg.ChatDatabase.Database)
	assert.Equal(t, "messages", cfg.ChatDatabase.MessagesCollection)
	assert.Equal(t, "users", cfg.ChatDatabase.UsersCollection)
	assert.Equal(t, "ws", cfg.ChatDatabase.SocketRoute)
	assert.Equal(t, "info", cfg.Log.Level)

	opts := cfg.HubOptions()
	assert.Equal(t, 4, opts.WorkerPoolSize)
	assert.Equal(t, 100*time.Millisecond, opts.PushTimeout)
	assert.Zero(t, opts.PongWait)
	assert.Equal(t, []string{"http://localhost:4200"}, opts.AllowedOrigins)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
mongo:
  uri: mongodb://db:27017
  database: promo
  socketRoute: /chat
server:
  app_port: 9000
  socket_port: 9001
log:
  level: debug
  development: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", cfg.ChatDatabase.Uri)
	assert.Equal(t, "chat", cfg.ChatDatabase.SocketRoute)
	assert.Equal(t, 9000, cfg.Server.AppPort)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(EnvMongoURI, "mongodb://override:27017")
	t.Setenv(EnvLogLevel, "warn")

	path := writeConfig(t, "config.json", `{"mongo": {"uri": "mongodb://file", "database": "promo"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://override:27017", cfg.ChatDatabase.Uri)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{name: "missing uri", file: "c.json", body: `{"mongo": {"database": "promo"}}`, want: "mongo.uri"},
		{name: "missing database", file: "c.json", body: `{"mongo": {"uri": "mongodb://x"}}`, want: "mongo.database"},
		{name: "port out of range", file: "c.json", body: `{"mongo": {"uri": "mongodb://x", "database": "d"}, "server": {"app_port": 70000}}`, want: "app_port"},
		{name: "same ports", file: "c.json", body: `{"mongo": {"uri": "mongodb://x", "database": "d"}, "server": {"app_port": 7000, "socket_port": 7000}}`, want: "must differ"},
		{name: "bad yaml", file: "c.yml", body: "mongo: [", want: "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LogConfig{Level: "loud"})
	require.Error(t, err)
}
