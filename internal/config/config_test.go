package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "env: development\n")

	require.NoError(t, LoadConfig(path))

	assert.Equal(t, time.Second, Env.PriceFeed.TickInterval)
	assert.Equal(t, []string{"GOOG", "TSLA", "AMZN", "META", "NVDA"}, Env.PriceFeed.Instruments)
	assert.Equal(t, InstrumentSourceConfig, Env.PriceFeed.InstrumentSource)
	assert.Equal(t, "100", Env.PriceFeed.Base().String())
	assert.Equal(t, "0.01", Env.PriceFeed.Floor().String())
	assert.Equal(t, "0.02", Env.PriceFeed.MaxChange().String())
	assert.Equal(t, "4000", Env.Port["http"])
	assert.Equal(t, 64, Env.Websocket.SendBufferSize)
	assert.Equal(t, []string{"http://localhost:3000"}, Env.Websocket.AllowedOrigins)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
env: production
log:
  log_level: debug
price_feed:
  tick_interval: 250ms
  instruments: [GOOG, TSLA]
  base_price: 50
  max_change_percent: 5
redis:
  price_cache:
    cache_dsn: redis://localhost:6379/0
    key_ttl: 30s
`)

	require.NoError(t, LoadConfig(path))

	assert.Equal(t, "production", Env.Env)
	assert.Equal(t, "debug", Env.Log.LogLevel)
	assert.Equal(t, 250*time.Millisecond, Env.PriceFeed.TickInterval)
	assert.Equal(t, []string{"GOOG", "TSLA"}, Env.PriceFeed.Instruments)
	assert.Equal(t, "50", Env.PriceFeed.Base().String())
	assert.Equal(t, "0.05", Env.PriceFeed.MaxChange().String())
	assert.Equal(t, 30*time.Second, Env.Redis["price_cache"].KeyTTL)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadConfig_RejectsInvalidBounds(t *testing.T) {
	path := writeConfig(t, `
price_feed:
  max_change_percent: 0
`)

	err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidChangePercent)
}

func TestLoadConfig_RejectsInvalidWebsocketLimits(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "zero burst", body: "websocket:\n  inbound_burst: 0\n", wantErr: ErrInvalidInboundBurst},
		{name: "zero ping period", body: "websocket:\n  ping_period: 0s\n", wantErr: ErrInvalidPingPeriod},
		{name: "negative send buffer", body: "websocket:\n  send_buffer_size: -1\n", wantErr: ErrInvalidSendBufferSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LoadConfig(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEnvConfig_Validate(t *testing.T) {
	valid := func() *EnvConfig {
		return &EnvConfig{PriceFeed: PriceFeedConfig{
			TickInterval:     time.Second,
			Instruments:      []string{"GOOG", "TSLA"},
			InstrumentSource: InstrumentSourceConfig,
			BasePrice:        100,
			PriceFloor:       0.01,
			MaxChangePercent: 2,
		}, Websocket: WebsocketConfig{
			SendBufferSize: 64,
			MaxMessageSize: 4096,
			WriteWait:      5 * time.Second,
			PongWait:       60 * time.Second,
			PingPeriod:     50 * time.Second,
			InboundRate:    20,
			InboundBurst:   40,
		}}
	}

	tests := []struct {
		name    string
		mutate  func(c *EnvConfig)
		wantErr error
	}{
		{name: "valid", mutate: func(c *EnvConfig) {}},
		{name: "no instruments", mutate: func(c *EnvConfig) { c.PriceFeed.Instruments = nil }, wantErr: ErrNoInstruments},
		{name: "duplicate instrument", mutate: func(c *EnvConfig) { c.PriceFeed.Instruments = []string{"GOOG", "GOOG"} }, wantErr: ErrDuplicateInstrument},
		{name: "postgres source skips instrument list", mutate: func(c *EnvConfig) {
			c.PriceFeed.InstrumentSource = InstrumentSourcePostgres
			c.PriceFeed.Instruments = nil
		}},
		{name: "unknown source", mutate: func(c *EnvConfig) { c.PriceFeed.InstrumentSource = "s3" }, wantErr: ErrUnknownSource},
		{name: "zero floor", mutate: func(c *EnvConfig) { c.PriceFeed.PriceFloor = 0 }, wantErr: ErrInvalidPriceFloor},
		{name: "base below floor", mutate: func(c *EnvConfig) { c.PriceFeed.BasePrice = 0.001 }, wantErr: ErrInvalidBasePrice},
		{name: "zero tick interval", mutate: func(c *EnvConfig) { c.PriceFeed.TickInterval = 0 }, wantErr: ErrInvalidTickInterval},
		{name: "change percent too large", mutate: func(c *EnvConfig) { c.PriceFeed.MaxChangePercent = 100 }, wantErr: ErrInvalidChangePercent},
		{name: "zero ping period", mutate: func(c *EnvConfig) { c.Websocket.PingPeriod = 0 }, wantErr: ErrInvalidPingPeriod},
		{name: "negative ping period", mutate: func(c *EnvConfig) { c.Websocket.PingPeriod = -time.Second }, wantErr: ErrInvalidPingPeriod},
		{name: "pong wait not above ping period", mutate: func(c *EnvConfig) { c.Websocket.PongWait = 50 * time.Second }, wantErr: ErrInvalidPongWait},
		{name: "zero write wait", mutate: func(c *EnvConfig) { c.Websocket.WriteWait = 0 }, wantErr: ErrInvalidWriteWait},
		{name: "zero inbound rate", mutate: func(c *EnvConfig) { c.Websocket.InboundRate = 0 }, wantErr: ErrInvalidInboundRate},
		{name: "zero inbound burst", mutate: func(c *EnvConfig) { c.Websocket.InboundBurst = 0 }, wantErr: ErrInvalidInboundBurst},
		{name: "negative send buffer", mutate: func(c *EnvConfig) { c.Websocket.SendBufferSize = -1 }, wantErr: ErrInvalidSendBufferSize},
		{name: "zero send buffer", mutate: func(c *EnvConfig) { c.Websocket.SendBufferSize = 0 }, wantErr: ErrInvalidSendBufferSize},
		{name: "zero max message size", mutate: func(c *EnvConfig) { c.Websocket.MaxMessageSize = 0 }, wantErr: ErrInvalidMaxMessageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
