package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var (
	ServiceName    = "price-feed-service"
	ServiceVersion = ""
)

var (
	Env *EnvConfig
)

const (
	InstrumentSourceConfig   = "config"
	InstrumentSourcePostgres = "postgres"
)

var (
	ErrNoInstruments        = errors.New("price_feed.instruments must not be empty")
	ErrDuplicateInstrument  = errors.New("price_feed.instruments contains a duplicate")
	ErrInvalidBasePrice     = errors.New("price_feed.base_price must not be below price_floor")
	ErrInvalidPriceFloor    = errors.New("price_feed.price_floor must be positive")
	ErrInvalidChangePercent = errors.New("price_feed.max_change_percent must be within (0, 100)")
	ErrInvalidTickInterval  = errors.New("price_feed.tick_interval must be positive")
	ErrUnknownSource        = errors.New("price_feed.instrument_source must be config or postgres")

	ErrInvalidPingPeriod     = errors.New("websocket.ping_period must be positive")
	ErrInvalidPongWait       = errors.New("websocket.pong_wait must be greater than ping_period")
	ErrInvalidWriteWait      = errors.New("websocket.write_wait must be positive")
	ErrInvalidInboundRate    = errors.New("websocket.inbound_rate must be positive")
	ErrInvalidInboundBurst   = errors.New("websocket.inbound_burst must be at least 1")
	ErrInvalidSendBufferSize = errors.New("websocket.send_buffer_size must be at least 1")
	ErrInvalidMaxMessageSize = errors.New("websocket.max_message_size must be positive")
)

type EnvConfig struct {
	Env                     string                    `mapstructure:"env"`
	Log                     LogConfig                 `mapstructure:"log"`
	GracefulShutdownTimeout time.Duration             `mapstructure:"graceful_shutdown_timeout"`
	Port                    map[string]string         `mapstructure:"port"`
	PriceFeed               PriceFeedConfig           `mapstructure:"price_feed"`
	Websocket               WebsocketConfig           `mapstructure:"websocket"`
	Database                map[string]DatabaseConfig `mapstructure:"database"`
	Redis                   map[string]RedisConfig    `mapstructure:"redis"`
	NatsJetstream           NatsJetstreamConfig       `mapstructure:"nats_jetstream"`
}

type PriceFeedConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	Instruments      []string      `mapstructure:"instruments"`
	InstrumentSource string        `mapstructure:"instrument_source"`
	BasePrice        float64       `mapstructure:"base_price"`
	PriceFloor       float64       `mapstructure:"price_floor"`
	MaxChangePercent float64       `mapstructure:"max_change_percent"` // in percentage, e.g. 2 for 2%
	SinkBufferSize   int           `mapstructure:"sink_buffer_size"`
}

// MaxChange returns max_change_percent as a fraction, e.g. 0.02 for 2%.
func (c PriceFeedConfig) MaxChange() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxChangePercent).Div(decimal.NewFromInt(100))
}

func (c PriceFeedConfig) Floor() decimal.Decimal {
	return decimal.NewFromFloat(c.PriceFloor).Round(2)
}

func (c PriceFeedConfig) Base() decimal.Decimal {
	return decimal.NewFromFloat(c.BasePrice).Round(2)
}

type WebsocketConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	SendBufferSize int           `mapstructure:"send_buffer_size"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	InboundRate    float64       `mapstructure:"inbound_rate"` // frames per second
	InboundBurst   int           `mapstructure:"inbound_burst"`
}

type NatsJetstreamConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	MaxRetries      int           `mapstructure:"max_retries"`
	ReconnectFactor float64       `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration `mapstructure:"min_jitter"`
	MaxJitter       time.Duration `mapstructure:"max_jitter"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ReconnectFactor float64       `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration `mapstructure:"min_jitter"`
	MaxJitter       time.Duration `mapstructure:"max_jitter"`
	MaxRetry        int           `mapstructure:"max_retry"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxActiveConns  int           `mapstructure:"max_active_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type LogConfig struct {
	ShowCaller bool   `mapstructure:"show_caller"`
	LogLevel   string `mapstructure:"log_level"`
}

type RedisConfig struct {
	CacheDSN string        `mapstructure:"cache_dsn"`
	KeyTTL   time.Duration `mapstructure:"key_ttl"`
}

func setDefaults() {
	viper.SetDefault("env", "development")
	viper.SetDefault("log.log_level", "info")
	viper.SetDefault("graceful_shutdown_timeout", 10*time.Second)
	viper.SetDefault("port.http", "4000")
	viper.SetDefault("port.grpc", "4001")

	viper.SetDefault("price_feed.tick_interval", time.Second)
	viper.SetDefault("price_feed.instruments", []string{"GOOG", "TSLA", "AMZN", "META", "NVDA"})
	viper.SetDefault("price_feed.instrument_source", InstrumentSourceConfig)
	viper.SetDefault("price_feed.base_price", 100.0)
	viper.SetDefault("price_feed.price_floor", 0.01)
	viper.SetDefault("price_feed.max_change_percent", 2.0)
	viper.SetDefault("price_feed.sink_buffer_size", 16)

	viper.SetDefault("websocket.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("websocket.send_buffer_size", 64)
	viper.SetDefault("websocket.max_message_size", 4096)
	viper.SetDefault("websocket.write_wait", 5*time.Second)
	viper.SetDefault("websocket.pong_wait", 60*time.Second)
	viper.SetDefault("websocket.ping_period", 50*time.Second)
	viper.SetDefault("websocket.inbound_rate", 20.0)
	viper.SetDefault("websocket.inbound_burst", 40)
}

func LoadConfig(configPath string) error {
	viper.Reset()
	setDefaults()

	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
		viper.AddConfigPath(".")
	} else {
		ext := strings.ToLower(filepath.Ext(configPath))
		if ext == ".yml" || ext == ".yaml" {
			viper.SetConfigFile(configPath)
		} else {
			viper.SetConfigName(filepath.Base(configPath))
			viper.SetConfigType("yml")
			configDir := filepath.Dir(configPath)
			if configDir == "." || configDir == "" {
				viper.AddConfigPath(".")
			} else {
				viper.AddConfigPath(configDir)
			}
		}
	}

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	Env = nil
	err = viper.Unmarshal(&Env)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	err = Env.Validate()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Validate checks the price feed bounds and the websocket limits. Instruments
// are only checked when they come from the config file.
func (c *EnvConfig) Validate() error {
	err := c.PriceFeed.Validate()
	if err != nil {
		return err
	}

	return c.Websocket.Validate()
}

func (c PriceFeedConfig) Validate() error {
	switch c.InstrumentSource {
	case InstrumentSourceConfig:
		if len(c.Instruments) == 0 {
			return ErrNoInstruments
		}
		seen := make(map[string]struct{}, len(c.Instruments))
		for _, symbol := range c.Instruments {
			if _, ok := seen[symbol]; ok {
				return fmt.Errorf("%w: %s", ErrDuplicateInstrument, symbol)
			}
			seen[symbol] = struct{}{}
		}
	case InstrumentSourcePostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, c.InstrumentSource)
	}

	if c.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	if !c.Floor().IsPositive() {
		return ErrInvalidPriceFloor
	}
	if c.Base().LessThan(c.Floor()) {
		return ErrInvalidBasePrice
	}
	if c.MaxChangePercent <= 0 || c.MaxChangePercent >= 100 {
		return ErrInvalidChangePercent
	}

	return nil
}

// Validate rejects limits that would panic the writer or starve every inbound frame.
func (c WebsocketConfig) Validate() error {
	switch {
	case c.PingPeriod <= 0:
		return ErrInvalidPingPeriod
	case c.PongWait <= c.PingPeriod:
		return ErrInvalidPongWait
	case c.WriteWait <= 0:
		return ErrInvalidWriteWait
	case c.InboundRate <= 0:
		return ErrInvalidInboundRate
	case c.InboundBurst < 1:
		return ErrInvalidInboundBurst
	case c.SendBufferSize < 1:
		return ErrInvalidSendBufferSize
	case c.MaxMessageSize <= 0:
		return ErrInvalidMaxMessageSize
	}

	return nil
}
