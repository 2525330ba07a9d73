package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Logger      struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	// Streams are "SYMBOL@timeframe" entries, e.g. "EURUSD@1m".
	Streams  []string `yaml:"streams" validate:"min=1,dive,required"`
	Pipeline struct {
		QueueSize int `yaml:"queue_size" default:"256" validate:"gte=1"`
	} `yaml:"pipeline"`

	Feed       FeedConfig       `yaml:"feed"`
	Indicators IndicatorsConfig `yaml:"indicators"`
	Anomaly    AnomalyConfig    `yaml:"anomaly"`
	Regime     RegimeConfig     `yaml:"regime"`
	Scorer     ScorerConfig     `yaml:"scorer"`
	Sizer      SizerConfig      `yaml:"sizer"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		AlertTopic   string   `yaml:"alert_topic" default:"fxpulse.alerts"`
		OutcomeTopic string   `yaml:"outcome_topic" default:"fxpulse.outcomes"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"fxpulse-sizer"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"fxpulse"`
	} `yaml:"redis"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"fxpulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`

	Binance struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"binance"`
}

type FeedConfig struct {
	WebSocketURL     string            `yaml:"websocket_url" validate:"required"`
	APIKey           string            `yaml:"api_key"`
	PingInterval     time.Duration     `yaml:"ping_interval" default:"30s" validate:"gt=0"`
	StaleTimeout     time.Duration     `yaml:"stale_timeout" default:"90s" validate:"gt=0"`
	OpTimeout        time.Duration     `yaml:"op_timeout" default:"10s" validate:"gt=0"`
	PollInterval     time.Duration     `yaml:"poll_interval" default:"60s" validate:"gt=0"`
	PollLimit        int               `yaml:"poll_limit" default:"100" validate:"gte=1,lte=1000"`
	ReconcileTimeout time.Duration     `yaml:"reconcile_timeout" default:"3m" validate:"gt=0"`
	Tolerance        float64           `yaml:"tolerance" default:"0.0005" validate:"gte=0,lt=1"`
	MaxInvalid       int               `yaml:"max_invalid" default:"5" validate:"gte=1"`
	FallbackSymbols  map[string]string `yaml:"fallback_symbols"`
	Backoff          struct {
		Base        time.Duration `yaml:"base" default:"1s" validate:"gt=0"`
		Cap         time.Duration `yaml:"cap" default:"60s" validate:"gt=0"`
		Jitter      float64       `yaml:"jitter" default:"0.2" validate:"gte=0,lte=1"`
		MaxAttempts int           `yaml:"max_attempts" default:"8" validate:"gte=1"`
	} `yaml:"backoff"`
	DownCooldown time.Duration `yaml:"down_cooldown" default:"5m" validate:"gt=0"`
	Breaker      struct {
		MaxFailures uint32        `yaml:"max_failures" default:"3" validate:"gte=1"`
		Interval    time.Duration `yaml:"interval" default:"60s"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"breaker"`
}

type IndicatorsConfig struct {
	RSIPeriod       int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
	MACDFast        int     `yaml:"macd_fast" default:"12" validate:"gte=1"`
	MACDSlow        int     `yaml:"macd_slow" default:"26" validate:"gte=2"`
	MACDSignal      int     `yaml:"macd_signal" default:"9" validate:"gte=1"`
	BollingerPeriod int     `yaml:"bollinger_period" default:"20" validate:"gte=2"`
	BollingerK      float64 `yaml:"bollinger_k" default:"2" validate:"gt=0"`
	VolumePeriod    int     `yaml:"volume_period" default:"20" validate:"gte=2"`
	ATRPeriod       int     `yaml:"atr_period" default:"14" validate:"gte=2"`
	Buffer          int     `yaml:"buffer" default:"10" validate:"gte=0"`
}

type AnomalyConfig struct {
	Lookback       int     `yaml:"lookback" default:"20" validate:"gte=2"`
	MinHistory     int     `yaml:"min_history" default:"5" validate:"gte=2"`
	GapSigma       float64 `yaml:"gap_sigma" default:"6" validate:"gt=0"`
	MinSigma       float64 `yaml:"min_sigma" default:"0.0002" validate:"gt=0"`
	VolumeSigma    float64 `yaml:"volume_sigma" default:"4" validate:"gt=0"`
	VolumeMinRatio float64 `yaml:"volume_min_ratio" default:"3" validate:"gt=1"`
	StaleFactor    float64 `yaml:"stale_factor" default:"2.5" validate:"gt=1"`
}

type RegimeConfig struct {
	Lookback         int                `yaml:"lookback" default:"30" validate:"gte=3"`
	MinHistory       int                `yaml:"min_history" default:"20" validate:"gte=3"`
	Debounce         int                `yaml:"debounce" default:"3" validate:"gte=1"`
	TrendThreshold   float64            `yaml:"trend_threshold" default:"0.6" validate:"gt=0,lte=1"`
	MaxVolatility    float64            `yaml:"max_volatility" default:"2.5" validate:"gt=0"`
	DefaultBaseline  float64            `yaml:"default_baseline" default:"0.0004" validate:"gt=0"`
	Baselines        map[string]float64 `yaml:"baselines"`
	PivotSpan        int                `yaml:"pivot_span" default:"2" validate:"gte=1"`
	ClusterTolerance float64            `yaml:"cluster_tolerance" default:"0.001" validate:"gt=0"`
}

// DisallowRule blocks a direction while the regime matches.
type DisallowRule struct {
	Direction models.Direction   `yaml:"direction" validate:"oneof=LONG SHORT"`
	Label     models.RegimeLabel `yaml:"label" validate:"required"`
	Pending   models.RegimeLabel `yaml:"pending"`
}

type ScorerConfig struct {
	MinConfidence  float64                       `yaml:"min_confidence" default:"0.6" validate:"gte=0,lte=1"`
	RSIOversold    float64                       `yaml:"rsi_oversold" default:"30" validate:"gt=0,lt=50"`
	RSIOverbought  float64                       `yaml:"rsi_overbought" default:"70" validate:"gt=50,lt=100"`
	VolumeRatio    float64                       `yaml:"volume_ratio" default:"1.2" validate:"gt=0"`
	ConfirmCandles int                           `yaml:"confirm_candles" default:"2" validate:"gte=1"`
	Weights        map[string]float64            `yaml:"weights" default:"{\"rsi\":0.25,\"macd\":0.25,\"bollinger\":0.1,\"volume\":0.1,\"price_action\":0.1,\"regime\":0.1,\"correlation\":0.1}"`
	Disallow       []DisallowRule                `yaml:"disallow"`
	Correlated     map[string]map[string]float64 `yaml:"correlated"`
}

type SizerConfig struct {
	RiskLevel          int     `yaml:"risk_level" default:"3" validate:"gte=1,lte=5"`
	BasePosition       float64 `yaml:"base_position" default:"1.0" validate:"gt=0"`
	MinPosition        float64 `yaml:"min_position" default:"0.1" validate:"gt=0"`
	MaxPosition        float64 `yaml:"max_position" default:"2.0" validate:"gt=0"`
	BaseRiskPercent    float64 `yaml:"base_risk_percent" default:"0.02" validate:"gt=0,lte=1"`
	DrawdownTolerance  float64 `yaml:"drawdown_tolerance" default:"0.12" validate:"gt=0,lte=1"`
	DrawdownFloor      float64 `yaml:"drawdown_floor" default:"0.5" validate:"gte=0,lte=1"`
	WinRateSensitivity float64 `yaml:"win_rate_sensitivity" default:"0.3" validate:"gte=0,lte=1"`
	WinRateWindow      int     `yaml:"win_rate_window" default:"20" validate:"gte=1"`
	Recovery           struct {
		LossThreshold int           `yaml:"loss_threshold" default:"3" validate:"gte=1"`
		ExitWins      int           `yaml:"exit_wins" default:"2" validate:"gte=1"`
		Cooldown      time.Duration `yaml:"cooldown" default:"4h" validate:"gte=0"`
		Factor        float64       `yaml:"factor" default:"0.5" validate:"gt=0,lte=1"`
	} `yaml:"recovery"`
}

type DispatchConfig struct {
	Transport     string        `yaml:"transport" default:"log" validate:"oneof=log kafka"`
	Cooldown      time.Duration `yaml:"cooldown" default:"5m" validate:"gte=0"`
	QueueSize     int           `yaml:"queue_size" default:"128" validate:"gte=1"`
	RatePerMinute float64       `yaml:"rate_per_minute" default:"6" validate:"gt=0"`
	Burst         int           `yaml:"burst" default:"3" validate:"gte=1"`
	MaxDaily      int           `yaml:"max_daily" validate:"gte=0"`
	MinConfidence float64       `yaml:"min_confidence" validate:"gte=0,lte=1"`
	SendTimeout   time.Duration `yaml:"send_timeout" default:"5s" validate:"gt=0"`
	Journal       bool          `yaml:"journal"`
}

// Default returns a config populated only from default tags.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.applyDerivedDefaults()
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDerivedDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FEED_WS_URL"); v != "" {
		c.Feed.WebSocketURL = v
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("STREAMS"); v != "" {
		c.Streams = util.SplitNonEmpty(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitNonEmpty(v, ",")
	}
	if v := os.Getenv("KAFKA_ALERT_TOPIC"); v != "" {
		c.Kafka.AlertTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
	if v := os.Getenv("RISK_LEVEL"); v != "" {
		lvl, err := strconv.Atoi(v)
		if err != nil {
			return nil, models.NewConfigurationError("sizer.risk_level", "RISK_LEVEL %q is not an integer", v)
		}
		c.Sizer.RiskLevel = lvl
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

var validate = validator.New()

// Validate checks if the configuration is valid. Every failure is a
// *models.ConfigurationError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return models.NewConfigurationError(fe.Namespace(), "failed %q (value %v)", fe.Tag(), fe.Value())
		}
		return models.NewConfigurationError("config", "%v", err)
	}

	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		return models.NewConfigurationError("indicators.macd_fast", "must be lower than macd_slow (%d >= %d)", c.Indicators.MACDFast, c.Indicators.MACDSlow)
	}
	if c.Regime.MinHistory > c.Regime.Lookback+1 {
		return models.NewConfigurationError("regime.min_history", "must not exceed lookback+1")
	}
	if c.Sizer.MinPosition > c.Sizer.MaxPosition {
		return models.NewConfigurationError("sizer.min_position", "must not exceed max_position")
	}
	if c.Feed.Backoff.Base > c.Feed.Backoff.Cap {
		return models.NewConfigurationError("feed.backoff.base", "must not exceed cap")
	}
	if c.Scorer.RSIOversold >= c.Scorer.RSIOverbought {
		return models.NewConfigurationError("scorer.rsi_oversold", "must be lower than rsi_overbought")
	}
	var sum float64
	for name, w := range c.Scorer.Weights {
		if w < 0 {
			return models.NewConfigurationError("scorer.weights."+name, "weight must be non-negative")
		}
		sum += w
	}
	if sum <= 0 {
		return models.NewConfigurationError("scorer.weights", "at least one weight must be positive")
	}
	for _, s := range c.Streams {
		sym, tf, ok := strings.Cut(s, "@")
		if sym == "" {
			return models.NewConfigurationError("streams", "empty symbol in %q", s)
		}
		if ok && models.Timeframe(tf).Duration() == 0 {
			return models.NewConfigurationError("streams", "unsupported timeframe in %q", s)
		}
	}
	if c.Dispatch.Transport == "kafka" && (!c.Kafka.Enabled || len(c.Kafka.Brokers) == 0) {
		return models.NewConfigurationError("dispatch.transport", "kafka transport requires kafka.enabled and brokers")
	}
	if c.Dispatch.Journal && !c.ClickHouse.Enabled {
		return models.NewConfigurationError("dispatch.journal", "journal requires clickhouse.enabled")
	}
	return nil
}

func (c *Config) applyDerivedDefaults() {
	if len(c.Scorer.Disallow) == 0 {
		c.Scorer.Disallow = []DisallowRule{
			{Direction: models.DirectionLong, Label: models.RegimeTransition, Pending: models.RegimeStrongTrendDown},
			{Direction: models.DirectionShort, Label: models.RegimeTransition, Pending: models.RegimeStrongTrendUp},
		}
	}
	if c.Feed.FallbackSymbols == nil {
		c.Feed.FallbackSymbols = map[string]string{}
	}
	if c.Regime.Baselines == nil {
		c.Regime.Baselines = map[string]float64{}
	}
}

// RiskLevelScale maps risk level 1–5 onto the multiplier applied to base
// risk percent, max position size and drawdown tolerance.
func RiskLevelScale(level int) float64 {
	scales := [...]float64{0.5, 0.75, 1.0, 1.25, 1.5}
	if level < 1 {
		level = 1
	}
	if level > len(scales) {
		level = len(scales)
	}
	return scales[level-1]
}
