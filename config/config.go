package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/papertrader/internal/domain"
	"github.com/alejandrodnm/papertrader/internal/indicators"
)

// Config es la configuración completa del paper trader.
type Config struct {
	Engine     EngineConfig        `yaml:"engine"`
	Risk       RiskSection         `yaml:"risk"`
	Scorer     domain.ScorerConfig `yaml:"scorer"`
	Indicators indicators.Config   `yaml:"indicators"`
	Binance    BinanceConfig       `yaml:"binance"`
	Storage    StorageConfig       `yaml:"storage"`
	Log        LogConfig           `yaml:"log"`
	Metrics    MetricsConfig       `yaml:"metrics"`
}

// EngineConfig controla el ciclo del orquestador.
type EngineConfig struct {
	Symbols        []string      `yaml:"symbols"` // orden de escaneo de entradas
	CandleInterval string        `yaml:"candle_interval"`
	Lookback       int           `yaml:"lookback"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	InitialBalance float64       `yaml:"initial_balance"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	Workers        int           `yaml:"workers"`
	Strategy       string        `yaml:"strategy"`
	Timezone       string        `yaml:"timezone"` // IANA; define el corte del día para el governor
	DrainOnStop    bool          `yaml:"drain_on_stop"`
	StopFile       string        `yaml:"stop_file"`
}

// RiskSection elige un perfil preset y permite sobreescribir campos sueltos:
//
//	risk:
//	  profile: standard
//	  stop_loss_pct: 0.03
type RiskSection struct {
	Profile string `yaml:"profile"`

	node *yaml.Node
}

// UnmarshalYAML guarda el nodo crudo para aplicar los overrides sobre el preset.
func (r *RiskSection) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Profile string `yaml:"profile"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}
	r.Profile = head.Profile
	r.node = value
	return nil
}

// Resolve devuelve el preset del perfil con los overrides aplicados y validados.
func (r RiskSection) Resolve() (domain.RiskConfig, error) {
	cfg, err := domain.RiskPreset(r.Profile)
	if err != nil {
		return domain.RiskConfig{}, err
	}
	if r.node != nil {
		if err := r.node.Decode(&cfg); err != nil {
			return domain.RiskConfig{}, fmt.Errorf("%w: risk overrides: %v", domain.ErrInvalidConfig, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return domain.RiskConfig{}, err
	}
	return cfg, nil
}

// BinanceConfig contiene los endpoints del proveedor de mercado.
type BinanceConfig struct {
	RESTBase     string        `yaml:"rest_base"`
	WSBase       string        `yaml:"ws_base"`
	Stream       bool          `yaml:"stream"` // precios por websocket con fallback a REST
	StreamMaxAge time.Duration `yaml:"stream_max_age"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig controla el endpoint de Prometheus. Addr vacío lo desactiva.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse construye la configuración a partir de YAML ya leído.
func Parse(data []byte) (*Config, error) {
	// Scorer e indicadores parten de sus defaults; el YAML solo pisa lo que declara.
	cfg := Config{
		Scorer:     domain.DefaultScorerConfig(),
		Indicators: indicators.DefaultConfig(),
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate comprueba lo que se puede comprobar sin construir el engine.
func (c *Config) Validate() error {
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if c.Binance.StreamMaxAge < 0 {
		return fmt.Errorf("%w: stream_max_age must be > 0", domain.ErrInvalidConfig)
	}
	if _, err := c.Risk.Resolve(); err != nil {
		return err
	}
	if err := c.Scorer.Validate(); err != nil {
		return err
	}
	if err := c.Indicators.Validate(); err != nil {
		return err
	}
	if warmup := indicators.NewCalculator(c.Indicators).Warmup(); c.Scorer.MinObservations < warmup {
		return fmt.Errorf("%w: scorer.min_observations (%d) below indicator warmup (%d)",
			domain.ErrInvalidConfig, c.Scorer.MinObservations, warmup)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", domain.ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", domain.ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

func (e EngineConfig) validate() error {
	switch {
	case e.InitialBalance <= 0:
		return fmt.Errorf("%w: initial_balance must be > 0, got %v", domain.ErrInvalidConfig, e.InitialBalance)
	case e.Lookback < 0:
		return fmt.Errorf("%w: lookback must be > 0, got %d", domain.ErrInvalidConfig, e.Lookback)
	case e.Workers < 0:
		return fmt.Errorf("%w: workers must be > 0, got %d", domain.ErrInvalidConfig, e.Workers)
	case e.TickInterval < 0 || e.CallTimeout < 0:
		return fmt.Errorf("%w: tick_interval and call_timeout must be > 0", domain.ErrInvalidConfig)
	}
	return nil
}

// Location devuelve la zona horaria del día de trading.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", domain.ErrInvalidConfig, c.Engine.Timezone, err)
	}
	return loc, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PAPER_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("PAPER_SYMBOLS"); v != "" {
		cfg.Engine.Symbols = SplitSymbols(v)
	}
	if v := os.Getenv("PAPER_PROFILE"); v != "" {
		cfg.Risk.Profile = v
	}
	if v := os.Getenv("PAPER_BALANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: PAPER_BALANCE %q: %v", domain.ErrInvalidConfig, v, err)
		}
		cfg.Engine.InitialBalance = f
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}

// SplitSymbols parsea una lista separada por comas a símbolos en mayúsculas.
func SplitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// setDefaults rellena solo las keys ausentes (valor cero); los negativos
// los rechaza Validate.
func setDefaults(cfg *Config) {
	if len(cfg.Engine.Symbols) == 0 {
		cfg.Engine.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	}
	for i, s := range cfg.Engine.Symbols {
		cfg.Engine.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if cfg.Engine.CandleInterval == "" {
		cfg.Engine.CandleInterval = "5m"
	}
	if cfg.Engine.Lookback == 0 {
		cfg.Engine.Lookback = 200
	}
	if cfg.Engine.TickInterval == 0 {
		cfg.Engine.TickInterval = 60 * time.Second
	}
	if cfg.Engine.InitialBalance == 0 {
		cfg.Engine.InitialBalance = 10000
	}
	if cfg.Engine.CallTimeout == 0 {
		cfg.Engine.CallTimeout = 10 * time.Second
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = 4
	}
	if cfg.Engine.Timezone == "" {
		cfg.Engine.Timezone = "UTC"
	}
	if cfg.Risk.Profile == "" {
		cfg.Risk.Profile = domain.ProfileStandard
	}
	if cfg.Binance.RESTBase == "" {
		cfg.Binance.RESTBase = "https://api.binance.com"
	}
	if cfg.Binance.WSBase == "" {
		cfg.Binance.WSBase = "wss://stream.binance.com:9443"
	}
	if cfg.Binance.StreamMaxAge == 0 {
		cfg.Binance.StreamMaxAge = 30 * time.Second
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "papertrader.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
