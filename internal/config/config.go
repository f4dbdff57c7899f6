package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/windsite/internal/exclusion"
	"github.com/sells-group/windsite/internal/layout"
	"github.com/sells-group/windsite/internal/overpass"
	"github.com/sells-group/windsite/internal/setback"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Setback  SetbackConfig  `yaml:"setback" mapstructure:"setback"`
	Turbine  TurbineConfig  `yaml:"turbine" mapstructure:"turbine"`
	Layout   LayoutConfig   `yaml:"layout" mapstructure:"layout"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	MaxBodyMB      int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnalysisConfig configures exclusion-zone generation.
type AnalysisConfig struct {
	RadiusKM           float64 `yaml:"radius_km" mapstructure:"radius_km"`
	SimplifyToleranceM float64 `yaml:"simplify_tolerance_m" mapstructure:"simplify_tolerance_m"`
	MinPartAreaM2      float64 `yaml:"min_part_area_m2" mapstructure:"min_part_area_m2"`
	Workers            int     `yaml:"workers" mapstructure:"workers"`
}

// SetbackConfig holds explicit setback distances. Unset class distances are
// derived from the turbine. File points at an optional YAML setback file
// whose values take precedence.
type SetbackConfig struct {
	File            string   `yaml:"file" mapstructure:"file"`
	ResidenceM      *float64 `yaml:"residence_m" mapstructure:"residence_m"`
	InfrastructureM *float64 `yaml:"infrastructure_m" mapstructure:"infrastructure_m"`
	UtilityM        *float64 `yaml:"utility_m" mapstructure:"utility_m"`
	WaterM          *float64 `yaml:"water_m" mapstructure:"water_m"`
	DefaultM        *float64 `yaml:"default_m" mapstructure:"default_m"`
}

// TurbineConfig describes the turbine model used for fallback setbacks.
type TurbineConfig struct {
	TipHeightM   float64 `yaml:"tip_height_m" mapstructure:"tip_height_m"`
	RotorRadiusM float64 `yaml:"rotor_radius_m" mapstructure:"rotor_radius_m"`
}

// LayoutConfig configures layout validation.
type LayoutConfig struct {
	MinSpacingM float64 `yaml:"min_spacing_m" mapstructure:"min_spacing_m"`
	Workers     int     `yaml:"workers" mapstructure:"workers"`
}

// OverpassConfig configures live feature fetching.
type OverpassConfig struct {
	URL         string  `yaml:"url" mapstructure:"url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// optionalKeys have no default but must still be reachable from the
// environment.
var optionalKeys = []string{
	"setback.file",
	"setback.residence_m",
	"setback.infrastructure_m",
	"setback.utility_m",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WINDSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range optionalKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.max_body_mb", 64)
	v.SetDefault("server.timeout_secs", 120)
	v.SetDefault("analysis.radius_km", 5.0)
	v.SetDefault("analysis.simplify_tolerance_m", exclusion.DefaultSimplifyToleranceM)
	v.SetDefault("analysis.min_part_area_m2", exclusion.DefaultMinPartAreaM2)
	v.SetDefault("analysis.workers", exclusion.DefaultWorkers)
	v.SetDefault("setback.default_m", setback.DefaultM)
	v.SetDefault("setback.water_m", setback.WaterM)
	v.SetDefault("turbine.tip_height_m", 0.0)
	v.SetDefault("turbine.rotor_radius_m", 0.0)
	v.SetDefault("layout.min_spacing_m", layout.DefaultMinSpacingM)
	v.SetDefault("layout.workers", 4)
	v.SetDefault("overpass.url", overpass.DefaultURL)
	v.SetDefault("overpass.timeout_secs", 60)
	v.SetDefault("overpass.max_retries", 3)
	v.SetDefault("overpass.rate_limit", 1.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on. mode is one of zones,
// validate, classify or serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "zones", "classify":
		errs = append(errs, c.validateAnalysis()...)
	case "validate":
		errs = append(errs, c.validateLayout()...)
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit <= 0 {
			errs = append(errs, "server.rate_limit must be > 0")
		}
		if c.Server.RateBurst < 1 {
			errs = append(errs, "server.rate_burst must be >= 1")
		}
		errs = append(errs, c.validateAnalysis()...)
		errs = append(errs, c.validateLayout()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateAnalysis() []string {
	var errs []string
	if c.Analysis.RadiusKM <= 0 {
		errs = append(errs, "analysis.radius_km must be > 0")
	}
	if c.Analysis.SimplifyToleranceM < 0 {
		errs = append(errs, "analysis.simplify_tolerance_m must be >= 0")
	}
	if c.Analysis.MinPartAreaM2 < 0 {
		errs = append(errs, "analysis.min_part_area_m2 must be >= 0")
	}
	if c.Analysis.Workers < 1 || c.Analysis.Workers > 64 {
		errs = append(errs, "analysis.workers must be between 1 and 64")
	}
	if c.Turbine.TipHeightM < 0 || c.Turbine.RotorRadiusM < 0 {
		errs = append(errs, "turbine dimensions must be >= 0")
	}
	if err := c.Setbacks().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}

func (c *Config) validateLayout() []string {
	var errs []string
	if c.Layout.MinSpacingM <= 0 {
		errs = append(errs, "layout.min_spacing_m must be > 0")
	}
	if c.Layout.Workers < 1 {
		errs = append(errs, "layout.workers must be >= 1")
	}
	return errs
}

// Overrides returns the explicit setback distances.
func (s SetbackConfig) Overrides() setback.Overrides {
	return setback.Overrides{
		ResidenceM:      s.ResidenceM,
		InfrastructureM: s.InfrastructureM,
		UtilityM:        s.UtilityM,
		WaterM:          s.WaterM,
		DefaultM:        s.DefaultM,
	}
}

// TurbineSpec returns the configured turbine dimensions.
func (c *Config) TurbineSpec() setback.TurbineSpec {
	return setback.TurbineSpec{TipHeightM: c.Turbine.TipHeightM, RotorRadiusM: c.Turbine.RotorRadiusM}
}

// Setbacks resolves the configured distances against the turbine, without
// reading setback.file.
func (c *Config) Setbacks() setback.Config {
	return setback.Resolve(c.Setback.Overrides(), c.TurbineSpec())
}

// ResolveSetbacks resolves the setback distances for a run. Values from
// setback.file win over config values; its turbine replaces the configured
// one when it sets any dimension.
func (c *Config) ResolveSetbacks() (setback.Config, error) {
	if c.Setback.File == "" {
		cfg := c.Setbacks()
		return cfg, cfg.Validate()
	}

	f, err := setback.LoadFile(c.Setback.File)
	if err != nil {
		return setback.Config{}, err
	}
	turbine := c.TurbineSpec()
	if f.Turbine.TipHeightM > 0 || f.Turbine.RotorRadiusM > 0 {
		turbine = f.Turbine
	}
	o := c.Setback.Overrides()
	pick := func(file, cfg *float64) *float64 {
		if file != nil {
			return file
		}
		return cfg
	}
	o.ResidenceM = pick(f.Setbacks.ResidenceM, o.ResidenceM)
	o.InfrastructureM = pick(f.Setbacks.InfrastructureM, o.InfrastructureM)
	o.UtilityM = pick(f.Setbacks.UtilityM, o.UtilityM)
	o.WaterM = pick(f.Setbacks.WaterM, o.WaterM)
	o.DefaultM = pick(f.Setbacks.DefaultM, o.DefaultM)

	cfg := setback.Resolve(o, turbine)
	return cfg, cfg.Validate()
}

// Options returns the exclusion pipeline options.
func (a AnalysisConfig) Options() exclusion.Options {
	return exclusion.Options{
		SimplifyToleranceM: a.SimplifyToleranceM,
		MinPartAreaM2:      a.MinPartAreaM2,
		Workers:            a.Workers,
	}
}

// Options returns the layout validation options.
func (l LayoutConfig) Options() layout.Options {
	return layout.Options{MinSpacingM: l.MinSpacingM, Workers: l.Workers}
}

// Client returns an Overpass client for these settings.
func (o OverpassConfig) Client() *overpass.Client {
	return overpass.NewClient(overpass.Options{
		URL:        o.URL,
		Timeout:    time.Duration(o.TimeoutSecs) * time.Second,
		MaxRetries: o.MaxRetries,
		RateLimit:  o.RateLimit,
	})
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
