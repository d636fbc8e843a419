// Package config loads map-core settings from an optional YAML file with
// MAPCORE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/sidebar"
)

const envPrefix = "MAPCORE"

type Config struct {
	HTTP       HTTPConfig            `mapstructure:"http"`
	Log        LogConfig             `mapstructure:"log"`
	Database   DatabaseConfig        `mapstructure:"database"`
	Redis      RedisConfig           `mapstructure:"redis"`
	Kafka      KafkaConfig           `mapstructure:"kafka"`
	GTFSRT     GTFSRTConfig          `mapstructure:"gtfsrt"`
	Directory  DirectoryConfig       `mapstructure:"directory"`
	Map        MapConfig             `mapstructure:"map"`
	Categories []category.CustomSpec `mapstructure:"categories"`
	// CategoriesFile optionally points at a standalone YAML file with a
	// top-level categories list, appended after Categories.
	CategoriesFile string `mapstructure:"categories_file"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	LayoutTTL time.Duration `mapstructure:"layout_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type GTFSRTConfig struct {
	URL          string        `mapstructure:"url"`
	Interval     time.Duration `mapstructure:"interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

type DirectoryConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type MapConfig struct {
	ClusteringDisabled bool          `mapstructure:"clustering_disabled"`
	HideVehicles       bool          `mapstructure:"hide_vehicles"`
	RejectStaleDeltas  bool          `mapstructure:"reject_stale_deltas"`
	InitialCategory    string        `mapstructure:"initial_category"`
	RightPanelExpanded bool          `mapstructure:"right_panel_expanded"`
	LayoutProfile      string        `mapstructure:"layout_profile"`
	RelayoutFrame      time.Duration `mapstructure:"relayout_frame"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can see env-only
// overrides during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8081")
	v.SetDefault("http.request_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.layout_ttl", time.Duration(0))
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")
	v.SetDefault("kafka.group_id", "map-core")
	v.SetDefault("gtfsrt.url", "")
	v.SetDefault("gtfsrt.interval", 15*time.Second)
	v.SetDefault("gtfsrt.fetch_timeout", 10*time.Second)
	v.SetDefault("directory.interval", 5*time.Minute)
	v.SetDefault("map.clustering_disabled", false)
	v.SetDefault("map.hide_vehicles", false)
	v.SetDefault("map.reject_stale_deltas", false)
	v.SetDefault("map.initial_category", "")
	v.SetDefault("map.right_panel_expanded", false)
	v.SetDefault("map.layout_profile", "default")
	v.SetDefault("map.relayout_frame", 16*time.Millisecond)
	v.SetDefault("categories_file", "")
}

// Load reads the YAML file at path and applies env overrides. An empty path
// loads from the environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}
	return finalize(v)
}

func LoadFromEnv() (*Config, error) {
	return Load("")
}

func finalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	if cfg.CategoriesFile != "" {
		extra, err := category.LoadCustomFile(cfg.CategoriesFile)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		cfg.Categories = append(cfg.Categories, extra...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// splitList accepts comma-separated env values as well as YAML lists.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	if c.GTFSRT.URL != "" && c.GTFSRT.Interval <= 0 {
		errs = append(errs, errors.New("gtfsrt.interval must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if c.Directory.Interval <= 0 {
		errs = append(errs, errors.New("directory.interval must be positive"))
	}
	if c.Map.InitialCategory != "" {
		k, ok := category.Parse(c.Map.InitialCategory)
		if !ok || !k.IsPartner() {
			errs = append(errs, fmt.Errorf("map.initial_category %q is not a partner category", c.Map.InitialCategory))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) Taxonomy() *category.Taxonomy {
	return category.NewTaxonomy(c.Categories)
}

// InitialSidebar is the sidebar state the engine starts in.
func (c *Config) InitialSidebar() sidebar.State {
	s := sidebar.State{RightExpanded: c.Map.RightPanelExpanded}
	if k, ok := category.Parse(c.Map.InitialCategory); ok {
		s.LeftActive = k
	}
	return s
}
