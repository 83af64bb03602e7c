// Package config loads and validates the pipeline configuration: the
// read/multiprocessing/shard options that wire up a lazy dataset engine
// run (spec §6, SPEC_FULL.md §10).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/prefetch"
)

// ErrSchemaValidation wraps every gojsonschema validation failure raised
// at wire-up (SPEC_FULL.md §10: "this is where spec.md §7's Configuration
// error class is raised for the outer layer").
var ErrSchemaValidation = errors.New("config: schema validation failed")

// Default configuration values.
const (
	defaultPrefetchBufferSize   = 8
	defaultNumThreads           = 2
	defaultNumWorkers           = 1
	defaultPerWorkerBufferSize  = 4
	defaultWorkerStartMethod    = "goroutine"
	defaultRecordIntervalString = "3s"
)

// Config is the root pipeline configuration, loaded from YAML plus
// environment overrides and validated against configSchema before any
// engine component sees it.
type Config struct {
	Read            ReadConfig            `mapstructure:"read"`
	Multiprocessing MultiprocessingConfig `mapstructure:"multiprocessing"`
	Shard           ShardConfig           `mapstructure:"shard"`
}

// ReadConfig mirrors prefetch.ReadOptions for YAML/env loading.
type ReadConfig struct {
	PrefetchBufferSize int `mapstructure:"prefetch_buffer_size"`
	NumThreads         int `mapstructure:"num_threads"`
}

// MultiprocessingConfig mirrors prefetch.MultiprocessingOptions for
// YAML/env loading.
type MultiprocessingConfig struct {
	WorkerStartMethod   string        `mapstructure:"worker_start_method"`
	NumWorkers          int           `mapstructure:"num_workers"`
	PerWorkerBufferSize int           `mapstructure:"per_worker_buffer_size"`
	RecordInterval      time.Duration `mapstructure:"record_interval"`
}

// ShardConfig mirrors dataset.NewShard's parameters for YAML/env loading.
type ShardConfig struct {
	ShardIndex    int  `mapstructure:"shard_index"`
	ShardCount    int  `mapstructure:"shard_count"`
	DropRemainder bool `mapstructure:"drop_remainder"`
}

// Load reads configuration from configPath (or the default search path
// when empty) plus LAZYGRAIN_-prefixed environment overrides, then
// validates the result against the fixed JSON Schema.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("lazygrain")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/lazygrain")
	}

	viperCfg.SetEnvPrefix("LAZYGRAIN")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateSchema(viperCfg.AllSettings()); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("read.prefetch_buffer_size", defaultPrefetchBufferSize)
	viperCfg.SetDefault("read.num_threads", defaultNumThreads)

	viperCfg.SetDefault("multiprocessing.num_workers", defaultNumWorkers)
	viperCfg.SetDefault("multiprocessing.per_worker_buffer_size", defaultPerWorkerBufferSize)
	viperCfg.SetDefault("multiprocessing.worker_start_method", defaultWorkerStartMethod)
	viperCfg.SetDefault("multiprocessing.record_interval", defaultRecordIntervalString)

	viperCfg.SetDefault("shard.shard_index", 0)
	viperCfg.SetDefault("shard.shard_count", 1)
	viperCfg.SetDefault("shard.drop_remainder", false)
}

// validateSchema checks the raw, as-loaded settings map against
// configSchema using xeipuuv/gojsonschema, independent of the
// mapstructure-decoded Config (a schema failure must be caught even when
// decoding would silently zero-value a malformed field).
func validateSchema(settings map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	docLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaValidation, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}

		return fmt.Errorf("%w: %s", ErrSchemaValidation, strings.Join(msgs, "; "))
	}

	return nil
}

// ToReadOptions converts the loaded configuration into prefetch.ReadOptions.
func (c *Config) ToReadOptions() prefetch.ReadOptions {
	return prefetch.ReadOptions{
		PrefetchBufferSize: c.Read.PrefetchBufferSize,
		NumThreads:         c.Read.NumThreads,
	}
}

// ToMultiprocessingOptions converts the loaded configuration into
// prefetch.MultiprocessingOptions.
func (c *Config) ToMultiprocessingOptions() prefetch.MultiprocessingOptions {
	return prefetch.MultiprocessingOptions{
		NumWorkers:          c.Multiprocessing.NumWorkers,
		PerWorkerBufferSize: c.Multiprocessing.PerWorkerBufferSize,
		WorkerStartMethod:   c.Multiprocessing.WorkerStartMethod,
		RecordInterval:      c.Multiprocessing.RecordInterval,
	}
}

// ShardOptions bundles the shard split parameters dataset.NewShard takes
// positionally; it has no counterpart type in pkg/dataset because
// NewShard's signature predates this config layer (SPEC_FULL.md §10).
type ShardOptions struct {
	ShardIndex    int
	ShardCount    int
	DropRemainder bool
}

// ToShardOptions converts the loaded configuration into ShardOptions.
func (c *Config) ToShardOptions() ShardOptions {
	return ShardOptions{
		ShardIndex:    c.Shard.ShardIndex,
		ShardCount:    c.Shard.ShardCount,
		DropRemainder: c.Shard.DropRemainder,
	}
}

// ApplyShard shards parent according to the loaded configuration.
func (c *Config) ApplyShard(parent dataset.MapDataset) dataset.MapDataset {
	opts := c.ToShardOptions()

	return dataset.NewShard(parent, opts.ShardIndex, opts.ShardCount, opts.DropRemainder)
}
