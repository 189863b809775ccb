// Copyright 2026 pricer Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/alugaai/pricer/base/log"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	SQLitePrefix     = "sqlite://"
	MySQLPrefix      = "mysql://"
	PostgresPrefix   = "postgres://"
	PostgreSQLPrefix = "postgresql://"
)

// Config is the configuration for the engine.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Model     ModelConfig     `mapstructure:"model"`
	Trainer   TrainerConfig   `mapstructure:"trainer"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Server    ServerConfig    `mapstructure:"server"`
	S3        S3Config        `mapstructure:"s3"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	Azure     AzureBlobConfig `mapstructure:"azure"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// DatabaseConfig is the configuration for the listing store.
type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store" validate:"required,data_store"`
	TablePrefix string `mapstructure:"table_prefix"`
}

// DatasetConfig locates raw listings, processed datasets and sample candidates.
type DatasetConfig struct {
	RawPath          string   `mapstructure:"raw_path"`
	SearchPaths      []string `mapstructure:"search_paths"`
	ProcessedDir     string   `mapstructure:"processed_dir" validate:"required"`
	ProcessedPrefix  string   `mapstructure:"processed_prefix" validate:"required"`
	SampleCandidates string   `mapstructure:"sample_candidates"`
}

// ModelConfig is the configuration of the serving model.
type ModelConfig struct {
	CacheDir        string `mapstructure:"cache_dir" validate:"required"`
	SharedStore     string `mapstructure:"shared_store"`
	LoadRetries     uint   `mapstructure:"load_retries" validate:"gte=1"`
	NumTrees        int    `mapstructure:"num_trees" validate:"gt=0"`
	MaxDepth        int    `mapstructure:"max_depth" validate:"gte=0"`
	MinSamplesSplit int    `mapstructure:"min_samples_split" validate:"gte=2"`
	MinSamplesLeaf  int    `mapstructure:"min_samples_leaf" validate:"gte=1"`
	RandomState     int64  `mapstructure:"random_state"`
	FitJobs         int    `mapstructure:"fit_jobs" validate:"gte=0"`
}

// TrainerConfig is the configuration of the offline training pipeline.
type TrainerConfig struct {
	OutputDir       string     `mapstructure:"output_dir"`
	NumTrees        int        `mapstructure:"num_trees" validate:"gt=0"`
	MaxDepth        int        `mapstructure:"max_depth" validate:"gte=0"`
	MinSamplesSplit int        `mapstructure:"min_samples_split" validate:"gte=2"`
	MinSamplesLeaf  int        `mapstructure:"min_samples_leaf" validate:"gte=1"`
	TestRatio       float64    `mapstructure:"test_ratio" validate:"gt=0,lt=1"`
	RandomState     int64      `mapstructure:"random_state"`
	CVFolds         int        `mapstructure:"cv_folds" validate:"gte=2"`
	FitJobs         int        `mapstructure:"fit_jobs" validate:"gte=0"`
	Grid            GridConfig `mapstructure:"grid"`
}

// GridConfig is the search space of the grid search.
type GridConfig struct {
	NumTrees        []int `mapstructure:"num_trees" validate:"required,dive,gt=0"`
	MaxDepth        []int `mapstructure:"max_depth" validate:"required,dive,gte=0"`
	MinSamplesSplit []int `mapstructure:"min_samples_split" validate:"required,dive,gte=2"`
	MinSamplesLeaf  []int `mapstructure:"min_samples_leaf" validate:"required,dive,gte=1"`
}

// RecommendConfig is the configuration of the recommender. Filter is an
// optional boolean expression over `candidate` that every sourced candidate must satisfy.
type RecommendConfig struct {
	Filter string `mapstructure:"filter"`
}

// AuditConfig is the configuration of the prediction audit log.
type AuditConfig struct {
	Path       string `mapstructure:"path" validate:"required"`
	BufferSize int    `mapstructure:"buffer_size" validate:"gt=0"`
}

// ServerConfig is the configuration of the REST server.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"gte=0"`
	APIKey       string        `mapstructure:"api_key"`
	AdminAPIKey  string        `mapstructure:"admin_api_key"`
	DefaultN     int           `mapstructure:"default_n" validate:"gt=0"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// S3Config is the connection to an S3 compatible blob store.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// GCSConfig is the connection to Google Cloud Storage.
type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

// AzureBlobConfig is the connection to Azure Blob Storage.
type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
}

// TracingConfig is the configuration of the span exporter.
type TracingConfig struct {
	EnableTracing     bool    `mapstructure:"enable_tracing"`
	Exporter          string  `mapstructure:"exporter" validate:"oneof=zipkin otlp otlphttp"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	Sampler           string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio             float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

// NewTracerProvider creates a tracer provider exporting spans to the collector.
// A no-op provider is returned when tracing is disabled.
func (config *TracingConfig) NewTracerProvider() (trace.TracerProvider, error) {
	if !config.EnableTracing {
		return noop.NewTracerProvider(), nil
	}

	var exporter tracesdk.SpanExporter
	var err error
	switch config.Exporter {
	case "zipkin":
		exporter, err = zipkin.New(config.CollectorEndpoint)
	case "otlp":
		client := otlptracegrpc.NewClient(otlptracegrpc.WithInsecure(), otlptracegrpc.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.Background(), client)
	case "otlphttp":
		client := otlptracehttp.NewClient(otlptracehttp.WithInsecure(), otlptracehttp.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.Background(), client)
	default:
		return nil, errors.NotSupportedf("exporter %s", config.Exporter)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	var sampler tracesdk.Sampler
	switch config.Sampler {
	case "always":
		sampler = tracesdk.AlwaysSample()
	case "never":
		sampler = tracesdk.NeverSample()
	case "ratio":
		sampler = tracesdk.TraceIDRatioBased(config.Ratio)
	default:
		return nil, errors.NotSupportedf("sampler %s", config.Sampler)
	}

	return tracesdk.NewTracerProvider(
		tracesdk.WithSampler(sampler),
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("pricer"),
		)),
	), nil
}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "sqlite://data/pricer.db",
		},
		Dataset: DatasetConfig{
			SearchPaths:      []string{"data/raw/listings.json"},
			ProcessedDir:     "data/processed",
			ProcessedPrefix:  "listings",
			SampleCandidates: "data/sample_properties.csv",
		},
		Model: ModelConfig{
			CacheDir:        "model_store",
			LoadRetries:     3,
			NumTrees:        180,
			MaxDepth:        0,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			RandomState:     42,
		},
		Trainer: TrainerConfig{
			NumTrees:        300,
			MaxDepth:        0,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			TestRatio:       0.2,
			RandomState:     42,
			CVFolds:         5,
			Grid: GridConfig{
				NumTrees:        []int{200, 400, 600},
				MaxDepth:        []int{0, 10, 20, 30},
				MinSamplesSplit: []int{2, 5, 10},
				MinSamplesLeaf:  []int{1, 2, 4},
			},
		},
		Audit: AuditConfig{
			Path:       "logs/predictions.log",
			BufferSize: 1024,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8087,
			DefaultN:     10,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [database]
	viper.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	// [dataset]
	viper.SetDefault("dataset.search_paths", defaultConfig.Dataset.SearchPaths)
	viper.SetDefault("dataset.processed_dir", defaultConfig.Dataset.ProcessedDir)
	viper.SetDefault("dataset.processed_prefix", defaultConfig.Dataset.ProcessedPrefix)
	viper.SetDefault("dataset.sample_candidates", defaultConfig.Dataset.SampleCandidates)
	// [model]
	viper.SetDefault("model.cache_dir", defaultConfig.Model.CacheDir)
	viper.SetDefault("model.load_retries", defaultConfig.Model.LoadRetries)
	viper.SetDefault("model.num_trees", defaultConfig.Model.NumTrees)
	viper.SetDefault("model.max_depth", defaultConfig.Model.MaxDepth)
	viper.SetDefault("model.min_samples_split", defaultConfig.Model.MinSamplesSplit)
	viper.SetDefault("model.min_samples_leaf", defaultConfig.Model.MinSamplesLeaf)
	viper.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	// [trainer]
	viper.SetDefault("trainer.num_trees", defaultConfig.Trainer.NumTrees)
	viper.SetDefault("trainer.max_depth", defaultConfig.Trainer.MaxDepth)
	viper.SetDefault("trainer.min_samples_split", defaultConfig.Trainer.MinSamplesSplit)
	viper.SetDefault("trainer.min_samples_leaf", defaultConfig.Trainer.MinSamplesLeaf)
	viper.SetDefault("trainer.test_ratio", defaultConfig.Trainer.TestRatio)
	viper.SetDefault("trainer.random_state", defaultConfig.Trainer.RandomState)
	viper.SetDefault("trainer.cv_folds", defaultConfig.Trainer.CVFolds)
	// [trainer.grid]
	viper.SetDefault("trainer.grid.num_trees", defaultConfig.Trainer.Grid.NumTrees)
	viper.SetDefault("trainer.grid.max_depth", defaultConfig.Trainer.Grid.MaxDepth)
	viper.SetDefault("trainer.grid.min_samples_split", defaultConfig.Trainer.Grid.MinSamplesSplit)
	viper.SetDefault("trainer.grid.min_samples_leaf", defaultConfig.Trainer.Grid.MinSamplesLeaf)
	// [audit]
	viper.SetDefault("audit.path", defaultConfig.Audit.Path)
	viper.SetDefault("audit.buffer_size", defaultConfig.Audit.BufferSize)
	// [server]
	viper.SetDefault("server.host", defaultConfig.Server.Host)
	viper.SetDefault("server.port", defaultConfig.Server.Port)
	viper.SetDefault("server.default_n", defaultConfig.Server.DefaultN)
	viper.SetDefault("server.read_timeout", defaultConfig.Server.ReadTimeout)
	viper.SetDefault("server.write_timeout", defaultConfig.Server.WriteTimeout)
	// [tracing]
	viper.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	viper.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	viper.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from toml file. Environment variables and a
// .env file in the working directory override file values.
func LoadConfig(path string) (*Config, error) {
	// load .env if present
	if _, err := os.Stat(".env"); err == nil {
		if err = godotenv.Load(".env"); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// set default config
	setDefault()

	// bind environment bindings
	bindings := []configBinding{
		{"database.data_store", "PRICER_DATA_STORE"},
		{"database.table_prefix", "PRICER_TABLE_PREFIX"},
		{"dataset.raw_path", "PRICER_RAW_DATASET"},
		{"dataset.processed_dir", "PRICER_PROCESSED_DIR"},
		{"model.cache_dir", "PRICER_MODEL_CACHE_DIR"},
		{"model.shared_store", "PRICER_SHARED_STORE"},
		{"trainer.output_dir", "PRICER_TRAINER_OUTPUT_DIR"},
		{"recommend.filter", "PRICER_RECOMMEND_FILTER"},
		{"audit.path", "PRICER_AUDIT_PATH"},
		{"server.api_key", "PRICER_API_KEY"},
		{"server.admin_api_key", "PRICER_ADMIN_API_KEY"},
		{"s3.endpoint", "S3_ENDPOINT"},
		{"s3.access_key_id", "S3_ACCESS_KEY_ID"},
		{"s3.secret_access_key", "S3_SECRET_ACCESS_KEY"},
		{"gcs.credentials_file", "GCS_CREDENTIALS_FILE"},
		{"azure.connection_string", "AZURE_STORAGE_CONNECTION_STRING"},
		{"azure.account_name", "AZURE_STORAGE_ACCOUNT_NAME"},
		{"azure.account_key", "AZURE_STORAGE_ACCOUNT_KEY"},
		{"tracing.collector_endpoint", "PRICER_COLLECTOR_ENDPOINT"},
	}
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			log.Logger().Fatal("failed to bind a Viper key to a ENV variable", zap.Error(err))
		}
	}

	// load config file
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// unmarshal config file
	var conf Config
	if err := viper.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if conf.Trainer.OutputDir == "" {
		conf.Trainer.OutputDir = conf.Model.CacheDir
	}

	// validate config file
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks the configuration.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
		prefixes := []string{SQLitePrefix, MySQLPrefix, PostgresPrefix, PostgreSQLPrefix}
		return lo.ContainsBy(prefixes, func(prefix string) bool {
			return strings.HasPrefix(fl.Field().String(), prefix)
		})
	}); err != nil {
		return errors.Trace(err)
	}
	return validate.Struct(config)
}
