package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Port       string `mapstructure:"PORT"`
	BaseURL    string `mapstructure:"BASE"`
	AuthEnable bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey    string `mapstructure:"AUTH_KEY"`

	FFBin       string        `mapstructure:"FF_BIN"`
	FFProbeBin  string        `mapstructure:"FFPROBE_BIN"`
	FFTimeout   time.Duration `mapstructure:"FF_TIMEOUT"`
	FFExtraArgs string        `mapstructure:"FF_EXTRA_ARGS"`

	StoreEndpoint  string        `mapstructure:"STORE_ENDPOINT"`
	StoreAccessKey string        `mapstructure:"STORE_ACCESS_KEY"`
	StoreSecretKey string        `mapstructure:"STORE_SECRET_KEY"`
	StoreBucket    string        `mapstructure:"STORE_BUCKET"`
	StoreUseSSL    bool          `mapstructure:"STORE_USE_SSL"`
	SignedURLTTL   time.Duration `mapstructure:"SIGNED_URL_TTL"`

	AIBaseURL     string        `mapstructure:"AI_BASE_URL"`
	AIToken       string        `mapstructure:"AI_TOKEN"`
	AIModel       string        `mapstructure:"AI_MODEL"`
	AIMaxAttempts int           `mapstructure:"AI_MAX_ATTEMPTS"`
	AIBackoffMin  time.Duration `mapstructure:"AI_BACKOFF_MIN"`
	AIBackoffMax  time.Duration `mapstructure:"AI_BACKOFF_MAX"`

	FaceRecURL string `mapstructure:"FACEREC_URL"`

	JobDBPath      string `mapstructure:"JOB_DB_PATH"`
	SegmentSeconds int    `mapstructure:"SEGMENT_SECONDS"`
	MaxConcurrency int    `mapstructure:"MAX_CONCURRENCY"`

	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	TempDir string
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to time.Duration.
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to int64s for byte sizes.
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")

	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("FF_TIMEOUT", "15m")
	vp.SetDefault("FF_EXTRA_ARGS", "")

	vp.SetDefault("STORE_ENDPOINT", "localhost:9000")
	vp.SetDefault("STORE_ACCESS_KEY", "")
	vp.SetDefault("STORE_SECRET_KEY", "")
	vp.SetDefault("STORE_BUCKET", "clipforge")
	vp.SetDefault("STORE_USE_SSL", false)
	vp.SetDefault("SIGNED_URL_TTL", "1h")

	vp.SetDefault("AI_BASE_URL", "")
	vp.SetDefault("AI_TOKEN", "")
	vp.SetDefault("AI_MODEL", "describer-large")
	vp.SetDefault("AI_MAX_ATTEMPTS", 5)
	vp.SetDefault("AI_BACKOFF_MIN", "5s")
	vp.SetDefault("AI_BACKOFF_MAX", "60s")

	vp.SetDefault("FACEREC_URL", "")

	vp.SetDefault("JOB_DB_PATH", "./clipforge_jobs.db")
	vp.SetDefault("SEGMENT_SECONDS", 600)
	vp.SetDefault("MAX_CONCURRENCY", 2)

	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "500MB")

	// Load from config file
	vp.SetConfigName("clipforge_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/clipforge/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("CLIPFORGE")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Unmarshal the config, providing our custom composed hooks.
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
