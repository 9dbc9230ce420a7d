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
	Port    string `mapstructure:"PORT"`
	TempDir string `mapstructure:"TEMP_DIR"`

	RedisAddr string        `mapstructure:"REDIS_ADDR"`
	TaskTTL   time.Duration `mapstructure:"TASK_TTL"`

	MaxUploadSize int64 `mapstructure:"MAX_UPLOAD_SIZE"`
	MaxImageSize  int64 `mapstructure:"MAX_IMAGE_SIZE"`

	WorkerCount int           `mapstructure:"WORKER_COUNT"`
	QueueSize   int           `mapstructure:"QUEUE_SIZE"`
	QueueWait   time.Duration `mapstructure:"QUEUE_WAIT"`
	TaskTimeout time.Duration `mapstructure:"TASK_TIMEOUT"`

	SampleInterval      time.Duration `mapstructure:"SAMPLE_INTERVAL"`
	MinSmileScore       float64       `mapstructure:"MIN_SMILE_SCORE"`
	TopK                int           `mapstructure:"TOP_K"`
	DiversityWindow     time.Duration `mapstructure:"DIVERSITY_WINDOW"`
	ProgressEvery       int           `mapstructure:"PROGRESS_EVERY"`
	ScoringFailureLimit int           `mapstructure:"SCORING_FAILURE_LIMIT"`

	ScorerURL  string `mapstructure:"SCORER_URL"`
	FFmpegBin  string `mapstructure:"FFMPEG_BIN"`
	FFprobeBin string `mapstructure:"FFPROBE_BIN"`

	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
}

// stringToDurationHookFunc parses Go duration strings from env/config values.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc parses human-readable sizes ("5MB") into int64 bytes.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// Not a size string, let other parsers handle it.
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	vp.SetDefault("PORT", "8080")
	vp.SetDefault("TEMP_DIR", "/tmp/smileclip/uploads")
	vp.SetDefault("REDIS_ADDR", "localhost:6379")
	vp.SetDefault("TASK_TTL", "24h")
	vp.SetDefault("MAX_UPLOAD_SIZE", "200MB")
	vp.SetDefault("MAX_IMAGE_SIZE", "5MB")
	vp.SetDefault("WORKER_COUNT", 2)
	vp.SetDefault("QUEUE_SIZE", 16)
	vp.SetDefault("QUEUE_WAIT", "2s")
	vp.SetDefault("TASK_TIMEOUT", "10m")
	vp.SetDefault("SAMPLE_INTERVAL", "200ms")
	vp.SetDefault("MIN_SMILE_SCORE", 0.6)
	vp.SetDefault("TOP_K", 5)
	vp.SetDefault("DIVERSITY_WINDOW", "1s")
	vp.SetDefault("PROGRESS_EVERY", 10)
	vp.SetDefault("SCORING_FAILURE_LIMIT", 5)
	vp.SetDefault("SCORER_URL", "http://localhost:8500/score")
	vp.SetDefault("FFMPEG_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("THROTTLE_CPU", 0.0)
	vp.SetDefault("THROTTLE_FREEMEM", "0B")
	vp.SetDefault("THROTTLE_FREEDISK", "0B")
	vp.SetDefault("KAFKA_BROKERS", "")
	vp.SetDefault("KAFKA_TOPIC", "smile_task_events")
	vp.SetDefault("DATABASE_URL", "")

	vp.SetConfigName("smileclip_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/smileclip/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("SMILECLIP")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
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
