package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TechFutureAIFPT/hr-support/internal/ai/gemini"
	"github.com/TechFutureAIFPT/hr-support/internal/extract"
	"github.com/TechFutureAIFPT/hr-support/internal/filtering"
	"github.com/TechFutureAIFPT/hr-support/internal/lock"
	"github.com/TechFutureAIFPT/hr-support/internal/orchestrator"
	"github.com/TechFutureAIFPT/hr-support/internal/server"
	"github.com/TechFutureAIFPT/hr-support/internal/source"
)

const (
	app       = "hr-support"
	envPrefix = "HR_SUPPORT"
)

type Config struct {
	Model        gemini.Config       `mapstructure:"model"`
	Credentials  CredentialsConfig   `mapstructure:"credentials"`
	Orchestrator orchestrator.Config `mapstructure:"orchestrator"`
	Extraction   ExtractionConfig    `mapstructure:"extraction"`
	Cache        CacheConfig         `mapstructure:"cache"`
	Lock         lock.Config         `mapstructure:"lock"`
	Postgres     PostgresConfig      `mapstructure:"postgres"`
	S3           source.S3Config     `mapstructure:"s3"`
	Server       server.Config       `mapstructure:"server"`
	Filters      filtering.Config    `mapstructure:"filters"`
	// Scoring is the path of the criteria and hard filter YAML file.
	Scoring  string `mapstructure:"scoring"`
	Language string `mapstructure:"language"`
}

type CredentialsConfig struct {
	Keys      []string `mapstructure:"keys"`
	Files     []string `mapstructure:"files"`
	EnvPrefix string   `mapstructure:"env-prefix"`
}

type ExtractionConfig struct {
	extract.Options `mapstructure:",squash"`
	Pdftoppm        string   `mapstructure:"pdftoppm"`
	OCRLanguages    []string `mapstructure:"ocr-languages"`
}

type CacheConfig struct {
	MaxEntries int `mapstructure:"max-entries"`
}

type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
	Channel string `mapstructure:"channel"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "hr-support extracts CV text and ranks candidates against a job description with Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hr-support.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))

	s3 := s3Flags()
	rootCmd.PersistentFlags().AddFlagSet(s3)
	bindFlagSet(viper.GetViper(), s3)

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.model", "gemini-2.5-flash")
	v.SetDefault("model.backend", gemini.BackendGemini)
	v.SetDefault("model.project", "")
	v.SetDefault("model.location", "")
	v.SetDefault("model.max-log-length", 200)
	v.SetDefault("credentials.keys", []string{})
	v.SetDefault("credentials.files", []string{})
	v.SetDefault("credentials.env-prefix", "GEMINI_API_KEY_")
	v.SetDefault("orchestrator.concurrency", orchestrator.DefaultConcurrency)
	v.SetDefault("extraction.max-file-size", extract.DefaultMaxFileSize)
	v.SetDefault("extraction.min-text-length", extract.DefaultMinTextLength)
	v.SetDefault("extraction.probe-pages", extract.DefaultProbePages)
	v.SetDefault("extraction.max-ocr-pages", extract.DefaultMaxOCRPages)
	v.SetDefault("extraction.render-scale", extract.DefaultRenderScale)
	v.SetDefault("extraction.max-image-width", extract.DefaultMaxImageWidth)
	v.SetDefault("extraction.max-image-height", extract.DefaultMaxImageHeight)
	v.SetDefault("extraction.pdftoppm", "pdftoppm")
	v.SetDefault("extraction.ocr-languages", []string{"eng", "vie"})
	v.SetDefault("cache.max-entries", 512)
	v.SetDefault("lock.name", lock.DefaultName)
	v.SetDefault("lock.ttl", lock.DefaultTTL)
	v.SetDefault("lock.heartbeat", lock.DefaultHeartbeat)
	v.SetDefault("lock.medium", mediumFile)
	v.SetDefault("lock.dir", lock.DefaultDir())
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.dsn-file", "")
	v.SetDefault("postgres.channel", lock.DefaultChannel)
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access-key", "")
	v.SetDefault("s3.secret-key", "")
	v.SetDefault("s3.path-style", false)
	v.SetDefault("server.addr", server.DefaultAddr)
	v.SetDefault("server.allowed-origins", []string{})
	v.SetDefault("server.max-upload-size", server.DefaultMaxUploadSize)
	v.SetDefault("server.language", "")
	v.SetDefault("filters.min-score", 0)
	v.SetDefault("filters.hide-failed", false)
	v.SetDefault("filters.passed-only", false)
	v.SetDefault("filters.exclude-file", "")
	v.SetDefault("scoring", "")
	v.SetDefault("language", "")
}

func initConfig() {
	// Numbered GEMINI_API_KEY_n variables usually live in .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Without an explicit --config every setting has a default.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
