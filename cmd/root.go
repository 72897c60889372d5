package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "job-digest"
)

type Config struct {
	Search      SearchConfig    `mapstructure:"search"`
	Companies   CompaniesConfig `mapstructure:"companies"`
	Criteria    CriteriaConfig  `mapstructure:"criteria"`
	Profile     string          `mapstructure:"profile"`
	ProfileFile string          `mapstructure:"profile-file"`
	Seen        SeenConfig      `mapstructure:"seen"`
	AI          AIConfig        `mapstructure:"ai"`
	Email       EmailConfig     `mapstructure:"email"`
	OutputFile  string          `mapstructure:"output-file" validate:"required"`
	Schedule    ScheduleConfig  `mapstructure:"schedule"`
}

type SearchConfig struct {
	Location       string        `mapstructure:"location"`
	IncludeRemote  bool          `mapstructure:"include-remote"`
	TitleGroups    []string      `mapstructure:"title-groups" validate:"min=1"`
	IndustryTerms  string        `mapstructure:"industry-terms"`
	CareerPages    bool          `mapstructure:"career-pages"`
	CareerKeywords []string      `mapstructure:"career-keywords"`
	CareerSites    []CareerSite  `mapstructure:"career-sites" validate:"dive"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxLogLength   int           `mapstructure:"max-log-length"`
	SerpAPI        APIConfig     `mapstructure:"serpapi"`
	JSearch        JSearchConfig `mapstructure:"jsearch"`
}

// CareerSite is a firm name and the site-restricted query for its career pages.
type CareerSite struct {
	Firm  string `mapstructure:"firm" validate:"required"`
	Query string `mapstructure:"query" validate:"required"`
}

type APIConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	URL        string `mapstructure:"url" validate:"omitempty,url"`
}

type JSearchConfig struct {
	APIConfig `mapstructure:",squash"`
	Host      string `mapstructure:"host"`
}

type CompaniesConfig struct {
	Priority []string `mapstructure:"priority"`
	Exclude  []string `mapstructure:"exclude"`
}

// CriteriaConfig only feeds the digest footer.
type CriteriaConfig struct {
	Titles      []string `mapstructure:"titles"`
	Industries  []string `mapstructure:"industries"`
	SalaryFloor int      `mapstructure:"salary-floor" validate:"gte=0"`
}

type SeenConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=file redis"`
	File          string `mapstructure:"file" validate:"required_if=Backend file"`
	RedisURL      string `mapstructure:"redis-url" json:"-" validate:"required_if=Backend redis"`
	RedisKey      string `mapstructure:"redis-key"`
	RetentionDays int    `mapstructure:"retention-days" validate:"min=1"`
}

type AIConfig struct {
	Enabled   bool         `mapstructure:"enabled"`
	Provider  string       `mapstructure:"provider" validate:"oneof=gemini"`
	BatchSize int          `mapstructure:"batch-size" validate:"min=1,max=20"`
	Depth     string       `mapstructure:"depth" validate:"oneof=standard rich"`
	Gemini    GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type EmailConfig struct {
	To     string       `mapstructure:"to" validate:"omitempty,email"`
	From   string       `mapstructure:"from" validate:"omitempty,email"`
	Resend ResendConfig `mapstructure:"resend"`
}

type ResendConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type ScheduleConfig struct {
	Cron     string `mapstructure:"cron" validate:"required"`
	Timezone string `mapstructure:"timezone"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-digest searches job boards daily, scores new listings and emails a digest",
	}

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"search.serpapi.api-key": "SERPAPI_KEY",
		"search.jsearch.api-key": "RAPIDAPI_KEY",
		"search.career-pages":    "SCAN_CAREER_PAGES",
		"ai.gemini.api-key":      "GEMINI_API_KEY",
		"email.resend.api-key":   "RESEND_API_KEY",
		"email.to":               "EMAIL_TO",
		"email.from":             "EMAIL_FROM",
		"seen.redis-url":         "SEEN_REDIS_URL",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-digest.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults cover every key, so only an explicit config file is mandatory.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
