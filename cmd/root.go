package cmd

import (
	"log"
	"time"

	"fieldjudge/internal/input"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "fieldjudge"
)

type Config struct {
	Input   string               `mapstructure:"input"`
	Records *input.RecordsConfig `mapstructure:"records"`
	Output  *OutputConfig        `mapstructure:"output"`
	Cache   *CacheConfig         `mapstructure:"cache"`
	Judge   *JudgeConfig         `mapstructure:"judge"`
	Run     *RunConfig           `mapstructure:"run"`
}

type OutputConfig struct {
	CSV   string `mapstructure:"csv"`
	JSONL string `mapstructure:"jsonl"`
}

type CacheConfig struct {
	Path     string `mapstructure:"path"`
	Disabled bool   `mapstructure:"disabled"`
}

type JudgeConfig struct {
	Provider      string            `mapstructure:"provider"`
	PromptVersion string            `mapstructure:"prompt-version"`
	Templates     map[string]string `mapstructure:"templates"`
	Gemini        *GeminiConfig     `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type RunConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	MaxAttempts int           `mapstructure:"max-attempts"`
	BaseBackoff time.Duration `mapstructure:"base-backoff"`
	MaxBackoff  time.Duration `mapstructure:"max-backoff"`
	MaxJitter   time.Duration `mapstructure:"max-jitter"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "fieldjudge validates structured job-posting fields against raw posting text with an LLM judge",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("judge.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is fieldjudge.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
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
