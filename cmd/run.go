package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fieldjudge/internal/cache"
	"fieldjudge/internal/input"
	"fieldjudge/internal/judge"
	"fieldjudge/internal/judge/gemini"
	"fieldjudge/internal/logger"
	"fieldjudge/internal/output"
	"fieldjudge/internal/retry"
	"fieldjudge/internal/runner"
	"fieldjudge/internal/secrets"
	"fieldjudge/internal/verdict"
	"fieldjudge/internal/work"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	defaultCachePath = "fieldjudge.db"
)

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the fieldjudge validation batch",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-aprove", "y", false, "do not ask for confirmation before dispatching judge calls")
	runCmd.Flags().BoolP("no-cache", "n", false, "do not persist verdicts between runs")
	runCmd.Flags().StringP("input", "i", "", "input file with work units or records. Overrides the config value.")

	viper.BindPFlag("input", runCmd.Flags().Lookup("input"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	zlog.Info("starting the fieldjudge", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	zlog.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		zlog.Fatal("config is required")
	}

	if config.Judge == nil {
		zlog.Fatal("judge configuration is required under the judge key")
	}

	units, err := readUnits(config, zlog)
	if err != nil {
		zlog.Fatal("reading work units", zap.Error(err))
	}

	if len(units) == 0 {
		zlog.Info("exiting", zap.String("reason", "no work units found"))
		return
	}

	judgeBound := 0
	for _, unit := range units {
		if unit.Validate() == nil && work.Precheck(unit) == nil {
			judgeBound++
		}
	}

	zlog.Info("work set loaded",
		zap.Int("units", len(units)),
		zap.Int("judge_bound", judgeBound),
	)

	if cmd.Flag("auto-aprove").Value.String() == "false" && judgeBound > 0 {
		_, action, err := prompt.Run()
		if err != nil {
			zlog.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			zlog.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	judgeClient, modelName, err := newJudge(ctx, config.Judge, zlog)
	if err != nil {
		zlog.Fatal("building judge client",
			zap.Error(err),
			zap.String("hint", "set judge.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY"),
		)
	}

	store, err := newCacheStore(cmd, config, zlog)
	if err != nil {
		zlog.Fatal("opening verdict cache", zap.Error(err))
	}
	defer store.Close()

	writer, err := newWriter(config)
	if err != nil {
		zlog.Fatal("creating output artifacts", zap.Error(err))
	}
	defer writer.Close()

	runCfg := runnerConfig(config)
	r, err := runner.New(runCfg, runner.Deps{
		Judge:  judgeClient,
		Cache:  store,
		Logger: logger.WithJudgeFields(zlog, config.Judge.Provider, modelName, runCfg.PromptVersion),
	})
	if err != nil {
		zlog.Fatal("building batch runner", zap.Error(err))
	}

	zlog.Info("starting the batch run",
		zap.String("run_id", r.RunID()),
		zap.Int("concurrency", runCfg.Concurrency),
		zap.String("prompt_version", runCfg.PromptVersion),
	)

	summary, err := r.Run(ctx, units, writer)
	if err != nil {
		zlog.Error("batch run interrupted", zap.Error(err))
	}

	logSummary(zlog, summary, writer.Count())
}

func readUnits(config *Config, zlog *zap.Logger) ([]work.Unit, error) {
	path := strings.TrimSpace(viper.GetString("input"))
	if path == "" {
		path = strings.TrimSpace(config.Input)
	}
	if path == "" {
		return nil, fmt.Errorf("input file is not configured")
	}

	if config.Records != nil {
		return input.ReadRecords(path, *config.Records)
	}
	return input.ReadWorkUnits(path, zlog)
}

func newJudge(ctx context.Context, cfg *JudgeConfig, zlog *zap.Logger) (judge.Judge, string, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, "", fmt.Errorf("unsupported judge provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, "", err
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		return nil, "", err
	}

	judgeLogger := logger.WithJudgeFields(zlog, "gemini", generator.Model(), cfg.PromptVersion)
	j := gemini.NewJudge(generator, judgeLogger, cfg.Gemini.MaxLogLength)

	for name, path := range cfg.Templates {
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("reading prompt template %q: %w", name, err)
		}
		j.RegisterTemplate(name, string(text))
	}

	return j, generator.Model(), nil
}

func newCacheStore(cmd *cobra.Command, config *Config, zlog *zap.Logger) (cache.Store, error) {
	disabled := cmd.Flag("no-cache").Value.String() == "true"
	path := defaultCachePath
	if config.Cache != nil {
		disabled = disabled || config.Cache.Disabled
		if strings.TrimSpace(config.Cache.Path) != "" {
			path = config.Cache.Path
		}
	}

	if disabled {
		zlog.Info("verdict cache disabled, verdicts will not survive this run")
		return cache.NewMemoryStore(zlog), nil
	}

	store, err := cache.NewSQLiteStore(path, zlog)
	if err != nil {
		return nil, err
	}

	zlog.Info("verdict cache opened", zap.String("path", store.Path()))
	return store, nil
}

func newWriter(config *Config) (*output.Writer, error) {
	csvPath := "results.csv"
	jsonlPath := "results.jsonl"
	if config.Output != nil {
		csvPath = config.Output.CSV
		jsonlPath = config.Output.JSONL
	}
	if csvPath == "" && jsonlPath == "" {
		return nil, fmt.Errorf("at least one of output.csv and output.jsonl is required")
	}
	return output.NewWriter(csvPath, jsonlPath)
}

func runnerConfig(config *Config) runner.Config {
	retryCfg := retry.DefaultConfig()
	concurrency := 4

	if config.Run != nil {
		if config.Run.MaxAttempts > 0 {
			retryCfg.MaxAttempts = config.Run.MaxAttempts
		}
		if config.Run.BaseBackoff > 0 {
			retryCfg.BaseBackoff = config.Run.BaseBackoff
		}
		if config.Run.MaxBackoff > 0 {
			retryCfg.MaxBackoff = config.Run.MaxBackoff
		}
		if config.Run.MaxJitter > 0 {
			retryCfg.MaxJitter = config.Run.MaxJitter
		}
		if config.Run.Concurrency > 0 {
			concurrency = config.Run.Concurrency
		}
	}

	promptVersion := "v1"
	if config.Judge != nil && strings.TrimSpace(config.Judge.PromptVersion) != "" {
		promptVersion = config.Judge.PromptVersion
	}

	return runner.Config{
		Concurrency:   concurrency,
		PromptVersion: promptVersion,
		Retry:         retryCfg,
	}
}

func logSummary(zlog *zap.Logger, summary *runner.Summary, written int) {
	if summary == nil {
		return
	}

	zlog.Info("batch run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("units", summary.Total),
		zap.Int("written", written),
		zap.Int("match", summary.ByClass[verdict.Match]),
		zap.Int("unmatch", summary.ByClass[verdict.Unmatch]),
		zap.Int("unsure", summary.ByClass[verdict.Unsure]),
		zap.Int("nodata", summary.ByClass[verdict.NoData]),
		zap.Int("precheck", summary.Precheck),
		zap.Int("cache_hits", summary.CacheHits),
		zap.Int("judged", summary.Judged),
		zap.Int("degraded", summary.Degraded),
	)
}
