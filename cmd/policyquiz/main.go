package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/knowcheck/policyquiz/internal/bank"
	"github.com/knowcheck/policyquiz/internal/handler"
	appI18n "github.com/knowcheck/policyquiz/internal/i18n"
	"github.com/knowcheck/policyquiz/internal/model"
	"github.com/knowcheck/policyquiz/internal/quiz"
	"github.com/knowcheck/policyquiz/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "policyquiz",
		Short: "Policy knowledge assessment server",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `policyquiz --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP assessment server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "policyquiz.db", "SQLite database path")
	f.StringP("bank", "b", "questions.xlsx", "Path to the question bank (.xlsx, .csv, .tsv)")
	f.Int("match-threshold", quiz.DefaultThreshold, "Fuzzy match score required for a correct answer (0-100)")
	f.Bool("strict-yes-no", false, "Require exact yes/no answers instead of a prefix match")
	f.Bool("allow-repeats", false, "Sample with replacement when the pool is smaller than the request")
	f.Bool("balance-chapters", true, "Spread the draw across chapters when chapter data exists")
	f.IntP("default-count", "n", 20, "Default number of questions per assessment")
	f.Int("min-count", 1, "Minimum selectable question count")
	f.Int("max-count", 100, "Maximum selectable question count")
	f.Uint64("seed", 0, "Random seed for sampling (0 = random per session)")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /quiz)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export assessment results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "policyquiz.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("POLICYQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("policyquiz")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/policyquiz")
	v.AddConfigPath("/etc/policyquiz")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadDivisions reads an optional divisions list from the config file,
// falling back to the built-in defaults.
func loadDivisions(v *viper.Viper) []model.DivisionConfig {
	if !v.IsSet("divisions") {
		return model.DefaultDivisions()
	}
	var divisions []model.DivisionConfig
	if err := v.UnmarshalKey("divisions", &divisions); err != nil || len(divisions) == 0 {
		slog.Warn("invalid divisions config, using defaults", "error", err)
		return model.DefaultDivisions()
	}
	return divisions
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Load the question bank up front so a broken file fails the start.
	cache := bank.NewCache(v.GetString("bank"))
	b, err := cache.Reload()
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}
	if err := db.SetBankInfo(b.Info); err != nil {
		return fmt.Errorf("record bank info: %w", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	quizCfg := model.QuizConfig{
		MatchThreshold:  v.GetInt("match-threshold"),
		StrictYesNo:     v.GetBool("strict-yes-no"),
		AllowRepeats:    v.GetBool("allow-repeats"),
		BalanceChapters: v.GetBool("balance-chapters"),
		DefaultCount:    v.GetInt("default-count"),
		MinCount:        v.GetInt("min-count"),
		MaxCount:        v.GetInt("max-count"),
		Seed:            v.GetUint64("seed"),
		BasePath:        basePath,
		Divisions:       loadDivisions(v),
	}

	h, err := handler.New(db, cache, quizCfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"bank", b.Info.SourcePath,
		"records", b.Info.Records,
		"lang", lang,
		"match_threshold", quizCfg.MatchThreshold,
		"balance_chapters", quizCfg.BalanceChapters,
		"allow_repeats", quizCfg.AllowRepeats,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAllSessions()
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
