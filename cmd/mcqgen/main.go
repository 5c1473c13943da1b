package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pavelanni/mcqgen/internal/chunker"
	"github.com/pavelanni/mcqgen/internal/export"
	"github.com/pavelanni/mcqgen/internal/feedback"
	"github.com/pavelanni/mcqgen/internal/handler"
	appI18n "github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/ingest"
	"github.com/pavelanni/mcqgen/internal/llm"
	"github.com/pavelanni/mcqgen/internal/metrics"
	"github.com/pavelanni/mcqgen/internal/model"
	"github.com/pavelanni/mcqgen/internal/scoring"
	"github.com/pavelanni/mcqgen/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcqgen",
		Short: "Multiple-choice quiz generator and scorer",
	}

	serve := serveCmd()
	root.AddCommand(serve, chunkCmd(), scoreCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `mcqgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
}

func addChunkFlags(cmd *cobra.Command) {
	def := model.DefaultChunkConfig()
	f := cmd.Flags()
	f.Int("chunk-max-size", def.MaxSize, "Soft chunk size bound in characters")
	f.Int("chunk-overlap", def.Overlap, "Words carried over between consecutive chunks")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "mcqgen.db", "SQLite database path")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.StringP("lang", "l", "en", "Default language (en, ru)")
	f.IntP("questions-per-chunk", "n", 3, "Questions generated per chunk")
	f.String("admin-password", "", "Admin password for upload and generation (or set MCQGEN_ADMIN_PASSWORD)")
	addChunkFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func chunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk FILE",
		Short: "Split a text document into chunks and print them as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runChunk,
	}
	addChunkFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [FILE]",
		Short: "Score a JSON array of evaluated responses (stdin when FILE is - or omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScore,
	}
	cmd.Flags().StringP("lang", "l", "en", "Feedback language (en, ru)")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a quiz session as JSON or PDF",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "mcqgen.db", "SQLite database path")
	f.Int64("session", 0, "Quiz session ID (required)")
	f.String("type", string(model.ExportResults), "Export type (questions_only, results_with_answers)")
	f.String("format", string(export.FormatJSON), "Output format (json, pdf)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.StringP("lang", "l", "en", "Report language (en, ru)")
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("session")

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

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags, a .env file and the environment to a
// fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	// A missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MCQGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mcqgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mcqgen")
	v.AddConfigPath("/etc/mcqgen")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func chunkConfig(v *viper.Viper) model.ChunkConfig {
	return model.ChunkConfig{
		MaxSize: v.GetInt("chunk-max-size"),
		Overlap: v.GetInt("chunk-overlap"),
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmClient, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if err := llmClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", llmClient.Model())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	scoreMetrics, err := metrics.NewObserver(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	agg := scoring.NewAggregator(scoring.WithObserver(
		scoring.MultiObserver(scoring.LogObserver(slog.Default()), scoreMetrics),
	))

	cfg := model.ServerConfig{
		Chunk:             chunkConfig(v),
		QuestionsPerChunk: v.GetInt("questions-per-chunk"),
		Lang:              lang,
	}
	if pw := v.GetString("admin-password"); pw != "" {
		cfg.AdminPasswordHash, err = handler.HashPassword(pw)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
	} else {
		slog.Warn("no admin password set, upload and generation are disabled")
	}

	h, err := handler.New(db, llmClient, cfg, agg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", llmClient.Model(),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"chunk_max_size", cfg.Chunk.MaxSize,
		"chunk_overlap", cfg.Chunk.Overlap,
		"questions_per_chunk", cfg.QuestionsPerChunk,
	)
	return http.ListenAndServe(addr, r)
}

func runChunk(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	c, err := chunker.FromConfig(chunkConfig(v))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	text, err := ingest.ExtractText(args[0], data)
	if err != nil {
		return err
	}

	chunks := c.Split(text)
	slog.Info("document chunked", "path", args[0], "bytes", len(text), "chunks", len(chunks))
	return writeJSON(os.Stdout, chunks)
}

type scoreOutput struct {
	Report   model.ScoreReport `json:"report"`
	Feedback string            `json:"feedback"`
}

func runScore(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var responses []model.EvaluatedResponse
	if err := json.NewDecoder(in).Decode(&responses); err != nil {
		return fmt.Errorf("parse responses: %w", err)
	}

	report := scoring.NewAggregator(scoring.WithObserver(scoring.LogObserver(slog.Default()))).Aggregate(responses)
	return writeJSON(os.Stdout, scoreOutput{
		Report:   report,
		Feedback: feedback.NewComposer(v.GetString("lang")).Compose(report),
	})
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	typ, err := export.ParseType(v.GetString("type"))
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(v.GetString("format"))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sessionID := v.GetInt64("session")
	sess, err := db.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("get session %d: %w", sessionID, err)
	}
	file, err := db.GetFile(sess.FileID)
	if err != nil {
		return fmt.Errorf("get file %s: %w", sess.FileID, err)
	}
	items, err := db.ListAnsweredQuestions(sessionID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	lang := v.GetString("lang")
	var res *export.Results
	if typ == model.ExportResults {
		evs := make([]model.EvaluatedResponse, 0, len(items))
		for _, it := range items {
			evs = append(evs, scoring.Evaluate(it.UserAnswer, it.Question.CorrectAnswer, it.Question))
		}
		report := scoring.Aggregate(evs)
		res = &export.Results{Responses: evs, Report: report, Feedback: feedback.NewComposer(lang).Compose(report)}
	}
	doc := export.Build(sess, file.Name, typ, items, res)

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

	switch format {
	case export.FormatPDF:
		err = export.PDF(w, doc, appI18n.NewLocalizer(lang, "en"))
	default:
		err = export.JSON(w, doc)
	}
	if err != nil {
		return err
	}

	if _, err := db.RecordExport(model.ExportRecord{SessionID: sessionID, Type: typ, Format: string(format)}); err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	slog.Info("session exported", "session_id", sessionID, "type", typ, "format", format, "output", outPath)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
