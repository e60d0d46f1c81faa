package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/joshuadr04/lms-sistema/internal/bank"
	"github.com/joshuadr04/lms-sistema/internal/grade"
	"github.com/joshuadr04/lms-sistema/internal/handler"
	appI18n "github.com/joshuadr04/lms-sistema/internal/i18n"
	"github.com/joshuadr04/lms-sistema/internal/roster"
	"github.com/joshuadr04/lms-sistema/internal/session"
	"github.com/joshuadr04/lms-sistema/internal/workbook"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lms",
		Short: "Student quiz portal backed by a spreadsheet workbook",
	}

	serve := serveCmd()
	root.AddCommand(serve, seedCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `lms --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz portal HTTP server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("workbook", "w", "lms.xlsx", "Path to the workbook file")
	f.Duration("cache-ttl", 60*time.Second, "Workbook read cache TTL (0 disables caching)")
	f.Duration("session-ttl", 8*time.Hour, "Idle session lifetime")
	f.StringP("lang", "l", "en", "UI language (en, pt)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /quiz)")
	f.String("public-url", "http://localhost:8080", "Externally reachable base URL, used in QR codes")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a workbook with sample roster and questions",
		RunE:  runSeed,
	}
	f := cmd.Flags()
	f.StringP("workbook", "w", "lms.xlsx", "Path to the workbook file to create")
	f.StringP("questions", "q", "", "Path to a questions JSON file (optional, replaces the samples)")
	f.Bool("force", false, "Overwrite an existing workbook")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the response log as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("workbook", "w", "lms.xlsx", "Path to the workbook file")
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

	v.SetEnvPrefix("LMS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("lms")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/lms")
	v.AddConfigPath("/etc/lms")
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

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	store := workbook.New(v.GetString("workbook"), v.GetDuration("cache-ttl"))

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

	cfg := handler.Config{
		BasePath:      basePath,
		PublicURL:     v.GetString("public-url"),
		SecureCookies: v.GetBool("secure-cookies"),
	}

	h, err := handler.New(
		store,
		roster.New(store),
		session.NewManager(v.GetDuration("session-ttl")),
		grade.New(store),
		cfg,
	)
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
		"workbook", v.GetString("workbook"),
		"cache_ttl", v.GetDuration("cache-ttl"),
		"lang", lang,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	path := v.GetString("workbook")
	if _, err := os.Stat(path); err == nil && !v.GetBool("force") {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	questions, err := seedQuestions(v.GetString("questions"))
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash sample password: %w", err)
	}

	sheets := []workbook.SheetSeed{
		{
			Name:   roster.Sheet,
			Header: roster.Header,
			Rows: [][]any{
				{"202401", "Alice Carvalho", "", false, true, true, true},
				{"202402", "Bruno Dias", string(hash), true, true, false, false},
				{"202403", "Carla Mendes", "sunshine", true, false, true, true},
			},
		},
		{
			Name:   bank.QuestionsSheet,
			Header: bank.QuestionsHeader,
			Rows:   questions,
		},
		{
			Name:   bank.ListsSheet,
			Header: bank.ListsHeader,
			Rows: [][]any{
				{"algebra-1", "Q1", "Math", "2023", "Easy", 1,
					"What is 2 + 2?", "3", "4", "5", "22", "b", "Basic addition."},
			},
		},
	}

	if err := workbook.Create(path, sheets); err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	slog.Info("workbook created", "path", path, "questions", len(questions))
	return nil
}

// questionImport mirrors one Questions sheet row for JSON imports.
type questionImport struct {
	ID         string `json:"id"`
	Subject    string `json:"subject"`
	Year       string `json:"year"`
	Difficulty string `json:"difficulty"`
	Sequence   int    `json:"sequence"`
	Statement  string `json:"statement"`
	OptionA    string `json:"option_a"`
	OptionB    string `json:"option_b"`
	OptionC    string `json:"option_c"`
	OptionD    string `json:"option_d"`
	AnswerKey  string `json:"answer_key"`
	Comment    string `json:"comment"`
}

func seedQuestions(path string) ([][]any, error) {
	if path == "" {
		return [][]any{
			{"Q1", "Math", "2023", "Easy", 1,
				"What is 2 + 2?", "3", "4", "5", "22", "b", "Basic addition."},
			{"Q2", "Math", "2023", "Hard", 2,
				"What is the derivative of x^2?", "x", "2x", "x^2", "2", "b", ""},
			{"Q3", "History", "2024", "Medium", 1,
				"In which year did World War II end?", "1943", "1944", "1945", "1946", "c",
				"The war in Europe ended in May 1945."},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var imports []questionImport
	if err := json.Unmarshal(data, &imports); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	rows := make([][]any, 0, len(imports))
	for _, qi := range imports {
		rows = append(rows, []any{
			qi.ID, qi.Subject, qi.Year, qi.Difficulty, qi.Sequence,
			qi.Statement, qi.OptionA, qi.OptionB, qi.OptionC, qi.OptionD,
			qi.AnswerKey, qi.Comment,
		})
	}
	slog.Info("loaded questions file", "path", path, "count", len(rows))
	return rows, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	store := workbook.New(v.GetString("workbook"), 0)
	records, err := grade.Records(store)
	if err != nil {
		return fmt.Errorf("read response log: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
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
