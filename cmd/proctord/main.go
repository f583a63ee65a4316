package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
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
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/evalueate/proctor/internal/exam"
	"github.com/evalueate/proctor/internal/handler"
	"github.com/evalueate/proctor/internal/llm"
	"github.com/evalueate/proctor/internal/model"
	"github.com/evalueate/proctor/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "proctord",
		Short: "Proctored technical assessment server",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), addCandidateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `proctord --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assessment HTTP server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "proctor.db", "SQLite database path")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Per-call LLM timeout")
	f.String("admin-user", "admin", "Initial admin username")
	f.String("admin-password", "", "Initial admin password (or set PROCTOR_ADMIN_PASSWORD)")
	f.String("candidates", "", "Path to candidate directory seed file (JSON)")
	f.String("jwt-secret", "", "HMAC secret for bearer tokens (random per start when unset)")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all sessions with their audit logs as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "proctor.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func addCandidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-candidate",
		Short: "Provision a candidate access code",
		RunE:  runAddCandidate,
	}
	f := cmd.Flags()
	f.String("db", "proctor.db", "SQLite database path")
	f.String("email", "", "Candidate email (required)")
	f.String("code", "", "Access code (required)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("code")

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

	v.SetEnvPrefix("PROCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("proctor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/proctor")
	v.AddConfigPath("/etc/proctor")
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

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-user"), v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := seedCandidates(db, v.GetString("candidates")); err != nil {
		return fmt.Errorf("seed candidates: %w", err)
	}

	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetDuration("llm-timeout"),
	)
	if err := llmClient.Ping(context.Background()); err != nil {
		// Startup proceeds anyway: an unreachable provider degrades to
		// fallback content, it never blocks assessments.
		slog.Warn("LLM endpoint unreachable, sessions will use fallback content",
			"url", v.GetString("llm-url"), "error", err)
	} else {
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	secret := v.GetString("jwt-secret")
	if secret == "" {
		secret = randomSecret()
		slog.Warn("jwt-secret not set, using a random secret; tokens will not survive a restart")
	}

	svc := exam.New(db, llmClient, slog.Default())
	h := handler.New(svc, db, handler.NewAuth(secret), slog.Default())

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         int(12 * time.Hour / time.Second),
	}).Handler(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"db", v.GetString("db"),
	)
	return http.ListenAndServe(addr, corsHandler)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sessions, err := db.ExportAllSessions()
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}

	export := model.ExportFile{
		ExportedAt: time.Now().UTC(),
		Sessions:   sessions,
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

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func runAddCandidate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	email := strings.TrimSpace(strings.ToLower(v.GetString("email")))
	code := strings.TrimSpace(v.GetString("code"))
	if email == "" || code == "" {
		return fmt.Errorf("email and code are required")
	}
	if err := db.CreateCandidate(email, code); err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	slog.Info("candidate provisioned", "email", email)
	return nil
}

// candidateSeed is one entry of the candidates seed file.
type candidateSeed struct {
	Email      string `json:"email"`
	AccessCode string `json:"accessCode"`
}

// defaultCandidates is the directory seeded into an empty database when
// no seed file is given.
var defaultCandidates = []candidateSeed{
	{Email: "test@user.com", AccessCode: "TEST1234"},
}

func seedCandidates(db *store.Store, path string) error {
	entries := defaultCandidates
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		count, err := db.CandidateCount()
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
	}

	for _, e := range entries {
		email := strings.TrimSpace(strings.ToLower(e.Email))
		code := strings.TrimSpace(e.AccessCode)
		if email == "" || code == "" {
			slog.Warn("skipping invalid candidate seed entry", "email", e.Email)
			continue
		}
		if err := db.CreateCandidate(email, code); err != nil {
			return fmt.Errorf("seed candidate %s: %w", email, err)
		}
	}
	slog.Info("seeded candidate directory", "count", len(entries))
	return nil
}

func seedAdmin(db *store.Store, username, password string) error {
	count, err := db.AdminCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or PROCTOR_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := db.CreateAdmin(username, string(hash)); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	slog.Info("seeded admin account", "username", username)
	return nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
