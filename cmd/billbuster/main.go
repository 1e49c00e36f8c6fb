package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffyaml"

	"github.com/zombor/billbuster/internal/ai"
	"github.com/zombor/billbuster/internal/bill"
	"github.com/zombor/billbuster/internal/secrets"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("billbuster")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "billbuster.db", "Database file path")
		keysPath        = fs.StringLong("keys-db", "billbuster-keys.db", "API key store file path")
		storagePath     = fs.StringLong("storage", "./bills", "Bill photo directory")
		providerName    = fs.StringLong("provider", "", "Default AI provider: openrouter, openai, anthropic or gemini (used until changed in settings)")
		openaiKey       = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel     = fs.StringLong("openai-model", "gpt-4o", "OpenAI model name")
		anthropicKey    = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel  = fs.StringLong("anthropic-model", "claude-sonnet-4-5-20250929", "Anthropic model name")
		openrouterKey   = fs.StringLong("openrouter-key", "", "OpenRouter API key (or set OPENROUTER_API_KEY env var)")
		openrouterModel = fs.StringLong("openrouter-model", "openai/gpt-4o", "OpenRouter model name")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		maxFreeScans    = fs.IntLong("max-free-scans", bill.DefaultMaxFreeScans, "Free analyses before a pro upgrade is required")
		pro             = fs.BoolLong("pro", "Unlimited analyses")
		_               = fs.StringLong("config", "", "YAML config file (optional)")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILLBUSTER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parse),
		ff.WithConfigAllowMissingFile(),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize databases
	slog.Info("Initializing database...")
	db, err := bill.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	keyDefaults := map[string]string{
		string(ai.ProviderOpenAI):     firstNonEmpty(*openaiKey, os.Getenv("OPENAI_API_KEY")),
		string(ai.ProviderAnthropic):  firstNonEmpty(*anthropicKey, os.Getenv("ANTHROPIC_API_KEY")),
		string(ai.ProviderOpenRouter): firstNonEmpty(*openrouterKey, os.Getenv("OPENROUTER_API_KEY")),
		string(ai.ProviderGemini):     firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY")),
	}
	keys, err := secrets.NewBoltStore(*keysPath, keyDefaults)
	if err != nil {
		slog.Error("Failed to initialize key store", "error", err)
		os.Exit(1)
	}
	defer keys.Close()

	if err := applySettings(db, *providerName, *maxFreeScans, *pro); err != nil {
		slog.Error("Failed to apply settings", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := bill.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	factory := &ai.Factory{
		Keys: keys,
		Options: map[ai.ProviderType][]ai.Option{
			ai.ProviderOpenAI:     {ai.WithModel(*openaiModel)},
			ai.ProviderAnthropic:  {ai.WithModel(*anthropicModel)},
			ai.ProviderOpenRouter: {ai.WithModel(*openrouterModel)},
			ai.ProviderGemini:     {ai.WithModel(*geminiModel)},
		},
	}

	billService := bill.NewService(db, store, factory, ai.NewJPEGPreparer(), keys)

	basicAuth := bill.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           bill.NewServer(billService, basicAuth),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", httpServer.Addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

// applySettings seeds persisted settings from configuration. A provider flag only
// replaces the stored choice when given; the scan allowance and pro flag always apply.
func applySettings(db bill.DB, providerName string, maxFreeScans int, pro bool) error {
	var provider ai.ProviderType
	if providerName != "" {
		t, err := ai.ParseProviderType(providerName)
		if err != nil {
			return err
		}
		provider = t
	}
	_, err := db.UpdateSettings(func(settings *bill.Settings) error {
		if provider != "" {
			settings.AIProvider = provider
		}
		settings.MaxFreeScans = maxFreeScans
		settings.IsPro = pro
		return nil
	})
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
