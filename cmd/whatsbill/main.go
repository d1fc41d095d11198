package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/xKrishnaSaxena/WhatsBill/internal/api"
	"github.com/xKrishnaSaxena/WhatsBill/internal/billing"
	"github.com/xKrishnaSaxena/WhatsBill/internal/chat"
	"github.com/xKrishnaSaxena/WhatsBill/internal/genai"
	"github.com/xKrishnaSaxena/WhatsBill/internal/lockfile"
	"github.com/xKrishnaSaxena/WhatsBill/internal/messaging"
	"github.com/xKrishnaSaxena/WhatsBill/internal/rag"
	"github.com/xKrishnaSaxena/WhatsBill/internal/reminder"
	"github.com/xKrishnaSaxena/WhatsBill/internal/session"
	"github.com/xKrishnaSaxena/WhatsBill/internal/twiliowhatsapp"
	"github.com/xKrishnaSaxena/WhatsBill/internal/util"
	"github.com/xKrishnaSaxena/WhatsBill/internal/whatsapp"
	"github.com/xKrishnaSaxena/WhatsBill/internal/wizard"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for WhatsBill state data
	DefaultStateDir = "/var/lib/whatsbill"
	// DefaultDBFileName is the default SQLite database filename for sessions
	DefaultDBFileName = "whatsbill.db"
	// DefaultRAGDBFileName is the default SQLite database filename for the vector store
	DefaultRAGDBFileName = "rag.db"
	// DefaultFnbillURL is the default base URL of the fnBill billing backend
	DefaultFnbillURL = "http://localhost:8001/v1/api"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping WhatsBill with configured modules")
	if err := run(ctx, flags); err != nil {
		slog.Error("WhatsBill failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("WhatsBill exited successfully")
}

func run(ctx context.Context, flags Flags) error {
	sessionStore, err := buildSessionStore(flags)
	if err != nil {
		return err
	}
	defer sessionStore.Close()

	genAI, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	gateway, err := billing.NewClient(billing.WithBaseURL(*flags.fnbillURL))
	if err != nil {
		return err
	}

	vectorStore, err := rag.NewSQLiteStore(filepath.Join(*flags.stateDir, DefaultRAGDBFileName))
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	if *flags.knowledgeDir != "" {
		ingestor := rag.NewIngestor(genAI, vectorStore, 0, 0)
		watcher, err := rag.NewWatcher(ingestor)
		if err != nil {
			return err
		}
		if err := watcher.Watch(ctx, *flags.knowledgeDir); err != nil {
			return err
		}
		slog.Info("Knowledge directory watched", "dir", *flags.knowledgeDir)
	}

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	scheduler := reminder.NewScheduler(reminder.NewSimpleTimer(), msgService)
	defer scheduler.Stop()

	orchestrator := chat.NewOrchestrator(
		wizard.New(gateway),
		rag.NewAnswerer(genAI, vectorStore, util.ParseIntEnv("RAG_TOP_K", rag.DefaultTopK)),
		reminder.NewParser(genAI),
		scheduler,
		*flags.replyTone,
	)

	responder := chat.NewResponder(orchestrator, msgService, sessionStore)
	responder.Start(ctx)

	server := api.NewServer(orchestrator, msgService, buildAPIOptions(flags)...)
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	StateDir     string
	OpenAIKey    string
	APIAddr      string
	FnbillURL    string
	KnowledgeDir string
	ReplyTone    string
	UseTwilio    bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput     *string
	numeric      *bool
	stateDir     *string
	dbDSN        *string
	openaiKey    *string
	apiAddr      *string
	fnbillURL    *string
	knowledgeDir *string
	replyTone    *string
	useTwilio    *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("WHATSBILL_STATE_DIR"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		FnbillURL:    os.Getenv("FNBILL_BASE_URL"),
		KnowledgeDir: os.Getenv("KNOWLEDGE_DIR"),
		ReplyTone:    os.Getenv("REPLY_TONE"),
		UseTwilio:    util.ParseBoolEnv("USE_TWILIO", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No WHATSBILL_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.FnbillURL == "" {
		config.FnbillURL = DefaultFnbillURL
		slog.Debug("No FNBILL_BASE_URL set, using default", "fnbill_url", config.FnbillURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSBILL_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"FNBILL_BASE_URL", config.FnbillURL,
		"KNOWLEDGE_DIR", config.KnowledgeDir,
		"REPLY_TONE", config.ReplyTone,
		"USE_TWILIO", config.UseTwilio)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:     flag.String("qr-output", "", "path to write login QR code"),
		numeric:      flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for WhatsBill data (overrides $WHATSBILL_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for sessions and WhatsApp state (overrides $DATABASE_URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		fnbillURL:    flag.String("fnbill-url", config.FnbillURL, "base URL of the fnBill billing backend (overrides $FNBILL_BASE_URL)"),
		knowledgeDir: flag.String("knowledge-dir", config.KnowledgeDir, "directory of documents to index for question answering (overrides $KNOWLEDGE_DIR)"),
		replyTone:    flag.String("tone", config.ReplyTone, "tone of generated answers (overrides $REPLY_TONE)"),
		useTwilio:    flag.Bool("use-twilio", config.UseTwilio, "use Twilio instead of whatsmeow for WhatsApp messaging (overrides $USE_TWILIO)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"fnbillURL", *flags.fnbillURL,
		"knowledgeDir", *flags.knowledgeDir,
		"replyTone", *flags.replyTone,
		"useTwilio", *flags.useTwilio)

	// Follow a moved state directory when the DSN was left at its default.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		return err
	}
	if *flags.dbDSN != "" && session.DetectDSNType(*flags.dbDSN) != "postgres" {
		dbDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dbDir)
			return err
		}
	}
	return nil
}

// buildSessionStore selects the session store backend from the DSN.
func buildSessionStore(flags Flags) (session.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory session store")
		return session.NewInMemoryStore(), nil
	}
	if session.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL session store")
		return session.NewPostgresStore(session.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite session store", "db_path", *flags.dbDSN)
	return session.NewSQLiteStore(session.WithSQLiteDSN(*flags.dbDSN))
}

// buildMessagingService constructs the WhatsApp transport, Twilio or whatsmeow.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.useTwilio {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		slog.Info("Using Twilio WhatsApp messaging")
		return messaging.NewTwilioService(client), nil
	}

	client, err := whatsapp.NewClient(buildWhatsAppOptions(flags)...)
	if err != nil {
		return nil, err
	}
	slog.Info("Using whatsmeow WhatsApp messaging")
	return messaging.NewWhatsAppService(client), nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.stateDir != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
	}
	return waOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
