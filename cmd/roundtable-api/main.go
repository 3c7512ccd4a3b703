package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/roundtable-labs/backend/internal/analytics"
	"github.com/roundtable-labs/backend/internal/auth"
	"github.com/roundtable-labs/backend/internal/config"
	"github.com/roundtable-labs/backend/internal/database"
	"github.com/roundtable-labs/backend/internal/keywords"
	"github.com/roundtable-labs/backend/internal/logging"
	"github.com/roundtable-labs/backend/internal/meetings"
	"github.com/roundtable-labs/backend/internal/minutes"
	"github.com/roundtable-labs/backend/internal/server"
	"github.com/roundtable-labs/backend/internal/stt"
	"github.com/roundtable-labs/backend/internal/users"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "roundtable-api",
		Short: "RoundTable meeting workspace backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newDataCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")
	cmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key (overrides env)")
	cmd.PersistentFlags().String("seoul-api-key", "", "Seoul open API key (overrides env)")
	cmd.PersistentFlags().Bool("incremental-minutes", defaults.GetBool("minutes.incremental"), "Summarize minutes on every STT chunk")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "openai.api_key", "openai-api-key")
	bindFlag(cmd, "seoul.api_key", "seoul-api-key")
	bindFlag(cmd, "minutes.incremental", "incremental-minutes")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

type application struct {
	config    config.AppConfig
	logger    *zap.Logger
	db        *gorm.DB
	analytics *analytics.Service
	close     func()
}

// newApplication opens the database and builds the pieces shared by the
// server and the data subcommands.
func newApplication() (*application, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	var seoulClient *analytics.SeoulClient
	if appConfig.SeoulAPIKey != "" {
		seoulClient, err = analytics.NewSeoulClient(analytics.SeoulClientConfig{
			APIKey:  appConfig.SeoulAPIKey,
			BaseURL: appConfig.SeoulBaseURL,
		})
		if err != nil {
			return nil, err
		}
	}
	analyticsService, err := analytics.NewService(analytics.ServiceConfig{
		Database: db,
		Client:   seoulClient,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &application{
		config:    appConfig,
		logger:    logger,
		db:        db,
		analytics: analyticsService,
		close: func() {
			_ = sqlDB.Close()
			_ = logger.Sync()
		},
	}, nil
}

func runServer(ctx context.Context) error {
	app, err := newApplication()
	if err != nil {
		return err
	}
	defer app.close()

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(app.config.SigningSecret),
		Issuer:        "roundtable-auth",
		Audience:      "roundtable-api",
		TokenTTL:      app.config.TokenTTL,
	})

	userService, err := users.NewService(users.ServiceConfig{Database: app.db})
	if err != nil {
		return err
	}
	if err := userService.EnsureDefaultAccount(); err != nil {
		return err
	}

	meetingService, err := meetings.NewService(meetings.ServiceConfig{
		Database:   app.db,
		Clock:      time.Now,
		IDProvider: meetings.NewUUIDProvider(),
		Logger:     app.logger,
	})
	if err != nil {
		return err
	}
	sttService, err := stt.NewService(stt.ServiceConfig{Database: app.db, Logger: app.logger})
	if err != nil {
		return err
	}

	var summarizer minutes.Summarizer
	var detector keywords.EntityDetector
	if app.config.OpenAIAPIKey != "" {
		summarizer = minutes.NewOpenAISummarizer(app.config.OpenAIAPIKey, app.config.MinutesModel)
		detector = keywords.NewOpenAIDetector(app.config.OpenAIAPIKey, app.config.KeywordsModel)
	}
	minutesService, err := minutes.NewService(minutes.ServiceConfig{
		Database:   app.db,
		Summarizer: summarizer,
		Logger:     app.logger,
	})
	if err != nil {
		return err
	}
	keywordService, err := keywords.NewService(keywords.ServiceConfig{
		Database: app.db,
		Detector: detector,
		Linker:   keywords.NewLinker(app.analytics),
		Logger:   app.logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Meetings:           meetingService,
		STT:                sttService,
		Minutes:            minutesService,
		Keywords:           keywordService,
		Analytics:          app.analytics,
		Users:              userService,
		Tokens:             tokenManager,
		Realtime:           server.NewRealtimeDispatcher(),
		Logger:             app.logger,
		IncrementalMinutes: app.config.IncrementalMinutes,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    app.config.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server starting", zap.String("address", app.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
