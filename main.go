package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"clinicremind-backend/config"
	"clinicremind-backend/controllers"
	"clinicremind-backend/routes"
	"clinicremind-backend/services"
	"clinicremind-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgFile   string
	dotenvErr error
)

func main() {
	// Load environment variables; reported once the logger exists
	dotenvErr = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "clinicremind",
		Short: "Appointment SMS reminder service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}
	setupFlags(rootCmd)

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the reminder scheduler",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServer(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "run-once",
			Short: "Run one reminder cycle and print the report",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "hash-password [password]",
			Short: "Print a bcrypt hash for auth.operator_password_hash",
			Args:  cobra.ExactArgs(1),
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return nil
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				hash, err := utils.HashPassword(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			},
		},
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("port", defaults.GetString("http.port"), "HTTP listen port")
	cmd.PersistentFlags().String("db-driver", defaults.GetString("db.driver"), "Database driver (postgres, sqlite)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("schedule", defaults.GetString("reminder.schedule"), "Cron schedule for reminder runs")

	bindFlag(cmd, "http.port", "port")
	bindFlag(cmd, "db.driver", "db-driver")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "reminder.schedule", "schedule")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("clinicremind")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}
	return nil
}

type application struct {
	config    config.AppConfig
	logger    *zap.Logger
	db        *gorm.DB
	store     *services.GormStore
	reminders *services.ReminderService
	registry  *prometheus.Registry
}

func newApplication() (*application, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}
	logDotenv(logger, dotenvErr)

	db, err := config.ConnectDB(appConfig.DBDriver, appConfig.DBURL, logger)
	if err != nil {
		return nil, err
	}

	formatter, err := utils.NewReminderFormatter(
		appConfig.Reminder.Template,
		appConfig.Reminder.Location,
		appConfig.Reminder.Locale,
		appConfig.Reminder.CountryCode,
	)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := services.NewGormStore(db)
	reminders, err := services.NewReminderService(services.ReminderServiceConfig{
		Patients:  store,
		Ledger:    store,
		Gateway:   services.NewTwilioGateway(appConfig.TwilioAccountSID, appConfig.TwilioAuthToken),
		Formatter: formatter,
		Settings: services.ReminderSettings{
			Location:       appConfig.Reminder.Location,
			Lookahead:      appConfig.Reminder.Lookahead,
			Tolerance:      appConfig.Reminder.Tolerance,
			WindowMode:     appConfig.Reminder.WindowMode,
			SenderAddress:  appConfig.TwilioSMSFrom,
			RunTimeout:     appConfig.Reminder.RunTimeout,
			MaxConcurrency: appConfig.Reminder.MaxConcurrency,
		},
		Metrics: services.NewPrometheusSink(registry, logger),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	return &application{
		config:    appConfig,
		logger:    logger,
		db:        db,
		store:     store,
		reminders: reminders,
		registry:  registry,
	}, nil
}

func logDotenv(logger *zap.Logger, err error) {
	if err != nil {
		logger.Debug("No .env file found", zap.Error(err))
	}
}

func (a *application) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	a.logger.Sync() //nolint:errcheck
}

func runOnce(ctx context.Context) error {
	app, err := newApplication()
	if err != nil {
		return err
	}
	defer app.close()

	report, err := app.reminders.Run(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func runServer(ctx context.Context) error {
	app, err := newApplication()
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.config.ValidateServer(); err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler, err := app.reminders.StartScheduler(signalCtx, app.config.Reminder.Schedule)
	if err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
	}()

	gin.SetMode(gin.ReleaseMode)
	router := routes.SetupRouter(routes.Dependencies{
		Auth: &controllers.AuthController{
			Username:     app.config.OperatorUsername,
			PasswordHash: app.config.OperatorPasswordHash,
			JWTSecret:    app.config.JWTSecret,
			TokenTTL:     app.config.TokenTTL,
		},
		Reminders: &controllers.ReminderController{
			Runner:        app.reminders,
			Notifications: app.store,
			Logger:        app.logger,
		},
		Patients: &controllers.PatientController{
			DB:          app.db,
			CountryCode: app.config.Reminder.CountryCode,
		},
		Gatherer:       app.registry,
		JWTSecret:      app.config.JWTSecret,
		AllowedOrigins: app.config.AllowedOrigins,
		Logger:         app.logger,
	})

	httpServer := &http.Server{
		Addr:    ":" + app.config.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server starting", zap.String("port", app.config.Port))
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
