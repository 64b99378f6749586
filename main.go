package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/handlers"
	"clinic-app-server/internal/mailer"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/routes"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic operations backend",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), routesCmd(), createAdminCmd())
	return root
}

// bootstrap loads .env and the configuration and builds the root logger.
func bootstrap() (*config.Config, zerolog.Logger, error) {
	// A missing .env is fine; the environment may already be set.
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file loaded")
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func openStore(cfg *config.Config, inMemory bool) (store.Store, error) {
	if inMemory {
		return store.NewMemoryStore(), nil
	}
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return store.NewGormStore(db), nil
}

func serveCmd() *cobra.Command {
	var inMemory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, inMemory)
			if err != nil {
				return err
			}

			mail := mailer.NewDispatcher(mailer.NewSender(cfg.Mailer, logger), cfg.Mailer.QueueSize, logger)
			mail.Start()

			svc := services.New(st, cfg, mail, logger)
			if err := seedAdminFromEnv(cmd.Context(), svc, logger); err != nil {
				return err
			}
			router := routes.NewRouter(svc, cfg, logger)

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%s", cfg.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("port", cfg.Port).Bool("in_memory", inMemory).Msg("server running")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
				logger.Info().Msg("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown")
			}
			if err := mail.Stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("mail queue not drained")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "keep all data in memory instead of MySQL")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			db, err := models.OpenDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			if err := models.Migrate(db); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			logger.Info().Int("tables", len(models.AllModels())).Msg("schema up to date")
			return nil
		},
	}
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			svc := services.New(store.NewMemoryStore(), cfg, nil, zerolog.Nop())
			router := routes.NewRouter(svc, cfg, zerolog.Nop())
			out := cmd.OutOrStdout()
			for _, r := range handlers.RouteTable(router) {
				fmt.Fprintf(out, "%-7s %s\n", r.Method, r.Path)
			}
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var email, password, firstName, lastName string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			svc := services.New(st, cfg, nil, logger)
			u, err := svc.Directory.CreateUser(cmd.Context(), services.CreateUserInput{
				Email:     email,
				Password:  password,
				FirstName: firstName,
				LastName:  lastName,
				Role:      models.RoleAdmin,
			})
			if err != nil {
				return err
			}
			logger.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("admin created")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&firstName, "first-name", "Clinic", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "Admin", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// seedAdminFromEnv creates the ADMIN_EMAIL account when it does not exist yet. It is
// what makes an in-memory server usable.
func seedAdminFromEnv(ctx context.Context, svc *services.Services, logger zerolog.Logger) error {
	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}
	_, err := svc.Directory.CreateUser(ctx, services.CreateUserInput{
		Email:     email,
		Password:  password,
		FirstName: "Clinic",
		LastName:  "Admin",
		Role:      models.RoleAdmin,
	})
	switch {
	case err == nil:
		logger.Info().Str("email", email).Msg("seeded admin account")
	case errors.Is(err, store.ErrConflict):
	default:
		return fmt.Errorf("seeding admin: %w", err)
	}
	return nil
}
