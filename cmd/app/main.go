package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasktrack/internal/config"
	"github.com/BuzzLyutic/tasktrack/internal/handler"
	"github.com/BuzzLyutic/tasktrack/internal/metrics"
	"github.com/BuzzLyutic/tasktrack/internal/repo"
	"github.com/BuzzLyutic/tasktrack/internal/seed"
	"github.com/BuzzLyutic/tasktrack/internal/service"
	"github.com/BuzzLyutic/tasktrack/internal/suggest"
	"github.com/BuzzLyutic/tasktrack/internal/worker"
	"github.com/BuzzLyutic/tasktrack/pkg/logger"
)

func main() {
	root := &cobra.Command{
		Use:           "tasktrack",
		Short:         "Task tracking API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error { return serve() },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			RunE:  func(cmd *cobra.Command, args []string) error { return serve() },
		},
		seedCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func seedCommand() *cobra.Command {
	var load bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Validate the demo fixtures and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Demo()
			if err != nil {
				return err
			}
			if !load {
				fmt.Fprintf(cmd.OutOrStdout(), "fixtures ok: %d users, %d tasks, %d updates, %d notifications\n",
					len(f.Users), len(f.Tasks), len(f.Updates), len(f.Notifications))
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, closeStore, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			sum, err := seed.Load(cmd.Context(), store, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum)
			return nil
		},
	}
	cmd.Flags().BoolVar(&load, "load", false, "import the fixtures into the configured store")
	return cmd
}

// openStore выбирает хранилище по конфигурации.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Info("Using in-memory store")
		return repo.NewMemoryStore(), func() {}, nil
	}

	// Подключаем БД
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := pool.Ping(ctx); err != nil { // Пытаемся пингануть БД
		pool.Close()
		return nil, nil, errors.Wrap(err, "failed to ping database")
	}
	log.Info("Successfully connected to the Database!")

	store := repo.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func serve() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Подключаем логгер
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore() // Запланированное закрытие соединения

	if cfg.SeedDemo {
		f, err := seed.Demo()
		if err != nil {
			return err
		}
		sum, err := seed.Load(ctx, store, f)
		if err != nil {
			return errors.Wrap(err, "failed to load demo fixtures")
		}
		log.Info("Demo fixtures", zap.Stringer("summary", sum))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(reg)

	users := service.NewUserService(store, log, cfg.SessionTTL)
	tasks := service.NewTaskService(store, log)
	suggester := suggest.New(suggest.Config{
		APIKey:   cfg.SuggestAPIKey,
		Endpoint: cfg.SuggestEndpoint,
		Model:    cfg.SuggestModel,
		Timeout:  cfg.SuggestTimeout,
		RPS:      cfg.SuggestRPS,
	}, log)

	janitor := worker.NewJanitor(users, log, cfg.JanitorInterval)
	janitor.Start(ctx)

	srv := http.Server{ // Создаем сервер
		Addr: ":" + cfg.Port,
		Handler: handler.NewRouter(handler.Deps{
			Tasks:     tasks,
			Users:     users,
			Suggester: suggester,
			Gatherer:  reg,
			Logger:    log,
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() { // Запуск сервера и обработка ошибок
		log.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			janitor.Stop()
			return errors.Wrap(err, "server failed")
		}
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", zap.Error(err))
	}
	janitor.Stop()
	log.Info("Server stopped successfully!", zap.Duration("shutdown_timeout", cfg.ShutdownTimeout))
	return nil
}

