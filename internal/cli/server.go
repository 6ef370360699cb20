package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anthem-kiosk/internal/app"
	"anthem-kiosk/internal/backend"
	"anthem-kiosk/internal/config"
	"anthem-kiosk/internal/infra/file"
	"anthem-kiosk/internal/infra/memory"
	pgarchive "anthem-kiosk/internal/infra/postgres"
	redissession "anthem-kiosk/internal/infra/redis"
	"anthem-kiosk/internal/logger"
	"anthem-kiosk/internal/state"
	transport "anthem-kiosk/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	defaultSessionFile = "data/session.json"
	defaultStillImage  = "assets/still-frame.jpg"
	questionCacheTTL   = 10 * time.Minute
)

// NewStartCmd builds the CLI subcommand to start the kiosk.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the kiosk server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKiosk(cmd.Context(), *configPath, *port)
		},
	}
}

func runKiosk(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Backend.URL == "" {
		return fmt.Errorf("backend url not configured")
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var saver state.Saver
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		saver = redissession.NewSessionStore(client, config.Duration(cfg.Redis.TTL, 24*time.Hour))
	} else {
		path := cfg.Session.File
		if path == "" {
			path = defaultSessionFile
		}
		saver = file.NewSessionStore(afero.NewOsFs(), path)
	}

	store, err := state.New(ctx, saver, log)
	if err != nil {
		return err
	}

	client := backend.New(cfg.Backend.URL, config.Duration(cfg.Backend.Timeout, 15*time.Second), log)
	questions := memory.NewQuestionCache(client, questionCacheTTL)

	var archive app.Archiver
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		archive = pgarchive.NewArchive(pool)
	}

	stillImage := cfg.Camera.StillImage
	if stillImage == "" {
		stillImage = defaultStillImage
	}
	camera := file.NewStillCamera(afero.NewOsFs(), stillImage)

	engine := app.NewEngine(store, client, questions, camera, archive, log, app.Options{
		QuestionCount: cfg.Backend.QuestionCount,
		PollInterval:  config.Duration(cfg.Backend.PollInterval, backend.DefaultPollInterval),
		QuizMode:      app.ParseQuizMode(cfg.Quiz.Mode),
		PuzzleEnabled: cfg.Puzzle.Enabled,
		CompleteDelay: config.Duration(cfg.Wizard.CompleteDelay, 2*time.Second),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	// The panel polls this to keep the welcome screen disabled while the
	// generation backend is down.
	mux.HandleFunc("/backend-health", func(w http.ResponseWriter, r *http.Request) {
		if !client.Health(r.Context()) {
			http.Error(w, "backend unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(engine, log).ServeWS)
	mux.Handle("/qr", transport.NewQRHandler(engine, log))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting anthem kiosk", zap.String("port", finalPort), zap.String("backend", cfg.Backend.URL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down")
	case <-ctx.Done():
		log.Info("context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
