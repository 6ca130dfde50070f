package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/ukane-philemon/gradebook/api"
	"github.com/ukane-philemon/gradebook/internal/config"
	"github.com/ukane-philemon/gradebook/internal/db/jsonfile"
	"github.com/ukane-philemon/gradebook/internal/db/mongodb"
	"github.com/ukane-philemon/gradebook/internal/db/sqlite"
	"github.com/ukane-philemon/gradebook/internal/events"
	"github.com/ukane-philemon/gradebook/internal/metrics"
	"github.com/ukane-philemon/gradebook/internal/student"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var isDevMode bool
	var envFile string
	flag.BoolVar(&isDevMode, "dev", false, "Run server in development mode")
	flag.StringVar(&envFile, "env", ".env", "Path to an optional .env file")
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load(envFile, isDevMode)
	if err != nil {
		log.Fatalf("config.Load error: %v", err)
	}

	if err := setupLogger(log, cfg); err != nil {
		log.Fatalf("setupLogger error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persister, closePersister, err := openPersister(ctx, cfg, log)
	if err != nil {
		log.Fatalf("openPersister error: %v", err)
	}

	initial, seeded, err := loadStudents(ctx, cfg, persister, log)
	if err != nil {
		log.Fatalf("loadStudents error: %v", err)
	}

	storeCfg := student.Config{
		PassThreshold: cfg.PassThreshold,
		Arity:         cfg.ScoreArity,
		Persister:     persister,
		Logger:        log.WithField("component", "store"),
	}

	var publisher *events.NATSPublisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, log.WithField("component", "events"))
		if err != nil {
			log.Fatalf("events.NewNATSPublisher error: %v", err)
		}
		storeCfg.Publisher = publisher
	}

	store, err := student.NewStudentRepository(storeCfg, initial)
	if err != nil {
		log.Fatalf("student.NewStudentRepository error: %v", err)
	}

	if seeded {
		if err := store.Persist(ctx); err != nil {
			log.Fatalf("store.Persist error: %v", err)
		}
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry, store.Count)

	router := api.NewRouter(store, api.Config{
		RankingSize: cfg.RankingSize,
		Metrics:     m,
		Logger:      log.WithField("component", "api"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newMux(router, registry, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Ensure graceful shutdown by capturing SIGINT and SIGTERM signals.
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdownChan
		log.Info("Shutting down...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("srv.Shutdown error: %v", err)
		}

		if publisher != nil {
			if err := publisher.Close(); err != nil {
				log.Errorf("publisher.Close error: %v", err)
			}
		}

		if err := closePersister(shutdownCtx); err != nil {
			log.Errorf("persister shutdown error: %v", err)
		}

		cancel()
	}()

	log.WithFields(logrus.Fields{
		"port":     cfg.Port,
		"backend":  cfg.StoreBackend,
		"students": store.Count(),
	}).Infof("Gradebook has started successfully, connect to http://localhost:%s/students", cfg.Port)

	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Gradebook shutdown error: %v", err)
	}

	<-ctx.Done()
	log.Info("Gradebook shutdown successfully...")
}

// newMux builds the outer chi mux. Requests under /students and every path
// chi cannot serve go to router, so unknown paths and methods get the JSON
// "route not found" error.
func newMux(router *api.Router, registry *prometheus.Registry, cfg *config.Config, log logrus.FieldLogger) http.Handler {
	chiMux := chi.NewMux()
	chiMux.Use(middleware.RequestID)
	chiMux.Use(middleware.RealIP)
	chiMux.Use(middleware.Recoverer)
	if cfg.RateLimitPerMinute > 0 {
		chiMux.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
	}
	chiMux.Use(api.RequestLogger(log))

	chiMux.Get("/", func(res http.ResponseWriter, _ *http.Request) {
		res.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(res, "Gradebook student records API")
	})
	chiMux.Get("/healthz", func(res http.ResponseWriter, _ *http.Request) {
		res.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(res, "ok")
	})
	chiMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	chiMux.Mount("/students", router)
	chiMux.NotFound(router.ServeHTTP)
	chiMux.MethodNotAllowed(router.ServeHTTP)

	return chiMux
}

// setupLogger applies the configured level and format to log.
func setupLogger(log *logrus.Logger, cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logrus.ParseLevel error: %w", err)
	}
	log.SetLevel(level)

	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

// openPersister opens the configured store backend. The returned func
// releases it. A nil persister means records are kept in memory only.
func openPersister(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (student.Persister, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	switch cfg.StoreBackend {
	case config.BackendFile:
		file, err := jsonfile.New(cfg.DataFile)
		if err != nil {
			return nil, nil, fmt.Errorf("jsonfile.New error: %w", err)
		}
		return file, noop, nil
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite.Open error: %w", err)
		}
		return db, func(context.Context) error { return db.Close() }, nil
	case config.BackendMongoDB:
		db, err := mongodb.New(ctx, cfg.MongoDB, cfg.MongoURL, log.WithField("component", "mongodb"))
		if err != nil {
			return nil, nil, fmt.Errorf("mongodb.New error: %w", err)
		}
		return db, db.Shutdown, nil
	default:
		return nil, noop, nil
	}
}

// loadStudents returns the stored students, or the seed list when nothing
// was stored yet. seeded reports whether the seed list was returned.
func loadStudents(ctx context.Context, cfg *config.Config, persister student.Persister, log logrus.FieldLogger) (students []*student.Student, seeded bool, err error) {
	if persister != nil {
		stored, err := persister.Load(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("persister.Load error: %w", err)
		}

		if stored != nil {
			log.WithField("count", len(stored)).Info("Loaded stored students")
			return stored, false, nil
		}
	}

	students = student.DefaultSeed()
	if cfg.SeedFile != "" {
		students, err = student.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, false, fmt.Errorf("student.LoadSeedFile error: %w", err)
		}
	}

	log.WithField("count", len(students)).Info("Seeded students")
	return students, true, nil
}
