package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/printfarmhq/printfarmhq/internal/config"
	"github.com/printfarmhq/printfarmhq/internal/db"
	"github.com/printfarmhq/printfarmhq/internal/ledger"
	"github.com/printfarmhq/printfarmhq/internal/logger"
	"github.com/printfarmhq/printfarmhq/internal/migrations"
	"github.com/printfarmhq/printfarmhq/internal/scheduler"
	"github.com/printfarmhq/printfarmhq/internal/seed"
	"github.com/printfarmhq/printfarmhq/internal/store"
)

type server struct {
	log       *zap.Logger
	auth      *authService
	store     *store.Store
	ledger    *ledger.Ledger
	sched     *scheduler.Scheduler
	uploadDir string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.IsDev())
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open database", logger.Error(err))
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database, cfg.MigrationsDir); err != nil {
			log.Fatal("failed to run database migrations", logger.Error(err))
		}
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatal("failed to run startup seed", logger.Error(err))
	}
	if stats.Inserts > 0 {
		log.Info("startup seed applied", zap.Int("inserts", stats.Inserts))
	}

	srv := &server{
		log:       log,
		auth:      newAuthService(database, cfg.SessionSecret),
		store:     store.New(database),
		ledger:    ledger.New(database),
		sched:     scheduler.New(database),
		uploadDir: cfg.UploadDir,
	}

	addr := ":" + cfg.Port
	log.Info("listening", logger.String("addr", addr))
	if err := http.ListenAndServe(addr, newRouter(srv)); err != nil {
		log.Fatal("server stopped", logger.Error(err))
	}
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Get("/filaments", s.handleFilamentsList)
		r.Post("/filaments", s.handleFilamentCreate)
		r.Get("/filaments/{id}", s.handleFilamentGet)
		r.Patch("/filaments/{id}", s.handleFilamentUpdate)
		r.Delete("/filaments/{id}", s.handleFilamentDelete)
		r.Get("/filaments/{id}/purchases", s.handlePurchasesList)
		r.Post("/filaments/{id}/purchases", s.handlePurchaseCreate)

		r.Get("/products", s.handleProductsList)
		r.Post("/products", s.handleProductCreate)
		r.Get("/products/{id}", s.handleProductGet)
		r.Patch("/products/{id}", s.handleProductUpdate)
		r.Delete("/products/{id}", s.handleProductDelete)
		r.Post("/products/{id}/plates", s.handlePlateCreate)

		r.Patch("/plates/{id}", s.handlePlateUpdate)
		r.Delete("/plates/{id}", s.handlePlateDelete)
		r.Post("/plates/{id}/file", s.handlePlateFileUpload)

		r.Get("/printers", s.handlePrintersList)
		r.Post("/printers", s.handlePrinterCreate)
		r.Get("/printers/{id}", s.handlePrinterGet)
		r.Patch("/printers/{id}", s.handlePrinterUpdate)
		r.Delete("/printers/{id}", s.handlePrinterDelete)

		r.Get("/print_jobs", s.handleJobsList)
		r.Post("/print_jobs", s.handleJobCreate)
		r.Get("/print_jobs/{id}", s.handleJobGet)
		r.Delete("/print_jobs/{id}", s.handleJobDelete)
		r.Put("/print_jobs/{id}/start", s.handleJobStart)
		r.Put("/print_jobs/{id}/complete", s.handleJobComplete)
		r.Put("/print_jobs/{id}/fail", s.handleJobFail)
	})

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
		)
	})
}
