package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"library-backend/internal/library"
	"library-backend/internal/platform/db"
	"library-backend/internal/platform/logging"
)

func main() {
	configPath := flag.String("config", db.DefaultConfigPath, "path to the YAML config")
	flag.Parse()

	// 設定読み込み
	cfg, err := db.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.WithError(err).Fatal("setup logging")
	}
	log.WithFields(log.Fields{"mode": cfg.Mode, "storage": cfg.Storage, "version": cfg.Version}).Info("starting")

	ctx := context.Background()
	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("open storage")
	}
	defer closeStorage()

	if cfg.SeedSampleData {
		n, err := library.SeedSampleData(ctx, storage)
		if err != nil {
			log.WithError(err).Fatal("seed sample data")
		}
		log.WithField("books", n).Info("sample data seeded")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(logging.GinLogger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", logging.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", logging.RequestIDHeader},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api/v1")
	library.RegisterRoutes(api, library.NewService(storage))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if cfg.Certificate.Cert != "" && cfg.Certificate.Key != "" {
			log.WithField("addr", cfg.Addr).Info("listening (tls)")
			err = srv.ListenAndServeTLS(cfg.Certificate.Cert, cfg.Certificate.Key)
		} else {
			log.WithField("addr", cfg.Addr).Info("listening")
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("serve")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

func openStorage(ctx context.Context, cfg *db.Config) (library.Storage, func(), error) {
	if cfg.Storage == db.StorageMemory {
		return library.NewMemStore(), func() {}, nil
	}

	conn, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("dbname", cfg.DB.DBName).Info("connected to DB")

	store := library.NewStore(conn)
	if err := store.Migrate(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return store, func() { conn.Close() }, nil
}
