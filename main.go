package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/padraicbc/library/auth"
	"github.com/padraicbc/library/catalog"
	"github.com/padraicbc/library/config"
	"github.com/padraicbc/library/db"
	"github.com/padraicbc/library/files"
	"github.com/padraicbc/library/handlers"
	applog "github.com/padraicbc/library/logger"
	"github.com/padraicbc/library/membership"
	"github.com/padraicbc/library/session"
	"github.com/padraicbc/library/store"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New("library", cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	bdb := db.Setup(cfg)
	defer bdb.Close()

	ctx := context.Background()
	if err := db.CreateTables(ctx, bdb); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	fileStore, err := files.FromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("open file store failed", zap.String("storage", cfg.Storage), zap.Error(err))
	}
	defer fileStore.Close()

	users := store.NewUsers(bdb)
	cat := catalog.NewService(store.NewBooks(bdb), fileStore, cfg.AllowedExtensions, logger)
	h := handlers.New(
		auth.NewService(users, auth.NewPasswords(cfg.BcryptCost), logger),
		cat,
		membership.NewService(users, logger),
		bdb,
		logger,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= 500:
				logger.Error("http request", fields...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())

	codec := session.NewCodec(cfg.SessionKey(), cfg.SessionTTL)
	h.Routes(e, codec, !cfg.Debug, cfg.BodyLimit())

	logger.Info("library ready",
		zap.String("db", cfg.DBDriver),
		zap.String("storage", cfg.Storage),
		zap.Strings("extensions", cat.AllowedExtensions()),
		zap.Duration("session_ttl", codec.TTL()),
	)

	if cfg.Debug {
		logger.Info("starting server", zap.String("mode", "debug"), zap.String("addr", cfg.Port))
		if err := e.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server exited", zap.Error(err))
		}
		return
	}

	autoTLS := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(".cache"),
		HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
	}

	s := &http.Server{
		Addr:         ":443",
		Handler:      e,
		TLSConfig:    autoTLS.TLSConfig(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  15 * time.Second,
	}

	logger.Info("starting server", zap.String("mode", "tls"), zap.Strings("domains", cfg.TLSDomains))
	if err := s.ListenAndServeTLS("", ""); err != http.ErrServerClosed {
		logger.Error("tls server exited", zap.Error(err))
		os.Exit(1)
	}
}
