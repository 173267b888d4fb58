package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	middleware "github.com/washanhanzi/apikey-middleware"
	"github.com/washanhanzi/apikey-middleware/handler"
	"github.com/washanhanzi/apikey-middleware/internal/identity"
	"github.com/washanhanzi/apikey-middleware/parser"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	keyParser, closeFn, err := newKeyParser(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	apiKeyHandler, err := handler.NewAPIKeyHandler(handler.NewShim(), keyParser, handler.WithLogger(logger))
	if err != nil {
		return err
	}
	interceptor, err := middleware.NewAuthInterceptor(middleware.WithServiceHandler(apiKeyHandler))
	if err != nil {
		return err
	}
	httpAuth, err := middleware.NewAuthMiddleware(middleware.WithHandler(apiKeyHandler))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(identity.NewHandler(connect.WithInterceptors(interceptor)))
	mux.Handle("GET /api/whoami", httpAuth.Wrap(http.HandlerFunc(identity.HTTPWhoAmI)))
	mux.HandleFunc("GET /api/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

// newKeyParser combines every configured key source, static keys first.
func newKeyParser(cfg config, logger *slog.Logger) (parser.KeyParser, func(), error) {
	var parsers []parser.KeyParser
	closeFn := func() {}

	if cfg.apiKeys != "" {
		keys, err := parser.ParseStaticKeys(cfg.apiKeys)
		if err != nil {
			return nil, closeFn, errors.Wrap(err, "API_KEYS")
		}
		logger.Info("static api keys loaded", slog.Int("count", keys.Len()))
		parsers = append(parsers, keys)
	}
	if cfg.signingSecret != "" {
		signed, err := parser.NewSignedKeys(
			parser.WithSigningKey([]byte(cfg.signingSecret)),
			parser.WithIssuer(cfg.signingIssuer),
		)
		if err != nil {
			return nil, closeFn, err
		}
		logger.Info("signed api keys enabled", slog.String("issuer", cfg.signingIssuer))
		parsers = append(parsers, signed)
	}
	if cfg.dbURL != "" {
		db, err := sql.Open("postgres", cfg.dbURL)
		if err != nil {
			return nil, closeFn, errors.Wrap(err, "open database")
		}
		closeFn = func() { db.Close() }
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, func() {}, errors.Wrap(err, "ping database")
		}
		stored, err := parser.NewSQLKeys(db)
		if err != nil {
			db.Close()
			return nil, func() {}, err
		}
		logger.Info("database api keys enabled")
		parsers = append(parsers, stored)
	}

	if len(parsers) == 1 {
		return parsers[0], closeFn, nil
	}
	return parser.First(parsers...), closeFn, nil
}
