package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/app"
	"github.com/septafinder/backend-go/internal/config"
)

const (
	shutdownTimeout = 30 * time.Second
	reloadTimeout   = 2 * time.Minute
)

// reloader rebuilds the station index in place
type reloader interface {
	Reload(ctx context.Context) error
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg.InitializeLogging()
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	service, err := app.New(context.Background(), cfg, config.GetCacheConfig(), app.DefaultFactory{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize service")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		service.Close()
		log.Fatal().Err(err).Int("port", cfg.Port).Msg("Failed to listen")
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	err = serve(newServer(service.Handler()), ln, service, signals)
	service.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server shutdown completed")
}

func newServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// serve runs srv on ln until an interrupt or terminate signal arrives.
// SIGHUP reloads the station dataset without dropping requests.
func serve(srv *http.Server, ln net.Listener, r reloader, signals <-chan os.Signal) error {
	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("Starting server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	for {
		select {
		case err := <-serverErrors:
			return fmt.Errorf("serving: %w", err)
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				reload(r)
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutting down: %w", err)
			}
			return nil
		}
	}
}

func reload(r reloader) {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	start := time.Now()
	if err := r.Reload(ctx); err != nil {
		log.Error().Err(err).Msg("Reloading stations failed, keeping current index")
		return
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("Stations reloaded")
}
