package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nestjam/yap-shortlink/internal/cert"
	conf "github.com/nestjam/yap-shortlink/internal/config"
	"github.com/nestjam/yap-shortlink/internal/domain/service"
	"github.com/nestjam/yap-shortlink/internal/factory"
	server "github.com/nestjam/yap-shortlink/internal/server/http"
)

const (
	eventKey        = "event"
	shutdownTimeout = 10 * time.Second
	readTimeout     = 5 * time.Second
	writeTimeout    = 10 * time.Second
)

func main() {
	config := conf.New().
		FromArgs(os.Args).
		FromEnv(conf.ProcessEnv{})

	if err := config.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, tearDownLogger, err := factory.NewLogger(config.LogLevel, config.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer tearDownLogger()

	if err := run(config, logger); err != nil {
		logger.Error(err.Error(), zap.String(eventKey, "run server"))
		tearDownLogger()
		os.Exit(1)
	}
}

func run(config conf.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sentryMiddleware, tearDownSentry, err := factory.NewSentryMiddleware(config.SentryDSN)
	if err != nil {
		return err
	}
	defer tearDownSentry()

	store, tearDownStorage, err := factory.NewStorage(ctx, config, logger)
	if err != nil {
		return err
	}
	defer tearDownStorage()

	serviceOpts := []service.Option{
		service.WithLogger(logger),
		service.WithCodeLength(config.CodeLength),
		service.WithStoreTimeout(config.StoreTimeout),
	}
	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithServiceOptions(serviceOpts...),
	}

	doneCh := make(chan struct{})
	var recorder *service.ClickRecorder
	if config.ClicksAsync {
		recorder = service.NewClickRecorder(context.Background(), doneCh, store, serviceOpts...)
		serverOpts = append(serverOpts, server.WithClickRecorder(recorder))
	}
	if sentryMiddleware != nil {
		serverOpts = append(serverOpts, server.WithMiddlewares(sentryMiddleware))
	}

	srv := &http.Server{
		Addr:         config.ServerAddress,
		Handler:      server.New(store, config.BaseURL, serverOpts...),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	if config.EnableHTTPS {
		certificate, err := cert.SelfSigned(hostOf(config.BaseURL))
		if err != nil {
			return err
		}
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{certificate},
			MinVersion:   tls.VersionTLS12,
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Running server",
			zap.String("address", config.ServerAddress),
			zap.String("storage", config.Storage),
			zap.Bool("https", config.EnableHTTPS))
		if err := listenAndServe(srv, config.EnableHTTPS); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		close(doneCh)
		if recorder != nil {
			recorder.Wait()
		}
		return err
	})

	return g.Wait()
}

func listenAndServe(srv *http.Server, enableHTTPS bool) error {
	if enableHTTPS {
		return srv.ListenAndServeTLS("", "")
	}
	return srv.ListenAndServe()
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}
