package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hearthline/callbridge/internal/dotenv"
	"github.com/hearthline/callbridge/pkg/bridge/config"
	"github.com/hearthline/callbridge/pkg/bridge/handlers"
	"github.com/hearthline/callbridge/pkg/bridge/lifecycle"
	"github.com/hearthline/callbridge/pkg/bridge/realtime"
	"github.com/hearthline/callbridge/pkg/bridge/relay"
	"github.com/hearthline/callbridge/pkg/bridge/retrieval"
	"github.com/hearthline/callbridge/pkg/bridge/server"
	"github.com/hearthline/callbridge/pkg/bridge/sessions"
	"github.com/hearthline/callbridge/pkg/bridge/store"
	"github.com/hearthline/callbridge/pkg/bridge/telephony"
)

const systemInstructions = "You are an AI assistant specialized in home loan products. " +
	"You will provide accurate and concise answers based on the stored product data. " +
	"You will ask the caller a few questions to assist the loan officer. " +
	"Always stay positive and do not go outside loan assistance while talking with the customer."

const initialGreeting = "Hello there! I am an AI voice assistant. " +
	"I will ask you a few questions to assist our loan officer. " +
	"Are you interested in a home loan?"

type bridgeDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultBridgeDeps() bridgeDeps {
	return bridgeDeps{
		loadConfig: config.LoadFromEnv,
		openStore:  openStore,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("no database configured, call records go to the log")
		return store.LogOnly{Log: logger}, func() {}, nil
	}
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return pg, pg.Close, nil
}

func newModelDialer(cfg config.Config) handlers.ModelDialer {
	return func(ctx context.Context) (relay.ModelLeg, error) {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.WSHandshakeTimeout)
		defer cancel()
		ch, err := realtime.Dial(dialCtx, cfg.RealtimeURL, cfg.RealtimeModel, cfg.OpenAIAPIKey, cfg.WSWriteTimeout)
		if err != nil {
			return nil, err
		}
		err = ch.Initialize(realtime.SessionOptions{
			Voice:        cfg.RealtimeVoice,
			Instructions: systemInstructions,
			Greeting:     initialGreeting,
			Temperature:  cfg.RealtimeTemperature,
		})
		if err != nil {
			_ = ch.Close()
			return nil, err
		}
		return ch, nil
	}
}

func runBridge(ctx context.Context, logger *slog.Logger, deps bridgeDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil {
		return errors.New("missing config or store dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sink, closeStore, err := deps.openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var retriever relay.Retriever
	if cfg.RetrievalEnabled() {
		retriever = retrieval.NewClient(retrieval.Config{
			OpenAIKey: cfg.OpenAIAPIKey,
			IndexKey:  cfg.PineconeAPIKey,
			IndexHost: cfg.PineconeIndexHost,
			Namespace: cfg.PineconeNamespace,
		})
	} else {
		logger.Info("retrieval not configured, injection disabled")
	}

	life := &lifecycle.Lifecycle{}
	registry := sessions.NewRegistry()
	h := &handlers.Handlers{
		Cfg:       cfg,
		Log:       logger,
		Life:      life,
		Registry:  registry,
		Retriever: retriever,
		Store:     sink,
		Twilio:    telephony.NewRestClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.TwilioAPIBaseURL, nil),
		DialModel: newModelDialer(cfg),
	}

	httpSrv := server.NewHTTPServer(cfg, server.New(cfg, logger, h))

	logger.Info("starting call bridge",
		"addr", cfg.Addr,
		"call_origination", cfg.TwilioEnabled(),
		"retrieval", cfg.RetrievalEnabled(),
		"database", cfg.DatabaseURL != "",
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	life.SetDraining(true)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !registry.Wait(waitCtx) {
		logger.Warn("grace period expired, canceling live calls", "live_sessions", registry.Count())
		registry.CancelAll()
		// Sessions without a media stream have no cancel hook and cannot
		// finish on their own; give the rest a bounded final wait.
		finalCtx, finalCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer finalCancel()
		registry.Wait(finalCtx)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("call bridge stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps bridgeDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "callbridge: %v\n", err)
		return 1
	}

	if err := runBridge(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "callbridge: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultBridgeDeps()))
}
