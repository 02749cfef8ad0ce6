package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/hearthline/callbridge/pkg/bridge/config"
	"github.com/hearthline/callbridge/pkg/bridge/store"
)

func TestRunMainReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, bridgeDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		openStore: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error) {
			t.Fatalf("openStore should not be called when config load fails")
			return nil, nil, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if stderr.String() == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunBridgeShutsDownOnSignal(t *testing.T) {
	cfg := config.Config{
		Addr:                "127.0.0.1:0",
		OpenAIAPIKey:        "sk-test",
		RealtimeURL:         "wss://example.com/realtime",
		RealtimeVoice:       "alloy",
		RealtimeTemperature: 0.8,
		RetrievalTopK:       5,
		WSWriteTimeout:      time.Second,
		WSHandshakeTimeout:  time.Second,
		ReadHeaderTimeout:   time.Second,
		ShutdownGracePeriod: time.Second,
	}

	var sigCh chan<- os.Signal
	notified := make(chan struct{})
	deps := bridgeDeps{
		loadConfig: func() (config.Config, error) { return cfg, nil },
		openStore: func(ctx context.Context, c config.Config, logger *slog.Logger) (store.Store, func(), error) {
			return store.LogOnly{Log: logger}, func() {}, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			sigCh = c
			close(notified)
		},
		signalStop: func(c chan<- os.Signal) {},
	}

	done := make(chan error, 1)
	logger := slog.New(slog.DiscardHandler)
	go func() { done <- runBridge(context.Background(), logger, deps) }()

	<-notified
	sigCh <- os.Interrupt

	if err := <-done; err != nil {
		t.Fatalf("runBridge returned error: %v", err)
	}
}

func TestRunBridgeCanceledContext(t *testing.T) {
	cfg := config.Config{
		Addr:                "127.0.0.1:0",
		OpenAIAPIKey:        "sk-test",
		RealtimeURL:         "wss://example.com/realtime",
		RealtimeVoice:       "alloy",
		RealtimeTemperature: 0.8,
		RetrievalTopK:       5,
		WSWriteTimeout:      time.Second,
		WSHandshakeTimeout:  time.Second,
		ReadHeaderTimeout:   time.Second,
		ShutdownGracePeriod: time.Second,
	}
	deps := bridgeDeps{
		loadConfig: func() (config.Config, error) { return cfg, nil },
		openStore: func(ctx context.Context, c config.Config, logger *slog.Logger) (store.Store, func(), error) {
			return store.LogOnly{Log: logger}, func() {}, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runBridge(ctx, slog.New(slog.DiscardHandler), deps)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
