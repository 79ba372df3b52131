package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/config"
	relayserver "github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/server"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
)

func noSignals() (func(chan<- os.Signal, ...os.Signal), func(chan<- os.Signal)) {
	return func(c chan<- os.Signal, sig ...os.Signal) {}, func(c chan<- os.Signal) {}
}

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	notify, stop := noSignals()
	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), nil, io.Discard, &stderr, relayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		loadLanguages: language.LoadFile,
		newBackends: func(ctx context.Context, cfg config.Config, languages *language.Registry) (relayserver.Backends, func() error, error) {
			t.Fatalf("newBackends should not be called when config load fails")
			return relayserver.Backends{}, nil, nil
		},
		newRelay:     relayserver.New,
		signalNotify: notify,
		signalStop:   stop,
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); !strings.Contains(got, "translator-relay: load config: boom") {
		t.Fatalf("stderr=%q", got)
	}
}

func TestRunMain_BackendFailureIsReported(t *testing.T) {
	t.Parallel()

	notify, stop := noSignals()
	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), []string{"serve"}, io.Discard, &stderr, relayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{Addr: "127.0.0.1:0"}, nil
		},
		loadLanguages: language.LoadFile,
		newBackends: func(ctx context.Context, cfg config.Config, languages *language.Registry) (relayserver.Backends, func() error, error) {
			return relayserver.Backends{}, nil, errors.New("no credentials")
		},
		newRelay:     relayserver.New,
		signalNotify: notify,
		signalStop:   stop,
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); !strings.Contains(got, "init backends: no credentials") {
		t.Fatalf("stderr=%q", got)
	}
}

func TestRunRelay_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	notify, stop := noSignals()
	var closed atomic.Bool
	var gotLanguages atomic.Int64
	deps := relayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{
				Addr:                "127.0.0.1:0",
				ReadHeaderTimeout:   time.Second,
				ShutdownGracePeriod: time.Second,
			}, nil
		},
		loadLanguages: language.LoadFile,
		newBackends: func(ctx context.Context, cfg config.Config, languages *language.Registry) (relayserver.Backends, func() error, error) {
			gotLanguages.Store(int64(languages.Len()))
			return relayserver.Backends{Languages: languages}, func() error {
				closed.Store(true)
				return nil
			}, nil
		},
		newRelay:     relayserver.New,
		signalNotify: notify,
		signalStop:   stop,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runRelay(ctx, io.Discard, "", deps)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runRelay error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runRelay did not stop after cancel")
	}
	if !closed.Load() {
		t.Fatal("backends were not closed")
	}
	if got := gotLanguages.Load(); got != int64(language.Default().Len()) {
		t.Fatalf("languages=%d, want default table", got)
	}
}

func TestRunRelay_MissingDependencies(t *testing.T) {
	t.Parallel()

	err := runRelay(context.Background(), io.Discard, "", relayDeps{})
	if err == nil {
		t.Fatal("expected error for empty deps")
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
}

func TestRelayHandlerStack_Smoke(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := relayserver.New(config.Config{
		CORSAllowedOrigins: map[string]struct{}{},
		ReadHeaderTimeout:  time.Second,
	}, logger, relayserver.Backends{})

	srv := httptest.NewServer(relay.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}
}

func TestNewLogger_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, config.Config{LogFormat: "json"}).Info("hello", "k", "v")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("json output=%q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, config.Config{LogFormat: "text"}).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello k=v") {
		t.Fatalf("text output=%q", buf.String())
	}
}

func TestLanguagesCommand_PrintsDefaultTable(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	exitCode := runMain(context.Background(), []string{"languages", "--languages-file", ""}, &stdout, io.Discard, relayDeps{
		loadLanguages: language.LoadFile,
	})
	if exitCode != 0 {
		t.Fatalf("exitCode=%d, want 0", exitCode)
	}
	out := stdout.String()
	for _, want := range []string{"KEY", "en-US", "hi-IN", "hi-IN-Standard-A"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLanguagesCommand_ReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "languages.yaml")
	body := `languages:
  - key: de-DE
    name: German
    speech_code: de-DE
    translation_code: de
    voice: de-DE-Standard-F
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	exitCode := runMain(context.Background(), []string{"languages", "--languages-file", path}, &stdout, io.Discard, relayDeps{
		loadLanguages: language.LoadFile,
	})
	if exitCode != 0 {
		t.Fatalf("exitCode=%d, want 0", exitCode)
	}
	out := stdout.String()
	if !strings.Contains(out, "de-DE-Standard-F") || strings.Contains(out, "en-US") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestLanguagesCommand_MissingFile(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), []string{"languages", "--languages-file", filepath.Join(t.TempDir(), "nope.yaml")}, io.Discard, &stderr, relayDeps{
		loadLanguages: language.LoadFile,
	})
	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if !strings.Contains(stderr.String(), "load languages") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}
