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
	"text/tabwriter"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/internal/dotenv"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/config"
	relayserver "github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/server"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
	"github.com/spf13/cobra"
)

type relayDeps struct {
	loadConfig    func() (config.Config, error)
	loadLanguages func(path string) (*language.Registry, error)
	newBackends   func(ctx context.Context, cfg config.Config, languages *language.Registry) (relayserver.Backends, func() error, error)
	newRelay      func(config.Config, *slog.Logger, relayserver.Backends) *relayserver.Server
	signalNotify  func(chan<- os.Signal, ...os.Signal)
	signalStop    func(chan<- os.Signal)
}

func defaultRelayDeps() relayDeps {
	return relayDeps{
		loadConfig:    config.LoadFromEnv,
		loadLanguages: language.LoadFile,
		newBackends:   newGoogleBackends,
		newRelay:      relayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runRelay(ctx context.Context, stderr io.Writer, languagesFile string, deps relayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.loadLanguages == nil || deps.newBackends == nil || deps.newRelay == nil {
		return errors.New("missing relay dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if languagesFile != "" {
		cfg.LanguagesFile = languagesFile
	}
	logger := newLogger(stderr, cfg)

	languages, err := deps.loadLanguages(cfg.LanguagesFile)
	if err != nil {
		return fmt.Errorf("load languages: %w", err)
	}

	backends, closeBackends, err := deps.newBackends(ctx, cfg, languages)
	if err != nil {
		return fmt.Errorf("init backends: %w", err)
	}
	defer func() {
		if closeBackends == nil {
			return
		}
		if err := closeBackends(); err != nil {
			logger.Warn("closing backends failed", "error", err)
		}
	}()

	relay := deps.newRelay(cfg, logger, backends)
	httpSrv := buildHTTPServer(cfg, relay.Handler())

	logger.Info("starting relay",
		"addr", cfg.Addr,
		"project", cfg.ProjectID,
		"translate_backend", cfg.TranslateBackend,
		"languages", languages.Len(),
		"metrics", cfg.MetricsEnabled,
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
		logger.Info("context canceled, shutting down")
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	relay.SetDraining(true)
	notified := relay.NotifySessionsDraining()
	logger.Info("draining sessions", "sessions", notified)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !relay.WaitSessions(waitCtx) {
		canceled := relay.CancelSessions()
		logger.Warn("grace period elapsed, canceled sessions", "sessions", canceled)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("relay stopped")
	return nil
}

func writeLanguages(w io.Writer, languages *language.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tSPEECH\tTRANSLATE\tVOICE")
	for _, l := range languages.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.Key, l.Name, l.SpeechCode, l.TranslationCode, l.Voice)
	}
	return tw.Flush()
}

func newRootCmd(stdout, stderr io.Writer, deps relayDeps) *cobra.Command {
	var languagesFile string

	serve := func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd.Context(), stderr, languagesFile, deps)
	}

	root := &cobra.Command{
		Use:           "translator-relay",
		Short:         "Relay live speech to Google Cloud recognition, translation and synthesis",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&languagesFile, "languages-file", "", "YAML or JSON language registry (overrides RELAY_LANGUAGES_FILE)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})

	root.AddCommand(&cobra.Command{
		Use:   "languages",
		Short: "Print the language registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := languagesFile
			if path == "" {
				path = os.Getenv("RELAY_LANGUAGES_FILE")
			}
			load := deps.loadLanguages
			if load == nil {
				load = language.LoadFile
			}
			languages, err := load(path)
			if err != nil {
				return fmt.Errorf("load languages: %w", err)
			}
			return writeLanguages(cmd.OutOrStdout(), languages)
		},
	})

	return root
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps relayDeps) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "translator-relay: %v\n", err)
		return 1
	}

	if args == nil {
		// cobra falls back to os.Args when given nil.
		args = []string{}
	}
	root := newRootCmd(stdout, stderr, deps)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "translator-relay: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultRelayDeps()))
}
