// Command relay-probe streams a recorded audio file through a running relay
// and prints the transcripts and translations it returns.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/internal/dotenv"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/protocol"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type options struct {
	relay      string
	source     string
	target     string
	file       string
	chunkBytes int
	interval   time.Duration
	linger     time.Duration
	outDir     string
}

func main() {
	os.Exit(runMain(os.Args[1:], os.Stdout, os.Stderr))
}

func runMain(args []string, stdout, stderr io.Writer) int {
	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "relay-probe: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "relay-probe: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opt options
	cmd := &cobra.Command{
		Use:           "relay-probe --file audio.webm",
		Short:         "Stream an audio file through the translation relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opt.file) == "" {
				return errors.New("--file is required")
			}
			if opt.chunkBytes <= 0 {
				return errors.New("--chunk-bytes must be > 0")
			}
			return run(cmd.Context(), opt, cmd.OutOrStdout())
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&opt.relay, "relay", envOr("RELAY_URL", "http://localhost:8080"), "Relay base URL (http(s):// or ws(s)://)")
	f.StringVar(&opt.source, "source", "en-US", "Source language selector")
	f.StringVar(&opt.target, "target", "hi-IN", "Target language selector")
	f.StringVar(&opt.file, "file", "", "Audio file in the relay's configured encoding")
	f.IntVar(&opt.chunkBytes, "chunk-bytes", 4096, "Bytes per audio frame")
	f.DurationVar(&opt.interval, "interval", 100*time.Millisecond, "Delay between audio frames")
	f.DurationVar(&opt.linger, "linger", 5*time.Second, "How long to wait for results after the last frame")
	f.StringVar(&opt.outDir, "out-dir", "", "If set, write synthesized audio clips to this directory")
	return cmd
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// relayWSURL maps a relay base URL onto its websocket endpoint.
func relayWSURL(base string) (string, error) {
	raw := strings.TrimSpace(base)
	if raw == "" {
		return "", fmt.Errorf("empty relay url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func run(ctx context.Context, opt options, stdout io.Writer) error {
	audio, err := os.ReadFile(opt.file)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	if opt.outDir != "" {
		if err := os.MkdirAll(opt.outDir, 0o755); err != nil {
			return fmt.Errorf("create out dir: %w", err)
		}
	}

	wsURL, err := relayWSURL(opt.relay)
	if err != nil {
		return fmt.Errorf("invalid --relay: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(messageType, data)
	}

	cfg, err := json.Marshal(protocol.ClientConfig{Type: protocol.TypeConfig, SourceLang: opt.source, TargetLang: opt.target})
	if err != nil {
		return err
	}
	if err := write(websocket.TextMessage, cfg); err != nil {
		return fmt.Errorf("send config: %w", err)
	}

	readErrCh := make(chan error, 1)
	go func() {
		readErrCh <- readLoop(conn, stdout, opt.outDir)
	}()

	sendErrCh := make(chan error, 1)
	go func() {
		sendErrCh <- sendAudio(ctx, audio, opt.chunkBytes, opt.interval, func(frame []byte) error {
			return write(websocket.BinaryMessage, frame)
		})
	}()

	closeNormally := func() {
		_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}

	select {
	case err := <-readErrCh:
		return err
	case <-ctx.Done():
		closeNormally()
		return nil
	case err := <-sendErrCh:
		if err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
	}

	timer := time.NewTimer(opt.linger)
	defer timer.Stop()
	select {
	case err := <-readErrCh:
		return err
	case <-ctx.Done():
	case <-timer.C:
	}
	closeNormally()
	return nil
}

func sendAudio(ctx context.Context, audio []byte, chunkBytes int, interval time.Duration, send func([]byte) error) error {
	for off := 0; off < len(audio); off += chunkBytes {
		end := min(off+chunkBytes, len(audio))
		if err := send(audio[off:end]); err != nil {
			return err
		}
		if interval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
	return nil
}

// readLoop prints server messages until the relay closes the connection.
// A server error message ends the loop with that error.
func readLoop(conn *websocket.Conn, stdout io.Writer, outDir string) error {
	clip := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return fmt.Errorf("relay closed: %d %s", ce.Code, ce.Text)
			}
			return fmt.Errorf("read: %w", err)
		}

		var envelope struct {
			Type  string `json:"type"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("decode server message: %w", err)
		}

		switch {
		case envelope.Type == protocol.TypeConfigAck:
			var ack protocol.ServerConfigAck
			_ = json.Unmarshal(data, &ack)
			fmt.Fprintf(stdout, "configured %s -> %s\n", ack.Source, ack.Target)
		case envelope.Type == protocol.TypeWarning:
			var warn protocol.ServerWarning
			_ = json.Unmarshal(data, &warn)
			fmt.Fprintf(stdout, "warning %s: %s\n", warn.Code, warn.Message)
		case envelope.Error != "":
			return fmt.Errorf("relay error: %s", envelope.Error)
		default:
			var res protocol.ServerResult
			if err := json.Unmarshal(data, &res); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
			label := "interim"
			if res.IsFinal {
				label = "final"
			}
			fmt.Fprintf(stdout, "[%s] %s => %s\n", label, res.Transcription, res.Translation)
			if res.SynthesizedAudio == nil || outDir == "" {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(*res.SynthesizedAudio)
			if err != nil {
				return fmt.Errorf("decode synthesized audio: %w", err)
			}
			clip++
			path := filepath.Join(outDir, fmt.Sprintf("clip-%03d.mp3", clip))
			if err := os.WriteFile(path, audio, 0o644); err != nil {
				return fmt.Errorf("write clip: %w", err)
			}
			fmt.Fprintf(stdout, "saved %s\n", path)
		}
	}
}
