package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/app"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/capture"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/config"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/detector"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/gesture"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/observe"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/server"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/speech"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/store"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/tray"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "signspeak: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := observe.NewLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mp, shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Warn("metrics shutdown", slog.String("error", err.Error()))
		}
	}()
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	gate := newGate(cfg, log)
	defer gate.Close()

	speaker, closeSpeaker, err := newSpeaker(cfg, log)
	if err != nil {
		return err
	}
	defer closeSpeaker()

	dropout, err := gesture.ParseDropoutPolicy(cfg.Speech.Dropout)
	if err != nil {
		return err
	}

	application, err := app.New(app.Config{
		Camera:          capture.NewCamera(cfg.Camera.DeviceID, cfg.Camera.Constraints()),
		Gate:            gate,
		Speaker:         speaker,
		Store:           st,
		Metrics:         metrics,
		Logger:          log,
		CameraID:        cfg.Camera.DeviceID,
		FPS:             cfg.Camera.FPS,
		StallTicks:      cfg.Detector.StallTicks,
		MotionGate:      cfg.Camera.MotionGate,
		MotionThreshold: cfg.Camera.MotionThreshold,
		Dropout:         dropout,
	})
	if err != nil {
		return err
	}
	defer application.Close()

	hub := server.NewUpdatesHub(application.Snapshot, log)
	application.AddSink(hub)

	webDir := findWebDir(cfg.WebDir)
	if webDir != "" {
		log.Info("serving static files", slog.String("dir", webDir))
	}

	srv := server.New(server.Config{
		StaticDir:      webDir,
		Store:          st,
		Controller:     application,
		Preview:        application.Preview(),
		Updates:        hub,
		MetricsHandler: promhttp.Handler(),
		Metrics:        metrics,
		Logger:         log,
	})
	httpServer := srv.HTTPServer(cfg.HTTP.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", slog.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		application.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Tray {
		runTray(gctx, stop, application, "http://"+cfg.HTTP.Addr, log)
	}

	return g.Wait()
}

// runTray blocks on the main goroutine until the tray quits or ctx ends.
func runTray(ctx context.Context, quit func(), application *app.App, url string, log *slog.Logger) {
	t := tray.New()
	t.OnToggle(func() {
		if err := application.Toggle(ctx); err != nil {
			log.Warn("toggle recognition", slog.String("error", err.Error()))
		}
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			log.Warn("open browser", slog.String("error", err.Error()))
		}
	})
	t.OnQuit(quit)
	application.AddSink(t)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
	quit()
}

func newGate(cfg config.Config, log *slog.Logger) *detector.Gate {
	if cfg.Detector.Mode == config.DetectorMock {
		log.Warn("using mock detector, no hands will be recognized")
		return detector.Ready(detector.NewMockDetector())
	}
	return detector.NewGate(detector.MediaPipeLoader(cfg.Detector.Config, log))
}

func newSpeaker(cfg config.Config, log *slog.Logger) (speech.Speaker, func(), error) {
	if !cfg.Speech.Enabled {
		return speech.Nop{}, func() {}, nil
	}
	s, err := speech.NewExecSpeaker(speech.ExecConfig{
		Command: cfg.Speech.SpeechCommand(),
		Stdin:   cfg.Speech.Stdin,
		Timeout: time.Duration(cfg.Speech.TimeoutMS) * time.Millisecond,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("create speaker: %w", err)
	}
	return s, func() { s.Close() }, nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir returns the first existing directory among configured, "web",
// "../web", "../../web" and ~/.signspeak/web, or "" if none exists.
func findWebDir(configured string) string {
	candidates := []string{configured, "web", "../web", "../../web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".signspeak", "web"))
	}

	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
