// Package config loads signspeak settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/capture"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/detector"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/gesture"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/speech"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIGNSPEAK_"

// Detector modes.
const (
	DetectorMediaPipe = "mediapipe"
	DetectorMock      = "mock"
)

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type CameraConfig struct {
	DeviceID        int     `yaml:"device_id"`
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	FPS             int     `yaml:"fps"`
	MotionGate      bool    `yaml:"motion_gate"`
	MotionThreshold float64 `yaml:"motion_threshold"`
}

// Constraints returns the capture constraints for the camera section.
func (c CameraConfig) Constraints() capture.Constraints {
	return capture.Constraints{Width: c.Width, Height: c.Height, FPS: c.FPS}
}

type DetectorConfig struct {
	Mode            string `yaml:"mode"`
	detector.Config `yaml:",inline"`
	// StallTicks abandons a detection that has been in flight this many
	// frame ticks.
	StallTicks int `yaml:"stall_ticks"`
}

type SpeechConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Command   string `yaml:"command"`
	Stdin     bool   `yaml:"stdin"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Dropout   string `yaml:"dropout"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// Config is the full application configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	HTTP     HTTPConfig     `yaml:"http"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Speech   SpeechConfig   `yaml:"speech"`
	Store    StoreConfig    `yaml:"store"`
	WebDir   string         `yaml:"web_dir"`
	Tray     bool           `yaml:"tray"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	c := capture.DefaultConstraints()
	return Config{
		LogLevel: "info",
		HTTP:     HTTPConfig{Addr: "127.0.0.1:8080"},
		Camera: CameraConfig{
			DeviceID:        0,
			Width:           c.Width,
			Height:          c.Height,
			FPS:             c.FPS,
			MotionGate:      false,
			MotionThreshold: 1.0,
		},
		Detector: DetectorConfig{
			Mode:       DetectorMediaPipe,
			Config:     detector.DefaultConfig(),
			StallTicks: 30,
		},
		Speech: SpeechConfig{
			Enabled:   true,
			TimeoutMS: 10000,
			Dropout:   gesture.DropoutHold.String(),
		},
		Store: StoreConfig{
			Path: filepath.Join(home, ".signspeak", "signspeak.db"),
		},
		WebDir: "web",
		Tray:   true,
	}
}

// Load returns Default overlaid with the YAML file at path (if non-empty)
// and then with SIGNSPEAK_* environment variables. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over Default without applying the
// environment.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.HTTP.Addr, "HTTP_ADDR")
	overrideInt(&cfg.Camera.DeviceID, "CAMERA_DEVICE_ID")
	overrideInt(&cfg.Camera.Width, "CAMERA_WIDTH")
	overrideInt(&cfg.Camera.Height, "CAMERA_HEIGHT")
	overrideInt(&cfg.Camera.FPS, "CAMERA_FPS")
	overrideBool(&cfg.Camera.MotionGate, "CAMERA_MOTION_GATE")
	overrideFloat(&cfg.Camera.MotionThreshold, "CAMERA_MOTION_THRESHOLD")
	overrideString(&cfg.Detector.Mode, "DETECTOR_MODE")
	overrideInt(&cfg.Detector.MaxHands, "DETECTOR_MAX_HANDS")
	overrideInt(&cfg.Detector.ModelComplexity, "DETECTOR_MODEL_COMPLEXITY")
	overrideFloat(&cfg.Detector.MinConfidence, "DETECTOR_MIN_DETECTION_CONFIDENCE")
	overrideFloat(&cfg.Detector.MinTrackingConf, "DETECTOR_MIN_TRACKING_CONFIDENCE")
	overrideInt(&cfg.Detector.StallTicks, "DETECTOR_STALL_TICKS")
	overrideBool(&cfg.Speech.Enabled, "SPEECH_ENABLED")
	overrideString(&cfg.Speech.Command, "SPEECH_COMMAND")
	overrideBool(&cfg.Speech.Stdin, "SPEECH_STDIN")
	overrideInt(&cfg.Speech.TimeoutMS, "SPEECH_TIMEOUT_MS")
	overrideString(&cfg.Speech.Dropout, "SPEECH_DROPOUT")
	overrideString(&cfg.Store.Path, "STORE_PATH")
	overrideString(&cfg.WebDir, "WEB_DIR")
	overrideBool(&cfg.Tray, "TRAY")
}

func overrideString(target *string, key string) {
	if value, ok := os.LookupEnv(EnvPrefix + key); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, key string) {
	if value, ok := os.LookupEnv(EnvPrefix + key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, key string) {
	if value, ok := os.LookupEnv(EnvPrefix + key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, key string) {
	if value, ok := os.LookupEnv(EnvPrefix + key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

// Validate reports every invalid setting in cfg as one joined error.
func Validate(cfg Config) error {
	var errs []error

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if cfg.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	if cfg.Camera.DeviceID < 0 {
		errs = append(errs, errors.New("camera.device_id must be >= 0"))
	}
	if cfg.Camera.FPS <= 0 || cfg.Camera.FPS > 120 {
		errs = append(errs, errors.New("camera.fps must be between 1 and 120"))
	}
	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		errs = append(errs, errors.New("camera.width and camera.height must be >= 0"))
	}
	if cfg.Camera.MotionGate && cfg.Camera.MotionThreshold <= 0 {
		errs = append(errs, errors.New("camera.motion_threshold must be positive when motion_gate is enabled"))
	}
	switch cfg.Detector.Mode {
	case DetectorMediaPipe, DetectorMock:
	default:
		errs = append(errs, fmt.Errorf("detector.mode %q must be one of mediapipe|mock", cfg.Detector.Mode))
	}
	if cfg.Detector.MaxHands < 1 {
		errs = append(errs, errors.New("detector.max_hands must be >= 1"))
	}
	if cfg.Detector.ModelComplexity < 0 || cfg.Detector.ModelComplexity > 1 {
		errs = append(errs, errors.New("detector.model_complexity must be 0 or 1"))
	}
	if !unitInterval(cfg.Detector.MinConfidence) {
		errs = append(errs, errors.New("detector.min_detection_confidence must be within [0,1]"))
	}
	if !unitInterval(cfg.Detector.MinTrackingConf) {
		errs = append(errs, errors.New("detector.min_tracking_confidence must be within [0,1]"))
	}
	if cfg.Detector.StallTicks < 1 {
		errs = append(errs, errors.New("detector.stall_ticks must be >= 1"))
	}
	if cfg.Speech.TimeoutMS < 0 {
		errs = append(errs, errors.New("speech.timeout_ms must be >= 0"))
	}
	if _, err := gesture.ParseDropoutPolicy(cfg.Speech.Dropout); err != nil {
		errs = append(errs, fmt.Errorf("speech.dropout: %w", err))
	}
	if cfg.Store.Path == "" {
		errs = append(errs, errors.New("store.path must not be empty"))
	}

	return errors.Join(errs...)
}

func unitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", s)
	}
}

// SpeechCommand returns the configured command or the platform default.
func (c SpeechConfig) SpeechCommand() string {
	if strings.TrimSpace(c.Command) != "" {
		return c.Command
	}
	return speech.DefaultCommand()
}
