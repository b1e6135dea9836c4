package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when the MediaPipe helper script is missing.
var ErrServiceNotFound = errors.New("mediapipe_service.py not found")

const (
	// idleShutdown stops the helper process after a period without frames.
	idleShutdown = 30 * time.Second
	// stopGrace is how long a helper may take to exit after its stdin closes
	// before it is killed.
	stopGrace = 2 * time.Second
)

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
// Frames are sent as a 4-byte big-endian length followed by JPEG bytes; each
// reply is a single JSON line.
//
// One exchange runs at a time. A caller whose context ends while waiting for
// its turn gives up; one whose context ends while waiting for a reply kills
// the helper, which is restarted by the next Detect.
type MediaPipeDetector struct {
	config Config
	log    *slog.Logger
	newCmd func() *exec.Cmd

	// sem is held for a whole exchange and for any change to the process.
	sem       chan struct{}
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	idleTimer *time.Timer

	// pmu guards proc so that kill never waits for sem.
	pmu  sync.Mutex
	proc *os.Process
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config, log *slog.Logger) (*MediaPipeDetector, error) {
	scriptPath := findMediaPipeScript()
	if scriptPath == "" {
		return nil, ErrServiceNotFound
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}
	args := helperArgs(scriptPath, config)

	return newMediaPipeDetector(config, log, func() *exec.Cmd {
		return exec.Command(pythonPath, args...)
	}), nil
}

func newMediaPipeDetector(config Config, log *slog.Logger, newCmd func() *exec.Cmd) *MediaPipeDetector {
	if log == nil {
		log = slog.Default()
	}
	return &MediaPipeDetector{
		config: config,
		log:    log.With(slog.String("component", "mediapipe")),
		newCmd: newCmd,
		sem:    make(chan struct{}, 1),
	}
}

// MediaPipeLoader returns a Loader that starts the helper process eagerly so
// that a missing interpreter or script surfaces as a load failure.
func MediaPipeLoader(config Config, log *slog.Logger) Loader {
	return func(ctx context.Context) (Detector, error) {
		d, err := NewMediaPipeDetector(config, log)
		if err != nil {
			return nil, err
		}
		if err := d.start(ctx); err != nil {
			return nil, err
		}
		return d, nil
	}
}

// start launches the helper if it is not running.
func (d *MediaPipeDetector) start(ctx context.Context) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	if err := d.ensureStarted(); err != nil {
		return err
	}
	d.resetIdleTimer()
	return nil
}

func (d *MediaPipeDetector) acquire(ctx context.Context) error {
	select {
	case d.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *MediaPipeDetector) release() {
	<-d.sem
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}

	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	line, err := d.exchange(ctx, buf.GetBytes())
	if err != nil {
		// The stream is out of step with the helper; start afresh next time.
		if stopErr := d.shutdown(); stopErr != nil {
			d.log.Debug("helper exited", slog.String("error", stopErr.Error()))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	hands, err := parseResponse([]byte(line))
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return hands, nil
}

// exchange writes one frame and reads one reply. Cancelling ctx kills the
// helper, which unblocks the read.
func (d *MediaPipeDetector) exchange(ctx context.Context, data []byte) (string, error) {
	stop := context.AfterFunc(ctx, d.kill)
	defer stop()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return "", fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return "", fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// Close shuts down the Python process. An exchange in flight is aborted.
func (d *MediaPipeDetector) Close() error {
	retry := time.NewTicker(50 * time.Millisecond)
	defer retry.Stop()
	for acquired := false; !acquired; {
		select {
		case d.sem <- struct{}{}:
			acquired = true
		default:
			// The holder may still be starting the helper; keep killing.
			d.kill()
			select {
			case d.sem <- struct{}{}:
				acquired = true
			case <-retry.C:
			}
		}
	}
	defer d.release()
	return d.shutdown()
}

// kill terminates the helper without waiting for the current exchange.
func (d *MediaPipeDetector) kill() {
	d.pmu.Lock()
	defer d.pmu.Unlock()
	if d.proc != nil {
		d.proc.Kill()
	}
}

// helperArgs renders the detector configuration as helper flags.
func helperArgs(scriptPath string, config Config) []string {
	return []string{
		scriptPath,
		"--max-hands", strconv.Itoa(config.MaxHands),
		"--model-complexity", strconv.Itoa(config.ModelComplexity),
		"--min-detection-confidence", strconv.FormatFloat(config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(config.MinTrackingConf, 'f', -1, 64),
	}
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	cmd := d.newCmd()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.pmu.Lock()
	d.proc = cmd.Process
	d.pmu.Unlock()

	d.log.Info("mediapipe service started", slog.String("path", cmd.Path), slog.Int("pid", cmd.Process.Pid))
	return nil
}

// shutdown closes the helper's stdin and waits for it to exit, killing it
// after stopGrace. The caller holds sem.
func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	d.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- d.cmd.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(stopGrace):
		d.kill()
		err = <-done
	}

	d.pmu.Lock()
	d.proc = nil
	d.pmu.Unlock()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	d.log.Info("mediapipe service stopped")
	return err
}

// resetIdleTimer schedules an idle shutdown. The caller holds sem.
func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		// A busy detector is not idle.
		select {
		case d.sem <- struct{}{}:
		default:
			return
		}
		defer d.release()
		if err := d.shutdown(); err != nil {
			d.log.Warn("idle shutdown failed", slog.String("error", err.Error()))
		}
	})
}

func findMediaPipeScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".signspeak/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
// It checks for venv/bin/python relative to the project directory.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".signspeak/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// parseResponse decodes one reply line from the helper. Hands are copied
// point for point; a short point list is kept short so that classification
// can reject it.
func parseResponse(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe service: %s", response.Error)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}
	return result, nil
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	n := len(h.Points)
	if n > NumLandmarks {
		n = NumLandmarks
	}

	lm := HandLandmarks{
		Points:     make([]Point3D, n),
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	for i := 0; i < n; i++ {
		lm.Points[i] = Point3D{X: h.Points[i].X, Y: h.Points[i].Y, Z: h.Points[i].Z}
	}

	return lm
}
