package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// textPlaceholder is replaced by the utterance in command arguments.
const textPlaceholder = "{text}"

// queueSize bounds pending utterances; extra ones are dropped.
const queueSize = 8

// ExecConfig configures an ExecSpeaker.
type ExecConfig struct {
	// Command is parsed with shell quoting rules. Arguments containing
	// {text} receive the utterance; otherwise it is appended as the last
	// argument, unless Stdin is set.
	Command string
	// Stdin sends {"text": ...} as JSON on standard input instead.
	Stdin bool
	// Timeout bounds a single utterance. Zero means 10 seconds.
	Timeout time.Duration
}

type execRequest struct {
	Text string `json:"text"`
}

// ExecSpeaker runs a speech command per utterance on a background worker.
// Utterances are spoken in order.
type ExecSpeaker struct {
	args    []string
	stdin   bool
	timeout time.Duration
	log     *slog.Logger

	queue chan string
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
	run   func(ctx context.Context, args []string, stdin []byte) error
}

// NewExecSpeaker parses cfg.Command and starts the worker.
func NewExecSpeaker(cfg ExecConfig, log *slog.Logger) (*ExecSpeaker, error) {
	args, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("speech command empty")
	}
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &ExecSpeaker{
		args:    args,
		stdin:   cfg.Stdin,
		timeout: timeout,
		log:     log.With(slog.String("component", "speech")),
		queue:   make(chan string, queueSize),
		done:    make(chan struct{}),
		run:     runCommand,
	}
	s.wg.Add(1)
	go s.worker()
	return s, nil
}

// Speak queues text. It never blocks; when the queue is full the utterance
// is dropped.
func (s *ExecSpeaker) Speak(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.queue <- text:
	default:
		s.log.Warn("speech queue full, dropping utterance", slog.String("text", text))
	}
}

// Close stops accepting utterances and waits for the current one to finish.
func (s *ExecSpeaker) Close() error {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

func (s *ExecSpeaker) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case text := <-s.queue:
			s.say(text)
		}
	}
}

func (s *ExecSpeaker) say(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	args, input, err := s.command(text)
	if err != nil {
		s.log.Error("build speech command", slog.String("error", err.Error()))
		return
	}

	start := time.Now()
	if err := s.run(ctx, args, input); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			s.log.Warn("speech timed out", slog.String("text", text), slog.Duration("timeout", s.timeout))
			return
		}
		s.log.Warn("speech failed", slog.String("text", text), slog.String("error", err.Error()))
		return
	}
	s.log.Debug("spoke", slog.String("text", text), slog.Duration("took", time.Since(start)))
}

// command renders the argv and optional stdin payload for text.
func (s *ExecSpeaker) command(text string) ([]string, []byte, error) {
	args := make([]string, len(s.args))
	substituted := false
	for i, a := range s.args {
		if strings.Contains(a, textPlaceholder) {
			a = strings.ReplaceAll(a, textPlaceholder, text)
			substituted = true
		}
		args[i] = a
	}

	if s.stdin {
		payload, err := json.Marshal(execRequest{Text: text})
		if err != nil {
			return nil, nil, err
		}
		return args, payload, nil
	}
	if !substituted {
		args = append(args, text)
	}
	return args, nil, nil
}

func runCommand(ctx context.Context, args []string, stdin []byte) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w, stderr: %s", err, msg)
		}
		return err
	}
	return nil
}
