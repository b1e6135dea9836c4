// Package main provides a speech helper for signspeak's stdin speech mode.
// It reads {"text": ...} from stdin, speaks it with the platform synthesizer
// and writes a JSON response to stdout.
//
//	speech:
//	  command: signspeak-say -voice Samantha -rate 180
//	  stdin: true
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// Request represents the input from the speech executor.
type Request struct {
	Text string `json:"text"`
}

// Response represents the output to the speech executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// options tune the synthesizer. Zero values use its defaults.
type options struct {
	voice string
	rate  int
}

func main() {
	var opts options
	flag.StringVar(&opts.voice, "voice", "", "synthesizer voice")
	flag.IntVar(&opts.rate, "rate", 0, "speaking rate in words per minute")
	flag.Parse()

	if err := speak(os.Stdin, runtime.GOOS, opts, run); err != nil {
		writeResponse(os.Stdout, Response{Success: false, Error: err.Error()})
		os.Exit(1)
	}
	writeResponse(os.Stdout, Response{Success: true})
}

// speak decodes a request from r and runs the synthesizer for goos.
func speak(r io.Reader, goos string, opts options, runner func(args []string) error) error {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return errors.New("text is required")
	}

	args, err := buildCommand(goos, text, opts)
	if err != nil {
		return err
	}
	return runner(args)
}

// buildCommand returns the synthesizer invocation for goos.
func buildCommand(goos, text string, opts options) ([]string, error) {
	switch goos {
	case "darwin":
		args := []string{"say"}
		if opts.voice != "" {
			args = append(args, "-v", opts.voice)
		}
		if opts.rate > 0 {
			args = append(args, "-r", strconv.Itoa(opts.rate))
		}
		return append(args, text), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		args := []string{"espeak-ng"}
		if opts.voice != "" {
			args = append(args, "-v", opts.voice)
		}
		if opts.rate > 0 {
			args = append(args, "-s", strconv.Itoa(opts.rate))
		}
		return append(args, text), nil
	case "windows":
		// PowerShell single-quoted strings escape ' as ''.
		quoted := "'" + strings.ReplaceAll(text, "'", "''") + "'"
		script := "Add-Type -AssemblyName System.Speech; " +
			"$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; "
		if opts.voice != "" {
			script += "$s.SelectVoice('" + strings.ReplaceAll(opts.voice, "'", "''") + "'); "
		}
		script += "$s.Speak(" + quoted + ")"
		return []string{"powershell", "-NoProfile", "-Command", script}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

func writeResponse(w io.Writer, resp Response) {
	json.NewEncoder(w).Encode(resp)
}

// run executes args and returns any error with the command output.
func run(args []string) error {
	cmd := exec.Command(args[0], args[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
