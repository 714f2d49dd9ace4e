// Package camera is the boundary to the external still-capture tool.
package camera

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultCommand is the capture tool invoked on Raspberry Pi OS.
const DefaultCommand = "rpicam-jpeg"

// Request describes one still capture.
type Request struct {
	OutputPath string
	Width      int
	Height     int
	Quality    int // JPEG quality, 0-100
}

// Result is the outcome of a capture attempt.
type Result struct {
	Path     string
	Duration time.Duration
	Err      error
}

func (r Result) IsSuccess() bool {
	return r.Err == nil
}

// ErrorText returns the failure description suitable for a fail ack.
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Capturer produces a still image for a request.
type Capturer interface {
	Capture(ctx context.Context, req Request) Result
}

// ExecCapturer shells out to the capture tool synchronously. The tool's
// own warm-up is cut short with a minimal internal timeout; exposure
// settling is the orchestrator's job, not the tool's.
type ExecCapturer struct {
	command string
	timeout time.Duration
}

// NewExecCapturer creates a capturer running the given command with a
// hard per-invocation timeout.
func NewExecCapturer(command string, timeout time.Duration) *ExecCapturer {
	if command == "" {
		command = DefaultCommand
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExecCapturer{command: command, timeout: timeout}
}

// Capture implements Capturer.
func (c *ExecCapturer) Capture(ctx context.Context, req Request) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command,
		"-o", req.OutputPath,
		"--width", strconv.Itoa(req.Width),
		"--height", strconv.Itoa(req.Height),
		"-q", strconv.Itoa(req.Quality),
		"--nopreview",
		"-t", "1",
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{Duration: time.Since(start), Err: fmt.Errorf("%s: timeout after %s", c.command, c.timeout)}
		}
		return Result{Duration: time.Since(start), Err: fmt.Errorf("%s: %w%s", c.command, err, outputSnippet(output))}
	}

	return Result{Path: req.OutputPath, Duration: time.Since(start)}
}

// outputSnippet folds tool output into a single line for the fail ack.
func outputSnippet(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\n", " ")
	const maxLen = 200
	if len(text) > maxLen {
		text = text[:maxLen]
	}
	return ": " + text
}
