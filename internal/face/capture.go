package face

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrCaptureTimeout is returned when the camera does not produce an image
// within the configured bound.
var ErrCaptureTimeout = errors.New("image capture timed out")

// Capturer grabs a single still image from a camera.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CommandCapturer runs an external program that writes one JPEG frame to
// stdout, e.g. "fswebcam --no-banner -r 640x480 -".
type CommandCapturer struct {
	name    string
	args    []string
	timeout time.Duration
}

// NewCommandCapturer parses command into program and arguments. A zero
// timeout defaults to 10 seconds.
func NewCommandCapturer(command string, timeout time.Duration) (*CommandCapturer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("capture command is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CommandCapturer{name: fields[0], args: fields[1:], timeout: timeout}, nil
}

// Capture runs the command and returns its stdout. It never blocks longer
// than the configured timeout.
func (c *CommandCapturer) Capture(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrCaptureTimeout, c.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("run capture command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("capture command produced no image")
	}
	return stdout.Bytes(), nil
}
