package asr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/tboby/wyoming-onnx-asr/internal/audio"
	"github.com/tboby/wyoming-onnx-asr/internal/config"
)

// Command runs an external recognizer process per utterance. The waveform
// is written to the process's stdin as a 16-bit WAV file; the first
// non-empty stdout line is taken as the transcript. Language, sample rate,
// model name, and device are passed through the environment so arbitrary
// runtime wrappers (ONNX, NeMo, whisper.cpp) can be attached without
// rebuilding the server.
type Command struct {
	log    *slog.Logger
	path   string
	args   []string
	name   string
	device string
}

// NewCommand builds the command backend and verifies the executable can be
// resolved, so a missing binary fails at startup rather than on the first
// utterance.
func NewCommand(cfg config.ModelConfig, logger *slog.Logger) (*Command, error) {
	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("asr: recognizer command %q not found: %w", cfg.Command, err)
	}

	return &Command{
		log:    logger,
		path:   path,
		args:   cfg.Args,
		name:   cfg.Name,
		device: cfg.Device,
	}, nil
}

// Recognize implements the Recognizer interface.
func (c *Command) Recognize(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	wav, err := audio.EncodeWAVFloat32(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("asr: failed to encode utterance: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdin = bytes.NewReader(wav)
	cmd.Env = append(cmd.Environ(),
		"ASR_LANGUAGE="+language,
		fmt.Sprintf("ASR_SAMPLE_RATE=%d", sampleRate),
		"ASR_MODEL="+c.name,
		"ASR_DEVICE="+c.device,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("asr: failed to open recognizer stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("asr: failed to open recognizer stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("asr: failed to start recognizer %s: %w", c.path, err)
	}

	go c.logLines(stderr)

	text, readErr := firstLine(stdout)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return "", fmt.Errorf("asr: recognizer interrupted: %w", ctx.Err())
	}
	if waitErr != nil {
		return "", fmt.Errorf("asr: recognizer %s failed: %w", c.path, waitErr)
	}
	if readErr != nil {
		return "", fmt.Errorf("asr: failed to read recognizer output: %w", readErr)
	}
	if text == "" {
		return "", fmt.Errorf("asr: recognizer %s produced no transcript", c.path)
	}

	return text, nil
}

// firstLine returns the first non-empty trimmed line of r, draining the
// rest so the process is never blocked on a full pipe.
func firstLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var text string
	for scanner.Scan() {
		if text == "" {
			text = strings.TrimSpace(scanner.Text())
		}
	}
	return text, scanner.Err()
}

// logLines forwards recognizer stderr to the debug log.
func (c *Command) logLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			c.log.Debug("recognizer stderr", slog.String("line", line))
		}
	}
}
