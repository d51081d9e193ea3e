package texconv

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// External runs a converter tool as `<Tool> <Args...> <input.png> <output.blp>`.
type External struct {
	Tool    string
	Args    []string
	Timeout time.Duration
}

// Available reports whether the tool can be found.
func (e *External) Available() error {
	if _, err := exec.LookPath(e.Tool); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConverterUnavailable, e.Tool, err)
	}
	return nil
}

// Encode implements Encoder.
func (e *External) Encode(img image.Image) ([]byte, error) {
	if err := e.Available(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "forge-tex-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.blp")

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	if err := os.WriteFile(in, buf.Bytes(), 0644); err != nil {
		return nil, err
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := append(append([]string(nil), e.Args...), in, out)
	cmd := exec.CommandContext(ctx, e.Tool, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", e.Tool, err, bytes.TrimSpace(output))
	}

	return os.ReadFile(out)
}
