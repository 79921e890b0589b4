package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrOCRUnavailable means no OCR engine is installed on the host.
var ErrOCRUnavailable = errors.New("ocr engine not available: tesseract binary not found")

// ExtractText runs OCR over the image using the tesseract binary.
// It returns ErrOCRUnavailable when the binary is missing so callers
// can tell the user the feature is not set up rather than broken.
func ExtractText(ctx context.Context, data []byte) (string, error) {
	bin, err := exec.LookPath("tesseract")
	if err != nil {
		return "", ErrOCRUnavailable
	}

	// "-" reads the image from stdin and writes recognized text to stdout.
	cmd := exec.CommandContext(ctx, bin, "stdin", "stdout")
	cmd.Stdin = bytes.NewReader(data)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("tesseract: %s: %w", msg, err)
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}

	return strings.TrimSpace(out.String()), nil
}
