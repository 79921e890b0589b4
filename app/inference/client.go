package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	appconfig "github.com/Promitpolok/ai-image-telegram-bot/app/config"
	"github.com/Promitpolok/ai-image-telegram-bot/core/logger"
	"github.com/Promitpolok/ai-image-telegram-bot/core/telegram/netutil"
)

// Hosted inference can block for minutes while a cold model loads, so
// the response body size is the only thing worth bounding here.
const maxResponseBytes = 32 << 20

// captionFallback is returned when the captioning model answers with an
// empty result instead of text.
const captionFallback = "No caption generated"

// Client talks to the Hugging Face Inference API. It is stateless and
// safe for concurrent use.
type Client struct {
	cfg  appconfig.HuggingFaceConfig
	http *http.Client
}

// NewClient builds an inference client from configuration.
func NewClient(cfg appconfig.HuggingFaceConfig) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout(),
			Transport: &netutil.RetryTransport{
				Base:       transport,
				MaxRetries: 2,
				Backoff:    2 * time.Second,
			},
		},
	}
}

func (c *Client) modelURL(model string) string {
	return c.cfg.BaseURL + "/models/" + model
}

// GenerateImage runs text-to-image and returns the raw image bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string, params GenerateParams) ([]byte, error) {
	model := c.cfg.Models.TextToImage
	body, err := json.Marshal(generateRequest{Inputs: prompt, Parameters: params})
	if err != nil {
		return nil, &Error{Op: "generate", Model: model, Err: err}
	}
	return c.postForImage(ctx, "generate", model, "application/json", bytes.NewReader(body))
}

// TransformImage runs image-to-image guided by prompt and returns the
// raw result bytes. The wire format depends on configuration: multipart
// upload or base64 inside JSON.
func (c *Client) TransformImage(ctx context.Context, image []byte, prompt string, params TransformParams) ([]byte, error) {
	model := c.cfg.Models.ImageToImage

	var (
		payload     bytes.Buffer
		contentType string
	)
	switch c.cfg.ImageToImagePayload {
	case appconfig.PayloadJSONB64:
		req := transformJSONRequest{
			Inputs: transformInputs{
				Image:  base64.StdEncoding.EncodeToString(image),
				Prompt: prompt,
			},
			Parameters: params,
		}
		if err := json.NewEncoder(&payload).Encode(req); err != nil {
			return nil, &Error{Op: "transform", Model: model, Err: err}
		}
		contentType = "application/json"
	default:
		w := multipart.NewWriter(&payload)
		part, err := w.CreateFormFile("file", "image.png")
		if err == nil {
			_, err = part.Write(image)
		}
		if err == nil {
			err = w.WriteField("prompt", prompt)
		}
		if err == nil {
			err = w.Close()
		}
		if err != nil {
			return nil, &Error{Op: "transform", Model: model, Err: err}
		}
		contentType = w.FormDataContentType()
	}

	return c.postForImage(ctx, "transform", model, contentType, bytes.NewReader(payload.Bytes()))
}

// CaptionImage runs image captioning and returns the generated text.
func (c *Client) CaptionImage(ctx context.Context, image []byte) (string, error) {
	model := c.cfg.Models.Captioning
	raw, err := c.post(ctx, "caption", model, "application/octet-stream", bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	var out []captionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &Error{Op: "caption", Model: model, Body: logger.SanitizeLimit(string(raw), 256), Err: err}
	}
	// Some caption models answer 200 with an empty result set; that is
	// a degenerate success, not a backend failure.
	if len(out) == 0 || out[0].GeneratedText == "" {
		return captionFallback, nil
	}
	return out[0].GeneratedText, nil
}

// UpscaleImage runs super-resolution and returns the raw result bytes.
func (c *Client) UpscaleImage(ctx context.Context, image []byte) ([]byte, error) {
	return c.postForImage(ctx, "upscale", c.cfg.Models.Upscaling, "application/octet-stream", bytes.NewReader(image))
}

func (c *Client) postForImage(ctx context.Context, op, model, contentType string, body io.Reader) ([]byte, error) {
	raw, err := c.post(ctx, op, model, contentType, body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &Error{Op: op, Model: model, Err: fmt.Errorf("empty image response")}
	}
	return raw, nil
}

func (c *Client) post(ctx context.Context, op, model, contentType string, body io.Reader) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL(model), body)
	if err != nil {
		return nil, &Error{Op: op, Model: model, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error(ctx, "hf", "inference.failed",
			slog.String("op", op),
			slog.String("model", model),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			slog.String("err", err.Error()),
		)
		return nil, &Error{Op: op, Model: model, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Op: op, Model: model, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		infErr := &Error{
			Op:     op,
			Model:  model,
			Status: resp.StatusCode,
			Body:   logger.SanitizeLimit(string(raw), 256),
		}
		logger.Error(ctx, "hf", "inference.failed",
			slog.String("op", op),
			slog.String("model", model),
			slog.Int("http_status", resp.StatusCode),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			slog.String("err_code", infErr.Code()),
		)
		return nil, infErr
	}

	logger.Info(ctx, "hf", "inference.done",
		slog.String("op", op),
		slog.String("model", model),
		slog.Int("bytes", len(raw)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return raw, nil
}
