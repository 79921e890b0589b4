package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/Promitpolok/ai-image-telegram-bot/app/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := appconfig.HuggingFaceConfig{
		Token:          "hf_test",
		BaseURL:        srv.URL,
		TimeoutSeconds: 5,
		Models: appconfig.ModelsConfig{
			TextToImage:  "acme/sdxl",
			ImageToImage: "acme/pix2pix",
			Captioning:   "acme/blip",
			Upscaling:    "acme/swin2sr",
		},
		GuidanceScale:       7.5,
		NumInferenceSteps:   30,
		Strength:            0.8,
		ImageToImagePayload: appconfig.PayloadMultipart,
	}
	return NewClient(cfg), srv
}

func TestGenerateImageRequestShape(t *testing.T) {
	fakeImage := []byte{0x89, 'P', 'N', 'G'}
	var gotPath, gotAuth string
	var gotBody generateRequest

	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write(fakeImage)
	})

	out, err := client.GenerateImage(context.Background(), "a red fox", GenerateParams{
		GuidanceScale:     7.5,
		NumInferenceSteps: 30,
		Width:             768,
		Height:            1152,
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(out) != string(fakeImage) {
		t.Error("image bytes not passed through")
	}
	if gotPath != "/models/acme/sdxl" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer hf_test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.Inputs != "a red fox" {
		t.Errorf("inputs = %q", gotBody.Inputs)
	}
	if gotBody.Parameters.Width != 768 || gotBody.Parameters.Height != 1152 {
		t.Errorf("size = %dx%d", gotBody.Parameters.Width, gotBody.Parameters.Height)
	}
}

func TestTransformImageMultipart(t *testing.T) {
	image := []byte("raw-image")
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("prompt"); got != "make it snowy" {
			t.Errorf("prompt = %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != string(image) {
			t.Error("image part mismatch")
		}
		_, _ = w.Write([]byte("result"))
	})

	out, err := client.TransformImage(context.Background(), image, "make it snowy", TransformParams{Strength: 0.8})
	if err != nil {
		t.Fatalf("TransformImage: %v", err)
	}
	if string(out) != "result" {
		t.Errorf("out = %q", out)
	}
}

func TestTransformImageJSONBase64(t *testing.T) {
	image := []byte{1, 2, 3}
	var got transformJSONRequest
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte("result"))
	})
	client.cfg.ImageToImagePayload = appconfig.PayloadJSONB64

	if _, err := client.TransformImage(context.Background(), image, "sketch", TransformParams{}); err != nil {
		t.Fatalf("TransformImage: %v", err)
	}
	if got.Inputs.Prompt != "sketch" {
		t.Errorf("prompt = %q", got.Inputs.Prompt)
	}
	decoded, err := base64.StdEncoding.DecodeString(got.Inputs.Image)
	if err != nil || string(decoded) != string(image) {
		t.Errorf("image b64 = %q (%v)", got.Inputs.Image, err)
	}
}

func TestCaptionImage(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("content type = %q", ct)
		}
		_, _ = w.Write([]byte(`[{"generated_text":"a dog on a beach"}]`))
	})

	text, err := client.CaptionImage(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("CaptionImage: %v", err)
	}
	if text != "a dog on a beach" {
		t.Errorf("caption = %q", text)
	}
}

func TestCaptionImageEmptyResultUsesFallback(t *testing.T) {
	for name, body := range map[string]string{
		"empty array": `[]`,
		"blank text":  `[{"generated_text":""}]`,
	} {
		t.Run(name, func(t *testing.T) {
			client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			text, err := client.CaptionImage(context.Background(), []byte("img"))
			if err != nil {
				t.Fatalf("CaptionImage: %v", err)
			}
			if text != captionFallback {
				t.Errorf("caption = %q, want fallback text", text)
			}
		})
	}
}

func TestCaptionImageMalformedResponse(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"oops":true}`))
	})

	_, err := client.CaptionImage(context.Background(), []byte("img"))
	var infErr *Error
	if !errors.As(err, &infErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if infErr.Op != "caption" {
		t.Errorf("op = %q", infErr.Op)
	}
}

func TestUpscaleImage(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/acme/swin2sr" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte("big-image"))
	})

	out, err := client.UpscaleImage(context.Background(), []byte("small"))
	if err != nil {
		t.Fatalf("UpscaleImage: %v", err)
	}
	if string(out) != "big-image" {
		t.Errorf("out = %q", out)
	}
}

func TestErrorStatusIsTerminal(t *testing.T) {
	var calls int
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model loading"}`))
	})

	_, err := client.GenerateImage(context.Background(), "x", GenerateParams{})
	var infErr *Error
	if !errors.As(err, &infErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if infErr.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d", infErr.Status)
	}
	if infErr.Code() != "HF_503" {
		t.Errorf("code = %q", infErr.Code())
	}
	if !strings.Contains(infErr.Body, "model loading") {
		t.Errorf("body = %q", infErr.Body)
	}
	if calls != 1 {
		t.Errorf("calls = %d, error statuses must not be retried", calls)
	}
}

func TestEmptyImageResponseIsError(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if _, err := client.UpscaleImage(context.Background(), []byte("x")); err == nil {
		t.Error("expected error for empty body")
	}
}
