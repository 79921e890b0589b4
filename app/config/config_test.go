package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Core.Telegram.Token = "123:abc"
	cfg.HuggingFace.Token = "hf_test"
	return cfg
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	hf := cfg.HuggingFace
	if hf.BaseURL != "https://api-inference.huggingface.co" {
		t.Errorf("base url = %q", hf.BaseURL)
	}
	if hf.TimeoutSeconds != 300 {
		t.Errorf("timeout = %d, want 300", hf.TimeoutSeconds)
	}
	if hf.Models.TextToImage != "stabilityai/stable-diffusion-xl-base-1.0" {
		t.Errorf("text_to_image model = %q", hf.Models.TextToImage)
	}
	if hf.GuidanceScale != 7.5 || hf.NumInferenceSteps != 30 || hf.Strength != 0.8 {
		t.Errorf("diffusion params = %v/%v/%v", hf.GuidanceScale, hf.NumInferenceSteps, hf.Strength)
	}
	if hf.ImageToImagePayload != PayloadMultipart {
		t.Errorf("payload style = %q", hf.ImageToImagePayload)
	}

	if cfg.DefaultRatio != "square" {
		t.Errorf("default ratio = %q", cfg.DefaultRatio)
	}
	r, ok := cfg.Ratios["portrait"]
	if !ok {
		t.Fatal("portrait ratio missing")
	}
	if r.Width != 768 || r.Height != 1152 {
		t.Errorf("portrait = %dx%d, want 768x1152", r.Width, r.Height)
	}
}

func TestNormalizeMissingTokens(t *testing.T) {
	cfg := &Config{}
	cfg.HuggingFace.Token = "hf_test"
	if err := Normalize(cfg); err == nil || !strings.Contains(err.Error(), "telegram token") {
		t.Errorf("missing telegram token: err = %v", err)
	}

	cfg = &Config{}
	cfg.Core.Telegram.Token = "123:abc"
	if err := Normalize(cfg); err == nil || !strings.Contains(err.Error(), "huggingface token") {
		t.Errorf("missing huggingface token: err = %v", err)
	}
}

func TestNormalizeRejectsBadPayloadStyle(t *testing.T) {
	cfg := validConfig()
	cfg.HuggingFace.ImageToImagePayload = "protobuf"
	if err := Normalize(cfg); err == nil {
		t.Error("expected error for unknown payload style")
	}
}

func TestNormalizeRejectsUnknownDefaultRatio(t *testing.T) {
	cfg := validConfig()
	cfg.DefaultRatio = "cinema"
	if err := Normalize(cfg); err == nil {
		t.Error("expected error for unknown default ratio")
	}
}

func TestRatioKeysSorted(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	keys := cfg.RatioKeys()
	if len(keys) != 5 {
		t.Fatalf("got %d keys", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Errorf("keys not sorted: %v", keys)
		}
	}
}

func TestLoadFromYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
telegram:
  token: "123:abc"
huggingface:
  timeout_seconds: 60
ratios:
  square:
    label: "1:1"
    width: 512
    height: 512
default_ratio: square
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HUGGING_FACE_TOKEN", "hf_env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HuggingFace.Token != "hf_env" {
		t.Errorf("token from env = %q", cfg.HuggingFace.Token)
	}
	if cfg.HuggingFace.TimeoutSeconds != 60 {
		t.Errorf("timeout = %d, want 60 from yaml", cfg.HuggingFace.TimeoutSeconds)
	}
	if len(cfg.Ratios) != 1 {
		t.Errorf("ratios = %v, want only yaml-defined", cfg.Ratios)
	}
}
