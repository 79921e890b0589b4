package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	coreconfig "github.com/Promitpolok/ai-image-telegram-bot/core/config"
	"github.com/Promitpolok/ai-image-telegram-bot/core/database"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Payload styles for the image-to-image endpoint. Some models accept
// multipart uploads, others want the image base64-encoded inside JSON.
const (
	PayloadMultipart = "multipart"
	PayloadJSONB64   = "json_b64"
)

// ModelsConfig maps each operation to a Hugging Face model repo.
type ModelsConfig struct {
	TextToImage  string `yaml:"text_to_image" envconfig:"HF_MODEL_TEXT_TO_IMAGE"`
	ImageToImage string `yaml:"image_to_image" envconfig:"HF_MODEL_IMAGE_TO_IMAGE"`
	Captioning   string `yaml:"captioning" envconfig:"HF_MODEL_CAPTIONING"`
	Upscaling    string `yaml:"upscaling" envconfig:"HF_MODEL_UPSCALING"`
}

// HuggingFaceConfig holds inference API settings.
type HuggingFaceConfig struct {
	Token          string       `yaml:"token" envconfig:"HUGGING_FACE_TOKEN"`
	BaseURL        string       `yaml:"base_url" envconfig:"HF_BASE_URL"`
	TimeoutSeconds int          `yaml:"timeout_seconds" envconfig:"HF_TIMEOUT_SECONDS"`
	Models         ModelsConfig `yaml:"models"`

	// Diffusion parameters applied to generation and transformation.
	GuidanceScale     float64 `yaml:"guidance_scale" envconfig:"HF_GUIDANCE_SCALE"`
	NumInferenceSteps int     `yaml:"num_inference_steps" envconfig:"HF_NUM_INFERENCE_STEPS"`
	Strength          float64 `yaml:"strength" envconfig:"HF_STRENGTH"`

	// ImageToImagePayload selects the wire format: "multipart" or "json_b64".
	ImageToImagePayload string `yaml:"image_to_image_payload" envconfig:"HF_IMAGE_TO_IMAGE_PAYLOAD"`
}

// Timeout returns the HTTP timeout for inference calls.
func (c HuggingFaceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Ratio describes a selectable output size preset.
type Ratio struct {
	Label  string `yaml:"label"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Config is the full bot configuration: reusable core settings plus
// image pipeline specifics.
type Config struct {
	Core        coreconfig.Config `yaml:",inline"`
	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
	Database    database.Config   `yaml:"database"`

	// Ratios maps callback keys to size presets. DefaultRatio must be
	// one of the keys.
	Ratios       map[string]Ratio `yaml:"ratios"`
	DefaultRatio string           `yaml:"default_ratio"`
}

// RatioKeys returns the preset keys in stable order for keyboard layout.
func (c *Config) RatioKeys() []string {
	keys := make([]string, 0, len(c.Ratios))
	for k := range c.Ratios {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func defaultRatios() map[string]Ratio {
	return map[string]Ratio{
		"square":    {Label: "Square (1:1)", Width: 1024, Height: 1024},
		"portrait":  {Label: "Portrait (2:3)", Width: 768, Height: 1152},
		"landscape": {Label: "Landscape (3:2)", Width: 1152, Height: 768},
		"wide":      {Label: "Wide (7:4)", Width: 1344, Height: 768},
		"ultrawide": {Label: "Ultrawide (12:5)", Width: 1536, Height: 640},
	}
}

// Load reads configuration from a YAML file and environment variables.
// A missing file is not an error: everything has a default or comes
// from the environment, except the two required tokens.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return err
	}

	hf := &cfg.HuggingFace
	if strings.TrimSpace(hf.Token) == "" {
		return fmt.Errorf("huggingface token is required")
	}
	if hf.BaseURL == "" {
		hf.BaseURL = "https://api-inference.huggingface.co"
	}
	hf.BaseURL = strings.TrimRight(hf.BaseURL, "/")
	if hf.TimeoutSeconds <= 0 {
		hf.TimeoutSeconds = 300
	}
	if hf.Models.TextToImage == "" {
		hf.Models.TextToImage = "stabilityai/stable-diffusion-xl-base-1.0"
	}
	if hf.Models.ImageToImage == "" {
		hf.Models.ImageToImage = "timbrooks/instruct-pix2pix"
	}
	if hf.Models.Captioning == "" {
		hf.Models.Captioning = "Salesforce/blip-image-captioning-large"
	}
	if hf.Models.Upscaling == "" {
		hf.Models.Upscaling = "caidas/swin2SR-realworld-sr-x4-64-bsrgan-psnr"
	}
	if hf.GuidanceScale <= 0 {
		hf.GuidanceScale = 7.5
	}
	if hf.NumInferenceSteps <= 0 {
		hf.NumInferenceSteps = 30
	}
	if hf.Strength <= 0 {
		hf.Strength = 0.8
	}
	switch hf.ImageToImagePayload {
	case "":
		hf.ImageToImagePayload = PayloadMultipart
	case PayloadMultipart, PayloadJSONB64:
	default:
		return fmt.Errorf("invalid huggingface.image_to_image_payload %q; allowed: %s, %s",
			hf.ImageToImagePayload, PayloadMultipart, PayloadJSONB64)
	}

	if len(cfg.Ratios) == 0 {
		cfg.Ratios = defaultRatios()
	}
	for key, r := range cfg.Ratios {
		if r.Width <= 0 || r.Height <= 0 {
			return fmt.Errorf("ratio %q must have positive width and height", key)
		}
	}
	if cfg.DefaultRatio == "" {
		cfg.DefaultRatio = "square"
	}
	if _, ok := cfg.Ratios[cfg.DefaultRatio]; !ok {
		return fmt.Errorf("default_ratio %q is not a configured ratio", cfg.DefaultRatio)
	}

	if cfg.Database.Enabled() {
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 4
		}
	}

	return nil
}
