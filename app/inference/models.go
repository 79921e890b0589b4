package inference

// GenerateParams controls text-to-image diffusion.
type GenerateParams struct {
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
}

// TransformParams controls image-to-image diffusion.
type TransformParams struct {
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	Strength          float64 `json:"strength,omitempty"`
}

type generateRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters GenerateParams `json:"parameters"`
}

type transformJSONRequest struct {
	Inputs     transformInputs `json:"inputs"`
	Parameters TransformParams `json:"parameters"`
}

type transformInputs struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type captionResponse struct {
	GeneratedText string `json:"generated_text"`
}
