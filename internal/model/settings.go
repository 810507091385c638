package model

import (
	"fmt"
	"strings"

	"github.com/slok/comfylaunch/internal/utils/env"
)

// Precision is a floating point precision mode selector.
type Precision string

const (
	PrecisionAuto Precision = "auto"
	PrecisionFP32 Precision = "fp32"
	PrecisionFP16 Precision = "fp16"
	PrecisionBF16 Precision = "bf16"
	PrecisionFP8  Precision = "fp8_e4m3fn"
)

// VRAMMode is the memory management mode of the backend.
type VRAMMode string

const (
	VRAMModeAuto   VRAMMode = "auto"
	VRAMModeHigh   VRAMMode = "high"
	VRAMModeNormal VRAMMode = "normal"
	VRAMModeLow    VRAMMode = "low"
	VRAMModeNo     VRAMMode = "no"
	VRAMModeCPU    VRAMMode = "cpu"
)

// Settings are the user settings of the launcher, persisted as a flat JSON object.
type Settings struct {
	InstallDir string `json:"install_dir"`
	PythonPath string `json:"python_path"`
	ListenAddr string `json:"listen_addr"`
	Port       int    `json:"port"`

	UNetPrecision        Precision `json:"unet_precision"`
	VAEPrecision         Precision `json:"vae_precision"`
	TextEncoderPrecision Precision `json:"text_encoder_precision"`
	VRAMMode             VRAMMode  `json:"vram_mode"`

	DisableXFormers          bool `json:"disable_xformers"`
	UsePyTorchCrossAttention bool `json:"use_pytorch_cross_attention"`
	FastMode                 bool `json:"fast_mode"`
	AutoOpenBrowser          bool `json:"auto_open_browser"`

	ExtraArgs string `json:"extra_args"`
	// Env is added to the backend process environment.
	Env map[string]string `json:"env,omitempty"`

	DiagnosisAPIKey   string `json:"diagnosis_api_key"`
	DiagnosisModel    string `json:"diagnosis_model"`
	DiagnosisEndpoint string `json:"diagnosis_endpoint"`
	DiagnosisLogLines int    `json:"diagnosis_log_lines"`
}

// DefaultSettings returns the settings used when nothing has been persisted.
func DefaultSettings() Settings {
	return Settings{
		PythonPath:           "python",
		ListenAddr:           "127.0.0.1",
		Port:                 8188,
		UNetPrecision:        PrecisionAuto,
		VAEPrecision:         PrecisionAuto,
		TextEncoderPrecision: PrecisionAuto,
		VRAMMode:             VRAMModeAuto,
		AutoOpenBrowser:      true,
		DiagnosisModel:       "gemini-1.5-flash",
		DiagnosisEndpoint:    "https://generativelanguage.googleapis.com/v1beta",
		DiagnosisLogLines:    200,
	}
}

// BrowserURL returns the URL the backend UI is served on.
func (s Settings) BrowserURL() string {
	host := s.ListenAddr
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// Validate checks the settings fields that do not need the filesystem.
func (s Settings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range: %w", s.Port, ErrNotValid)
	}
	if strings.TrimSpace(s.ListenAddr) == "" {
		return fmt.Errorf("listen address is required: %w", ErrNotValid)
	}
	for name, p := range map[string]Precision{"unet": s.UNetPrecision, "vae": s.VAEPrecision, "text encoder": s.TextEncoderPrecision} {
		switch p {
		case "", PrecisionAuto, PrecisionFP32, PrecisionFP16, PrecisionBF16, PrecisionFP8:
		default:
			return fmt.Errorf("unknown %s precision %q: %w", name, p, ErrNotValid)
		}
	}
	switch s.VRAMMode {
	case "", VRAMModeAuto, VRAMModeHigh, VRAMModeNormal, VRAMModeLow, VRAMModeNo, VRAMModeCPU:
	default:
		return fmt.Errorf("unknown vram mode %q: %w", s.VRAMMode, ErrNotValid)
	}
	if err := env.Validate(s.Env); err != nil {
		return fmt.Errorf("%w: %w", err, ErrNotValid)
	}
	return nil
}
