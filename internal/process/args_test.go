package process_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/process"
)

func TestBuildArgs(t *testing.T) {
	tests := map[string]struct {
		settings func(s *model.Settings)
		expArgs  []string
	}{
		"Default settings should only have the fixed arguments.": {
			settings: func(s *model.Settings) {},
			expArgs:  []string{"main.py", "--listen", "127.0.0.1", "--port", "8188", "--disable-auto-launch"},
		},

		"Precision and memory selections should map to their flags.": {
			settings: func(s *model.Settings) {
				s.ListenAddr = "0.0.0.0"
				s.Port = 8000
				s.UNetPrecision = model.PrecisionFP8
				s.VAEPrecision = model.PrecisionBF16
				s.TextEncoderPrecision = model.PrecisionFP16
				s.VRAMMode = model.VRAMModeLow
			},
			expArgs: []string{
				"main.py", "--listen", "0.0.0.0", "--port", "8000",
				"--fp8_e4m3fn-unet", "--bf16-vae", "--fp16-text-enc", "--lowvram",
				"--disable-auto-launch",
			},
		},

		"Toggles and extra arguments should be appended.": {
			settings: func(s *model.Settings) {
				s.VRAMMode = model.VRAMModeCPU
				s.DisableXFormers = true
				s.UsePyTorchCrossAttention = true
				s.FastMode = true
				s.ExtraArgs = "  --preview-method auto  --verbose "
			},
			expArgs: []string{
				"main.py", "--listen", "127.0.0.1", "--port", "8188",
				"--cpu", "--disable-xformers", "--use-pytorch-cross-attention", "--fast",
				"--disable-auto-launch", "--preview-method", "auto", "--verbose",
			},
		},

		"Unsupported precision for a component should be ignored.": {
			settings: func(s *model.Settings) {
				s.VAEPrecision = model.PrecisionFP8
			},
			expArgs: []string{"main.py", "--listen", "127.0.0.1", "--port", "8188", "--disable-auto-launch"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s := model.DefaultSettings()
			test.settings(&s)

			assert.Equal(t, test.expArgs, process.BuildArgs(s))
		})
	}
}

func TestBuildCommand(t *testing.T) {
	s := model.DefaultSettings()
	s.InstallDir = "/opt/comfyui"
	s.PythonPath = "/opt/comfyui/venv/bin/python"

	cmd := process.BuildCommand(s, []string{"CUDA_VISIBLE_DEVICES=0"})

	assert.Equal(t, "/opt/comfyui/venv/bin/python", cmd.Path)
	assert.Equal(t, "/opt/comfyui", cmd.Dir)
	assert.Equal(t, []string{"CUDA_VISIBLE_DEVICES=0"}, cmd.Env)
	assert.Equal(t, "/opt/comfyui/venv/bin/python main.py --listen 127.0.0.1 --port 8188 --disable-auto-launch", cmd.String())

	s.Env = map[string]string{"PYTHONUNBUFFERED": "1", "HF_HOME": "/data/hf"}
	cmd = process.BuildCommand(s, []string{"CUDA_VISIBLE_DEVICES=0"})
	assert.Equal(t, []string{"CUDA_VISIBLE_DEVICES=0", "HF_HOME=/data/hf", "PYTHONUNBUFFERED=1"}, cmd.Env)
}
