package process

import (
	"strconv"
	"strings"

	"github.com/slok/comfylaunch/internal/model"
	envutil "github.com/slok/comfylaunch/internal/utils/env"
)

var (
	unetPrecisionFlags = map[model.Precision]string{
		model.PrecisionFP32: "--fp32-unet",
		model.PrecisionFP16: "--fp16-unet",
		model.PrecisionBF16: "--bf16-unet",
		model.PrecisionFP8:  "--fp8_e4m3fn-unet",
	}
	vaePrecisionFlags = map[model.Precision]string{
		model.PrecisionFP32: "--fp32-vae",
		model.PrecisionFP16: "--fp16-vae",
		model.PrecisionBF16: "--bf16-vae",
	}
	textEncoderPrecisionFlags = map[model.Precision]string{
		model.PrecisionFP32: "--fp32-text-enc",
		model.PrecisionFP16: "--fp16-text-enc",
		model.PrecisionBF16: "--bf16-text-enc",
		model.PrecisionFP8:  "--fp8_e4m3fn-text-enc",
	}
	vramFlags = map[model.VRAMMode]string{
		model.VRAMModeHigh:   "--highvram",
		model.VRAMModeNormal: "--normalvram",
		model.VRAMModeLow:    "--lowvram",
		model.VRAMModeNo:     "--novram",
		model.VRAMModeCPU:    "--cpu",
	}
)

// EntryPoint is the backend script, relative to the install dir.
const EntryPoint = "main.py"

// BuildArgs returns the backend arguments for the settings: the fixed listen and port
// arguments followed by one flag per non default selection.
func BuildArgs(s model.Settings) []string {
	args := []string{EntryPoint, "--listen", s.ListenAddr, "--port", strconv.Itoa(s.Port)}

	if f, ok := unetPrecisionFlags[s.UNetPrecision]; ok {
		args = append(args, f)
	}
	if f, ok := vaePrecisionFlags[s.VAEPrecision]; ok {
		args = append(args, f)
	}
	if f, ok := textEncoderPrecisionFlags[s.TextEncoderPrecision]; ok {
		args = append(args, f)
	}
	if f, ok := vramFlags[s.VRAMMode]; ok {
		args = append(args, f)
	}
	if s.DisableXFormers {
		args = append(args, "--disable-xformers")
	}
	if s.UsePyTorchCrossAttention {
		args = append(args, "--use-pytorch-cross-attention")
	}
	if s.FastMode {
		args = append(args, "--fast")
	}
	// The launcher opens the browser itself.
	args = append(args, "--disable-auto-launch")

	args = append(args, strings.Fields(s.ExtraArgs)...)

	return args
}

// BuildCommand returns the backend command for the settings. The settings
// environment is applied after env.
func BuildCommand(s model.Settings, env []string) Command {
	cmdEnv := append([]string{}, env...)
	cmdEnv = append(cmdEnv, envutil.Environ(s.Env)...)

	return Command{
		Path: s.PythonPath,
		Args: BuildArgs(s),
		Dir:  s.InstallDir,
		Env:  cmdEnv,
	}
}
