package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// LocalConfig holds configuration for the local Piper TTS backend.
type LocalConfig struct {
	PiperBinPath string // default: "piper"
	ModelPath    string // required: path to the .onnx voice model
}

// Local synthesizes speech using the Piper binary via subprocess.
// Voice selection comes from the model file, not runtime flags.
type Local struct {
	cfg LocalConfig
}

func NewLocal(cfg LocalConfig) *Local {
	if cfg.PiperBinPath == "" {
		cfg.PiperBinPath = "piper"
	}
	return &Local{cfg: cfg}
}

func (l *Local) Name() string { return "local-piper" }

// Synthesize pipes text into Piper via stdin and returns the WAV it writes to stdout.
func (l *Local) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if l.cfg.ModelPath == "" {
		return nil, fmt.Errorf("piper model path is required (set TTS_LOCAL_PIPER_MODEL)")
	}

	args := []string{"--model", l.cfg.ModelPath, "--output_file", "-"}
	if req.Speed > 0 {
		// Piper's length scale is the inverse of speed.
		args = append(args, "--length_scale", fmt.Sprintf("%.3f", 1/req.Speed))
	}

	cmd := exec.CommandContext(ctx, l.cfg.PiperBinPath, args...)
	cmd.Stdin = strings.NewReader(req.Input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("piper failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("piper produced no audio")
	}

	return &SynthesisResult{
		Audio:       stdout.Bytes(),
		ContentType: "audio/wav",
		Extension:   ".wav",
	}, nil
}
