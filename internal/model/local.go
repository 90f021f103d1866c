// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/research-agent/pkg/types"
)

// DefaultLocalBinary is the llama.cpp command-line runner.
const DefaultLocalBinary = "llama-cli"

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Stat(path string) error
	RunPiped(ctx context.Context, name string, args []string, stdout io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Stat(path string) error {
	_, err := os.Stat(path)
	return err
}

func (o *osExecutor) RunPiped(ctx context.Context, name string, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return eris.Wrap(err, msg)
		}
		return err
	}
	return nil
}

var defaultExec executor = &osExecutor{}

// LocalWeightsBackend runs a local inference binary against a weights
// file. The descriptor's Endpoint is the weights path and Model, when set,
// overrides the binary name.
type LocalWeightsBackend struct {
	desc types.ModelDescriptor
	bin  string
	exec executor
}

// NewLocalWeightsBackend returns an unloaded backend for desc.
func NewLocalWeightsBackend(desc types.ModelDescriptor) *LocalWeightsBackend {
	return newLocalWeightsBackend(desc, defaultExec)
}

func newLocalWeightsBackend(desc types.ModelDescriptor, exec executor) *LocalWeightsBackend {
	bin := DefaultLocalBinary
	if desc.Model != "" {
		bin = desc.Model
	}
	return &LocalWeightsBackend{desc: desc, bin: bin, exec: exec}
}

// Load verifies the binary is on PATH and the weights file exists.
func (b *LocalWeightsBackend) Load(_ context.Context) error {
	if _, err := b.exec.LookPath(b.bin); err != nil {
		return eris.Wrapf(err, "model: %s not found on PATH", b.bin)
	}
	if b.desc.Endpoint == "" {
		return eris.Errorf("model: %s: weights path not configured", b.desc.Name)
	}
	if err := b.exec.Stat(b.desc.Endpoint); err != nil {
		return eris.Wrapf(err, "model: weights %s", b.desc.Endpoint)
	}
	return nil
}

// Generate runs the binary once and returns its standard output with the
// echoed prompt removed.
func (b *LocalWeightsBackend) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	args := []string{
		"-m", b.desc.Endpoint,
		"-p", prompt,
		"-n", strconv.Itoa(p.MaxTokens),
		"--temp", strconv.FormatFloat(p.Temperature, 'f', -1, 64),
		"--top-p", strconv.FormatFloat(p.TopP, 'f', -1, 64),
		"--no-display-prompt",
	}

	var out bytes.Buffer
	if err := b.exec.RunPiped(ctx, b.bin, args, &out); err != nil {
		return "", eris.Wrapf(err, "model: run %s", b.bin)
	}
	return strings.TrimSpace(strings.TrimPrefix(out.String(), prompt)), nil
}

// Unload is a no-op; each call starts a fresh process.
func (b *LocalWeightsBackend) Unload() error { return nil }
