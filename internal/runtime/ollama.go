// Package runtime implements the physical load/unload collaborator against
// an Ollama server. The scheduler never talks to the GPU itself; this
// package does, over Ollama's HTTP API.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vramd/internal/scheduler"
)

// Ollama loads and unloads models by driving an Ollama server: an empty
// generate with keep_alive -1 pins a model in VRAM, keep_alive 0 drops it.
type Ollama struct {
	base string
	hc   *http.Client
}

// NewOllama targets the Ollama server at host, e.g. http://localhost:11434.
func NewOllama(host string) *Ollama {
	return &Ollama{
		base: host,
		hc:   &http.Client{Timeout: 5 * time.Minute},
	}
}

type ollamaModel struct {
	Model    string `json:"model"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	SizeVRAM int64  `json:"size_vram"`
}

type ollamaModelList struct {
	Models []ollamaModel `json:"models"`
}

type generateRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	KeepAlive int    `json:"keep_alive"`
}

// Footprint reports the pulled model's on-disk size as the VRAM estimate,
// from /api/tags. An unknown model is a not-found error for the scheduler.
func (o *Ollama) Footprint(ctx context.Context, modelID string) (int64, error) {
	var list ollamaModelList
	if err := o.getJSON(ctx, "/api/tags", &list); err != nil {
		return 0, err
	}
	for _, m := range list.Models {
		if m.Model == modelID || m.Name == modelID {
			if m.Size <= 0 {
				return 0, fmt.Errorf("model %s reports no size", modelID)
			}
			return m.Size, nil
		}
	}
	return 0, scheduler.ErrModelNotFound(modelID)
}

// Load pins the model in VRAM and reports the footprint Ollama actually
// observed (/api/ps size_vram), falling back to the on-disk size.
func (o *Ollama) Load(ctx context.Context, modelID string) (int64, error) {
	if err := o.generate(ctx, modelID, -1); err != nil {
		return 0, err
	}
	var loaded ollamaModelList
	if err := o.getJSON(ctx, "/api/ps", &loaded); err == nil {
		for _, m := range loaded.Models {
			if (m.Model == modelID || m.Name == modelID) && m.SizeVRAM > 0 {
				return m.SizeVRAM, nil
			}
		}
	}
	return o.Footprint(ctx, modelID)
}

// Unload asks Ollama to drop the model from VRAM immediately.
func (o *Ollama) Unload(ctx context.Context, modelID string) error {
	return o.generate(ctx, modelID, 0)
}

func (o *Ollama) generate(ctx context.Context, modelID string, keepAlive int) error {
	body, err := json.Marshal(generateRequest{Model: modelID, KeepAlive: keepAlive})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama generate %s: status %d: %s", modelID, resp.StatusCode, bytes.TrimSpace(msg))
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (o *Ollama) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := o.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
