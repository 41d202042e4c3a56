package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"vramd/internal/scheduler"
)

// fakeOllama mimics the three Ollama endpoints the runtime drives.
type fakeOllama struct {
	mu        sync.Mutex
	tags      []ollamaModel
	ps        []ollamaModel
	generates []generateRequest
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(ollamaModelList{Models: f.tags})
	})
	mux.HandleFunc("/api/ps", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(ollamaModelList{Models: f.ps})
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.generates = append(f.generates, req)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"done":true}`))
	})
	return mux
}

func TestFootprintFromTags(t *testing.T) {
	fake := &fakeOllama{tags: []ollamaModel{{Model: "qwen3:4b", Size: 2_600_000_000}}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	o := NewOllama(srv.URL)
	fp, err := o.Footprint(context.Background(), "qwen3:4b")
	if err != nil {
		t.Fatalf("footprint: %v", err)
	}
	if fp != 2_600_000_000 {
		t.Fatalf("footprint = %d", fp)
	}
}

func TestFootprintUnknownModel(t *testing.T) {
	srv := httptest.NewServer((&fakeOllama{}).handler())
	defer srv.Close()

	_, err := NewOllama(srv.URL).Footprint(context.Background(), "ghost")
	if err == nil || !scheduler.IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
}

func TestLoadPinsModelAndReportsVRAMSize(t *testing.T) {
	fake := &fakeOllama{
		tags: []ollamaModel{{Model: "m", Size: 100}},
		ps:   []ollamaModel{{Model: "m", SizeVRAM: 120}},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	got, err := NewOllama(srv.URL).Load(context.Background(), "m")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != 120 {
		t.Fatalf("footprint = %d, want the observed vram size", got)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.generates) != 1 || fake.generates[0].KeepAlive != -1 {
		t.Fatalf("generates = %+v, want one pin request", fake.generates)
	}
}

func TestLoadFallsBackToTagSize(t *testing.T) {
	fake := &fakeOllama{tags: []ollamaModel{{Model: "m", Size: 100}}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	got, err := NewOllama(srv.URL).Load(context.Background(), "m")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != 100 {
		t.Fatalf("footprint = %d, want on-disk size fallback", got)
	}
}

func TestUnloadDropsKeepAlive(t *testing.T) {
	fake := &fakeOllama{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	if err := NewOllama(srv.URL).Unload(context.Background(), "m"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.generates) != 1 || fake.generates[0].KeepAlive != 0 {
		t.Fatalf("generates = %+v, want one keep_alive=0 request", fake.generates)
	}
}

func TestWithFootprintsOverride(t *testing.T) {
	srv := httptest.NewServer((&fakeOllama{}).handler())
	defer srv.Close()

	rt := WithFootprints(NewOllama(srv.URL), map[string]int64{"m": 42})
	fp, err := rt.Footprint(context.Background(), "m")
	if err != nil || fp != 42 {
		t.Fatalf("override footprint = %d err = %v", fp, err)
	}
	if _, err := rt.Footprint(context.Background(), "other"); err == nil {
		t.Fatalf("expected passthrough miss for unknown model")
	}
}
