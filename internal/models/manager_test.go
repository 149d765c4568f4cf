package models

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testModel(url string) ModelInfo {
	return ModelInfo{ID: "test", Name: "Test", Language: "en", Filename: "test.april", URL: url, Size: 4}
}

func TestRegistry(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Registry {
		if seen[m.ID] {
			t.Fatalf("duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
		if !strings.HasSuffix(m.Filename, ".april") {
			t.Errorf("%s: filename %q has no .april suffix", m.ID, m.Filename)
		}
		if !strings.HasPrefix(m.URL, "https://") {
			t.Errorf("%s: url %q is not https", m.ID, m.URL)
		}
	}
	if _, ok := GetModel(DefaultModelID()); !ok {
		t.Fatalf("default model %q is not in the registry", DefaultModelID())
	}
	if _, ok := GetModel("nope"); ok {
		t.Fatalf("GetModel(nope) should fail")
	}
	if got := GetModelsByLanguage("en-US"); len(got) != len(Registry) {
		t.Fatalf("GetModelsByLanguage(en-US) = %d models, want %d", len(got), len(Registry))
	}
}

func TestDownload(t *testing.T) {
	body := "APRL-model-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	m, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	info := testModel(srv.URL + "/test.april")

	if m.IsDownloaded(info) {
		t.Fatalf("model reported downloaded before download")
	}

	progress := make(chan Progress, 16)
	if err := m.Download(context.Background(), info, progress); err != nil {
		t.Fatalf("Download: %v", err)
	}
	close(progress)

	var last Progress
	for p := range progress {
		last = p
	}
	if !last.Done || last.Downloaded != int64(len(body)) {
		t.Fatalf("last progress = %+v", last)
	}

	data, err := os.ReadFile(m.Path(info))
	if err != nil {
		t.Fatalf("read model: %v", err)
	}
	if string(data) != body {
		t.Fatalf("model contents = %q", data)
	}
	if _, err := os.Stat(m.Path(info) + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	if !m.IsDownloaded(info) {
		t.Fatalf("model not reported downloaded")
	}
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	info := testModel(srv.URL + "/missing.april")
	if err := m.Download(context.Background(), info, nil); err == nil {
		t.Fatalf("expected an error for 404")
	}
	if m.IsDownloaded(info) {
		t.Fatalf("failed download left a model file")
	}
}

func TestDownloadCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	m, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Download(ctx, testModel(srv.URL), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Download with canceled ctx = %v, want context.Canceled", err)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.Resolve("nope"); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("Resolve(nope) = %v, want ErrUnknownModel", err)
	}
	id := DefaultModelID()
	if _, err := m.Resolve(id); !errors.Is(err, ErrNotDownloaded) {
		t.Fatalf("Resolve before download = %v, want ErrNotDownloaded", err)
	}

	info, _ := GetModel(id)
	if err := os.WriteFile(filepath.Join(dir, info.Filename), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, err := m.Resolve(id)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != filepath.Join(dir, info.Filename) {
		t.Fatalf("Resolve = %q", path)
	}
	if got := m.ListDownloaded(); len(got) != 1 || got[0].ID != id {
		t.Fatalf("ListDownloaded = %+v", got)
	}

	if err := m.Delete(info); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(info); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}
