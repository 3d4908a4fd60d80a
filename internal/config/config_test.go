package config

import (
	"path/filepath"
	"testing"
)

func TestImagePath_DefaultPattern(t *testing.T) {
	cfg := CorpusConfig{ImageDir: "images"}

	got := cfg.ImagePath(7)
	want := filepath.Join("images", "7.jpg")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestImagePath_CustomPattern(t *testing.T) {
	cfg := CorpusConfig{ImageDir: "/srv/corpus", PathPattern: "img_{id}.png"}

	got := cfg.ImagePath(100)
	want := filepath.Join("/srv/corpus", "img_100.png")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestIDs(t *testing.T) {
	cfg := CorpusConfig{Size: 4}

	ids := cfg.IDs()
	if len(ids) != 4 {
		t.Fatalf("expected 4 ids, got %d", len(ids))
	}
	for i, id := range ids {
		if id != i+1 {
			t.Errorf("ids[%d] = %d, want %d", i, id, i+1)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CBIR_CORPUS_SIZE", "")
	t.Setenv("CBIR_PAGE_SIZE", "")
	t.Setenv("DATABASE_URL", "")

	cfg := Load()

	if cfg.Corpus.Size != 100 {
		t.Errorf("expected corpus size 100, got %d", cfg.Corpus.Size)
	}
	if cfg.Retrieval.PageSize != 20 {
		t.Errorf("expected page size 20, got %d", cfg.Retrieval.PageSize)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if len(cfg.Retrieval.Methods) != 3 {
		t.Fatalf("expected 3 methods, got %d", len(cfg.Retrieval.Methods))
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CBIR_CORPUS_SIZE", "12")
	t.Setenv("CBIR_PAGE_SIZE", "5")
	t.Setenv("CBIR_WORKERS", "not-a-number")

	cfg := Load()

	if cfg.Corpus.Size != 12 {
		t.Errorf("expected corpus size 12, got %d", cfg.Corpus.Size)
	}
	if cfg.Retrieval.PageSize != 5 {
		t.Errorf("expected page size 5, got %d", cfg.Retrieval.PageSize)
	}
	if cfg.Corpus.Workers != 8 {
		t.Errorf("invalid worker count should fall back to 8, got %d", cfg.Corpus.Workers)
	}
}

func TestGetMethod(t *testing.T) {
	cfg := Load()

	tests := []struct {
		name     string
		found    bool
		feedback bool
	}{
		{"intensity", true, false},
		{"color-code", true, false},
		{"feedback", true, true},
		{"unknown", false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := cfg.GetMethod(tc.name)
			if ok != tc.found {
				t.Fatalf("GetMethod(%q) found = %v, want %v", tc.name, ok, tc.found)
			}
			if m.Feedback != tc.feedback {
				t.Errorf("GetMethod(%q) feedback = %v, want %v", tc.name, m.Feedback, tc.feedback)
			}
		})
	}
}

func TestLoad_WebConfig(t *testing.T) {
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_HOST", "")
	t.Setenv("WEB_SESSION_SECRET", "s3cret")
	t.Setenv("WEB_ALLOWED_ORIGINS", " https://a.example.com,,https://b.example.com ")

	cfg := Load()

	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Web.Host != "0.0.0.0" {
		t.Errorf("expected default host, got %q", cfg.Web.Host)
	}
	if cfg.Web.SessionSecret != "s3cret" {
		t.Errorf("expected session secret from env, got %q", cfg.Web.SessionSecret)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[0] != want[0] || cfg.Web.AllowedOrigins[1] != want[1] {
		t.Errorf("expected origins %v, got %v", want, cfg.Web.AllowedOrigins)
	}
}
