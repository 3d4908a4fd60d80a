package database

import (
	"context"
	"testing"
)

func TestProvider_NotInitialized(t *testing.T) {
	ResetBackend()
	t.Cleanup(ResetBackend)

	if IsInitialized() {
		t.Error("expected uninitialized backend")
	}
	if _, err := GetCorpusReader(context.Background()); err == nil {
		t.Error("expected error from GetCorpusReader")
	}
	if _, err := GetCorpusWriter(context.Background()); err == nil {
		t.Error("expected error from GetCorpusWriter")
	}
	if GetSessionStore() != nil {
		t.Error("expected nil session store")
	}
}

func TestProvider_ReaderOnlyBackend(t *testing.T) {
	t.Cleanup(ResetBackend)

	RegisterBackend("readonly", func() CorpusReader { return nil }, nil)

	if !IsInitialized() || BackendName() != "readonly" {
		t.Errorf("backend = %q initialized=%v", BackendName(), IsInitialized())
	}
	if _, err := GetCorpusReader(context.Background()); err != nil {
		t.Errorf("GetCorpusReader() error = %v", err)
	}
	if _, err := GetCorpusWriter(context.Background()); err == nil {
		t.Error("expected error for missing writer")
	}
}
