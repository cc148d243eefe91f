package archive

import (
	"context"
	"errors"
	"testing"
)

func TestErrNotFound_LocalFS(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	_, err = fs.Read(context.Background(), "missing.csv")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
