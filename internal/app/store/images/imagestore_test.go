package imagestore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	imagestore "github.com/dalemusser/planhub/internal/app/store/images"
	"github.com/dalemusser/planhub/internal/testutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000IHDR")

func exercise(t *testing.T, s imagestore.Store) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	img, err := s.Put(ctx, "Sunset.PNG", "image/png", pngHeader)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if img.ID == "" {
		t.Fatal("expected an id")
	}
	if !strings.HasSuffix(img.Filename, ".png") {
		t.Errorf("filename: got %q, want .png suffix", img.Filename)
	}

	got, rc, err := s.Open(ctx, img.ID)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Errorf("data mismatch: got %q", data)
	}
	if got.ContentType != "image/png" {
		t.Errorf("content type: got %q, want %q", got.ContentType, "image/png")
	}
	if got.Size != int64(len(pngHeader)) {
		t.Errorf("size: got %d, want %d", got.Size, len(pngHeader))
	}

	for _, id := range []string{"000000000000000000000001", "not-an-id"} {
		if _, _, err := s.Open(ctx, id); !errors.Is(err, imagestore.ErrNotFound) {
			t.Errorf("Open(%q): got %v, want ErrNotFound", id, err)
		}
	}
}

func TestMemory(t *testing.T) {
	exercise(t, imagestore.NewMemory())
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := imagestore.NewMemory().Put(ctx, "a.png", "image/png", pngHeader); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestGridFS(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s, err := imagestore.NewGridFS(db)
	if err != nil {
		t.Fatalf("NewGridFS failed: %v", err)
	}
	exercise(t, s)
}
