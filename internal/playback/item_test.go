package playback

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		wantErr bool
	}{
		{"bytes", BytesPayload([]byte{1, 2, 3}), false},
		{"file", FilePayload("/tmp/a.mp3"), false},
		{"spool", SpoolPayload("/tmp/b.mp3"), false},
		{"zero", Payload{}, true},
		{"empty bytes", BytesPayload(nil), true},
		{"empty path", FilePayload(""), true},
		{"both set", Payload{kind: PayloadFile, path: "x", data: []byte{1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidItem) {
				t.Errorf("Expected ErrInvalidItem, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestNewItem(t *testing.T) {
	if _, err := NewItem("", BytesPayload([]byte{1})); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("Expected ErrInvalidItem for empty sink, got %v", err)
	}
	if _, err := NewItem("S", Payload{}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("Expected ErrInvalidItem for zero payload, got %v", err)
	}

	a, err := NewItem("S", FilePayload("/sounds/airhorn.mp3"), WithRequester("ana"))
	if err != nil {
		t.Fatalf("NewItem failed: %v", err)
	}
	b, _ := NewItem("S", FilePayload("/sounds/airhorn.mp3"))

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.Label != "airhorn.mp3" {
		t.Errorf("Expected label from file name, got %q", a.Label)
	}
	if a.Requester != "ana" {
		t.Errorf("Expected requester ana, got %q", a.Requester)
	}
	if a.SubmittedAt.IsZero() {
		t.Error("Expected submission time to be set")
	}

	d := a.Describe()
	if d.ID != a.ID || d.KindName != "file" || d.Kind != PayloadFile {
		t.Errorf("Unexpected descriptor: %+v", d)
	}
}

func TestPayload_OpenAndRelease(t *testing.T) {
	data, err := io.ReadAll(mustOpen(t, BytesPayload([]byte("abc"))))
	if err != nil || string(data) != "abc" {
		t.Errorf("Expected abc, got %q (%v)", data, err)
	}

	path := filepath.Join(t.TempDir(), "clip.mp3")
	if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Referenced files survive release
	FilePayload(path).Release()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("FilePayload release removed the file: %v", err)
	}

	spool := SpoolPayload(path)
	data, _ = io.ReadAll(mustOpen(t, spool))
	if string(data) != "clip" {
		t.Errorf("Expected clip, got %q", data)
	}
	spool.Release()
	spool.Release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected spool file to be removed, got %v", err)
	}

	if _, err := spool.Open(); err == nil {
		t.Error("Expected error opening released spool file")
	}
}

func mustOpen(t *testing.T, p Payload) io.ReadCloser {
	t.Helper()
	rc, err := p.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { rc.Close() })
	return rc
}
