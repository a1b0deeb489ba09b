package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/halvard/gebo/internal/apperr"
)

func TestResolveKeepsPriorWithoutAttachment(t *testing.T) {
	r := NewResolver(nil) // uploader must not be touched
	ref, err := r.Resolve(context.Background(), nil, "ipfs://prior")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ref != "ipfs://prior" {
		t.Errorf("ref = %q, want prior unchanged", ref)
	}
}

type failingUploader struct{}

func (failingUploader) Upload(context.Context, Attachment) (string, error) {
	return "", errors.New("storage unreachable")
}

func TestResolveWrapsUploadFailure(t *testing.T) {
	r := NewResolver(failingUploader{})
	_, err := r.Resolve(context.Background(), &Attachment{Filename: "a.png", Data: []byte("x")}, "")
	if !errors.Is(err, apperr.ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
}

func TestLocalUploadContentAddressed(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	att := Attachment{Filename: "photo.PNG", Data: []byte("image-bytes")}
	ref, err := l.Upload(context.Background(), att)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(ref, "/media/") || !strings.HasSuffix(ref, ".png") {
		t.Errorf("ref = %q", ref)
	}

	// Same bytes, same reference.
	again, _ := l.Upload(context.Background(), att)
	if again != ref {
		t.Errorf("re-upload ref = %q, want %q", again, ref)
	}

	abs, err := l.Path(strings.TrimPrefix(ref, "/media/"))
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("stored bytes = %q", data)
	}
}

func TestLocalPathRejectsTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"", "../etc/passwd", "a/b.png", ".."} {
		if _, err := l.Path(name); err == nil {
			t.Errorf("Path(%q) should fail", name)
		}
	}
}

func TestRemoteUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" {
			t.Errorf("path = %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "pic.jpg" {
			t.Errorf("filename = %q", header.Filename)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "ipfs://bafy123"})
	}))
	defer srv.Close()

	rem := NewRemote(srv.URL, 5*time.Second)
	ref, err := rem.Upload(context.Background(), Attachment{Filename: "pic.jpg", Data: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ref != "ipfs://bafy123" {
		t.Errorf("ref = %q", ref)
	}
}

func TestRemoteUploadFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rem := NewRemote(srv.URL, 5*time.Second)
	r := NewResolver(rem)
	_, err := r.Resolve(context.Background(), &Attachment{Filename: "pic.jpg", Data: []byte("jpeg")}, "")
	if !errors.Is(err, apperr.ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
}
