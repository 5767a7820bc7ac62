package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
)

func fileHeader(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("model", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatal(err)
	}
	return req.MultipartForm.File["model"][0]
}

func jpegFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNewULIDFromTimestamp(t *testing.T) {
	u := New(0)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a, err := u.NewULIDFromTimestamp(at)
	if err != nil {
		t.Fatalf("NewULIDFromTimestamp() error = %v", err)
	}
	b, err := u.NewULIDFromTimestamp(at)
	if err != nil {
		t.Fatalf("NewULIDFromTimestamp() error = %v", err)
	}
	if a == b {
		t.Errorf("expected distinct ids, both %s", a)
	}

	id, err := ulid.Parse(a)
	if err != nil {
		t.Fatalf("ulid.Parse(%q) error = %v", a, err)
	}
	if got := ulid.Time(id.Time()); !got.Equal(at) {
		t.Errorf("id time = %v, want %v", got, at)
	}
}

func TestValidateModelFile(t *testing.T) {
	glb := append([]byte("glTF"), 2, 0, 0, 0)
	u := New(64)

	tests := []struct {
		name    string
		file    *multipart.FileHeader
		wantErr error
	}{
		{"valid", fileHeader(t, "aviator.glb", glb), nil},
		{"upper case extension", fileHeader(t, "AVIATOR.GLB", glb), nil},
		{"nil", nil, ErrNoFile},
		{"wrong extension", fileHeader(t, "aviator.gltf", glb), ErrInvalidFileType},
		{"wrong magic", fileHeader(t, "aviator.glb", []byte("PK\x03\x04zip")), ErrInvalidFileType},
		{"too short", fileHeader(t, "aviator.glb", []byte("gl")), ErrInvalidFileType},
		{"too large", fileHeader(t, "aviator.glb", append(glb, make([]byte, 64)...)), ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := u.ValidateModelFile(tt.file)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateModelFile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDownscaleFrame(t *testing.T) {
	u := New(0)
	frame := jpegFrame(t, 1280, 720)

	out, err := u.DownscaleFrame(frame, 640, 70)
	if err != nil {
		t.Fatalf("DownscaleFrame() error = %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if cfg.Width != 640 || cfg.Height != 360 {
		t.Errorf("size = %dx%d, want 640x360", cfg.Width, cfg.Height)
	}
}

func TestDownscaleFrameKeepsSmallFrames(t *testing.T) {
	u := New(0)
	frame := jpegFrame(t, 320, 240)

	for _, maxWidth := range []int{0, 320, 640} {
		out, err := u.DownscaleFrame(frame, maxWidth, 80)
		if err != nil {
			t.Fatalf("DownscaleFrame(%d) error = %v", maxWidth, err)
		}
		if !bytes.Equal(out, frame) {
			t.Errorf("DownscaleFrame(%d) re-encoded a frame that already fits", maxWidth)
		}
	}
}

func TestDownscaleFrameRejectsGarbage(t *testing.T) {
	if _, err := New(0).DownscaleFrame([]byte("not an image"), 640, 80); err == nil {
		t.Error("expected an error for undecodable frame")
	}
}
