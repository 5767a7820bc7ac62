package utils

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile          = errors.New("no file uploaded")
	ErrFileTooLarge    = errors.New("file size exceeds limit")
	ErrInvalidFileType = errors.New("uploaded file is not a binary glTF model")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateModelFile(file *multipart.FileHeader) error
	DownscaleFrame(frame []byte, maxWidth int, quality int) ([]byte, error)
}

type utils struct {
	maxFileSize int64
}

func New(maxFileSize int64) IUtils {
	if maxFileSize <= 0 {
		maxFileSize = 20 * 1024 * 1024
	}
	return &utils{
		maxFileSize: maxFileSize,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateModelFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	if !strings.EqualFold(filepath.Ext(file.Filename), ".glb") {
		return ErrInvalidFileType
	}

	f, err := file.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil || string(magic) != "glTF" {
		return ErrInvalidFileType
	}

	return nil
}

// DownscaleFrame shrinks an encoded video frame to at most maxWidth pixels wide
// and re-encodes it as JPEG. Frames already small enough are returned as is.
func (u *utils) DownscaleFrame(frame []byte, maxWidth int, quality int) ([]byte, error) {
	if maxWidth <= 0 {
		return frame, nil
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame header: %w", err)
	}
	if cfg.Width <= maxWidth {
		return frame, nil
	}

	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	resized := imaging.Resize(img, maxWidth, 0, imaging.Linear)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	return buf.Bytes(), nil
}
