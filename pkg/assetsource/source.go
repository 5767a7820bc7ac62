// Package assetsource resolves a model URL to the raw bytes of the model.
package assetsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	s3Pkg "TryOnService/pkg/s3"
	"github.com/gofiber/fiber/v2"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported model url scheme")
	ErrTooLarge          = errors.New("model exceeds size limit")
	ErrFetchFailed       = errors.New("failed to fetch model")
)

type IFetcher interface {
	Fetch(ctx context.Context, modelURL string) ([]byte, error)
}

type Options struct {
	Timeout  time.Duration
	MaxBytes int64
	// AllowFiles enables file:// and bare paths. Only the local harness sets it.
	AllowFiles bool
}

type fetcher struct {
	s3   s3Pkg.ItfS3
	opts Options
}

func New(s3 s3Pkg.ItfS3, opts Options) IFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 * 1024 * 1024
	}
	return &fetcher{s3: s3, opts: opts}
}

func (f *fetcher) Fetch(ctx context.Context, modelURL string) ([]byte, error) {
	u, err := url.Parse(modelURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.fetchHTTP(ctx, modelURL)
	case "s3":
		if f.s3 == nil {
			return nil, fmt.Errorf("%w: s3 storage is not configured", ErrUnsupportedScheme)
		}
		data, err := f.s3.GetObject(ctx, u.Host, strings.TrimPrefix(u.Path, "/"), f.opts.MaxBytes)
		if errors.Is(err, s3Pkg.ErrObjectTooLarge) {
			return nil, ErrTooLarge
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
		return data, nil
	case "file", "":
		if !f.opts.AllowFiles {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
		}
		p := u.Path
		if u.Scheme == "" {
			p = modelURL
		}
		return f.readFile(p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *fetcher) fetchHTTP(ctx context.Context, modelURL string) ([]byte, error) {
	timeout := f.opts.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agent := fiber.Get(modelURL)
	agent.Timeout(timeout)
	agent.MaxRedirectsCount(3)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, code)
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

func (f *fetcher) readFile(p string) ([]byte, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, f.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > f.opts.MaxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
