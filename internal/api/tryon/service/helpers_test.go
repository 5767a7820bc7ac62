package tryonService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TryOnService/internal/api/tryon"
	tryonRepository "TryOnService/internal/api/tryon/repository"
	"TryOnService/internal/entity"
	"TryOnService/pkg/overlay"
	"TryOnService/pkg/redis"
	"TryOnService/pkg/utils"
	websocketPkg "TryOnService/pkg/websocket"

	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// glassesGLB encodes a single-mesh model whose bounds are [-2,2]x[-1,1]x[-0.5,0.5].
func glassesGLB(t *testing.T) []byte {
	t.Helper()
	doc := &gltf.Document{
		Asset: gltf.Asset{Version: "2.0"},
		Accessors: []*gltf.Accessor{
			{Count: 8, Type: gltf.AccessorVec3, ComponentType: gltf.ComponentFloat,
				Min: []float32{-2, -1, -0.5}, Max: []float32{2, 1, 0.5}},
		},
		Meshes: []*gltf.Mesh{
			{Primitives: []*gltf.Primitive{{Attributes: gltf.Attribute{"POSITION": 0}}}},
		},
		Nodes:  []*gltf.Node{{Mesh: gltf.Index(0)}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0}}},
		Scene:  gltf.Index(0),
	}

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		t.Fatalf("encode glb: %v", err)
	}
	return buf.Bytes()
}

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	errs  map[string]error
	calls atomic.Int32
	gate  chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{data: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, modelURL string) ([]byte, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[modelURL]; ok {
		return nil, err
	}
	if data, ok := f.data[modelURL]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeFetcher) set(url string, data []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errs, url)
	delete(f.data, url)
	if err != nil {
		f.errs[url] = err
		return
	}
	f.data[url] = data
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}}
}

func (r *fakeRedis) SetAsset(ctx context.Context, key string, payload []byte, expiration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = payload
	return nil
}

func (r *fakeRedis) GetAsset(ctx context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.data[key]; ok {
		return v, nil
	}
	return nil, redis.ErrCacheMiss
}

func (r *fakeRedis) Close() error { return nil }

type fakeS3 struct {
	location   string
	err        error
	presignErr error
	uploads    atomic.Int32
}

func (s *fakeS3) UploadModel(ctx context.Context, file *multipart.FileHeader) (string, error) {
	s.uploads.Add(1)
	return s.location, s.err
}

func (s *fakeS3) GetObject(ctx context.Context, bucket, key string, limit int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeS3) PresignUrl(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return fmt.Sprintf("https://%s.storage.test/%s?expires=%s", bucket, key, expiry), nil
}

// fakeDetector answers Detect from a script. When gate is set, Detect signals
// entered and waits for the gate before answering.
type fakeDetector struct {
	mu      sync.Mutex
	results []*entity.LandmarkFrame
	err     error
	entered chan struct{}
	gate    chan struct{}
	closed  atomic.Int32
}

func (d *fakeDetector) Detect(ctx context.Context, frame []byte) (*entity.LandmarkFrame, error) {
	if d.entered != nil {
		select {
		case d.entered <- struct{}{}:
		default:
		}
	}
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if len(d.results) == 0 {
		return nil, nil
	}
	next := d.results[0]
	d.results = d.results[1:]
	return next, nil
}

func (d *fakeDetector) Close() error {
	d.closed.Add(1)
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type fakeProfiles struct {
	profiles map[string]entity.TryOnProfile
	err      error
}

func (p *fakeProfiles) GetProfileByProductID(ctx context.Context, productID string) (entity.TryOnProfile, error) {
	if p.err != nil {
		return entity.TryOnProfile{}, p.err
	}
	profile, ok := p.profiles[productID]
	if !ok {
		return entity.TryOnProfile{}, tryon.ErrProfileNotFound
	}
	return profile, nil
}

func (p *fakeProfiles) ListProfiles(ctx context.Context, limit, offset int) ([]entity.TryOnProfile, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]entity.TryOnProfile, 0, len(p.profiles))
	for _, profile := range p.profiles {
		out = append(out, profile)
	}
	return out, nil
}

type fakeRepository struct {
	profiles *fakeProfiles
}

func (r *fakeRepository) NewClient(tx bool) (tryonRepository.Client, error) {
	return tryonRepository.Client{
		Profiles: r.profiles,
		Commit:   func() error { return nil },
		Rollback: func() error { return nil },
	}, nil
}

type testDeps struct {
	fetcher *fakeFetcher
	redis   *fakeRedis
	s3      *fakeS3
	repo    *fakeRepository
	dial    DetectorDialer
	cfg     Config
}

func newTestDeps() *testDeps {
	cfg := DefaultConfig()
	cfg.FrameMaxWidth = 0
	cfg.QueueSize = 8
	cfg.FaceMeshURL = "ws://face-mesh.test/ws"
	return &testDeps{
		fetcher: newFakeFetcher(),
		redis:   newFakeRedis(),
		s3:      &fakeS3{location: "https://models.test/uploaded.glb"},
		repo:    &fakeRepository{profiles: &fakeProfiles{profiles: map[string]entity.TryOnProfile{}}},
		cfg:     cfg,
	}
}

func (d *testDeps) build(t *testing.T) *tryOnService {
	t.Helper()
	dial := d.dial
	if dial == nil {
		dial = func(ctx context.Context, url string, opts websocketPkg.Options) (websocketPkg.ILandmarkDetector, error) {
			return nil, errors.New("no detector in tests")
		}
	}
	svc, err := NewTryOnService(quietLogger(), d.repo, d.redis, d.s3, d.fetcher, utils.New(0), dial, d.cfg)
	if err != nil {
		t.Fatalf("NewTryOnService: %v", err)
	}
	return svc.(*tryOnService)
}

func eyesFrame(left, right entity.Point) *entity.LandmarkFrame {
	pts := make([]entity.Point, overlay.DefaultRightEyeIndex+1)
	pts[overlay.DefaultLeftEyeIndex] = left
	pts[overlay.DefaultRightEyeIndex] = right
	return &entity.LandmarkFrame{Landmarks: pts}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func modelFileHeader(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("model", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/assets", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	return req.MultipartForm.File["model"][0]
}
