package straincrawler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap/zaptest"
)

// fakeFetcher serves pages and binary resources from memory. Unknown urls are 404s.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	blobs  map[string][]byte
	errs   map[string]error
	calls  []string
	onCall func(url string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, blobs: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeFetcher) record(url string) error {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	hook := f.onCall
	err := f.errs[url]
	f.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	return err
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if err := f.record(url); err != nil {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &FetchError{URL: url, StatusCode: 404, Err: ErrNotFound}
	}
	return NewDocument(url, body)
}

func (f *fakeFetcher) FetchBytes(ctx context.Context, url string) ([]byte, string, error) {
	if err := f.record(url); err != nil {
		return nil, "", err
	}
	data, ok := f.blobs[url]
	if !ok {
		return nil, "", &FetchError{URL: url, StatusCode: 404, Err: ErrNotFound}
	}
	return data, "application/octet-stream", nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// memCheckpoint keeps checkpoint entries in a map keyed by run and name.
type memCheckpoint struct {
	mu      sync.Mutex
	entries map[string]CheckpointEntry
}

func newMemCheckpoint() *memCheckpoint {
	return &memCheckpoint{entries: map[string]CheckpointEntry{}}
}

func (m *memCheckpoint) Completed(_ context.Context, run string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, e := range m.entries {
		if e.Run == run && e.Status {
			out[e.Name] = true
		}
	}
	return out, nil
}

func (m *memCheckpoint) MarkComplete(_ context.Context, run, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[run+"/"+name]
	e.Run, e.Name, e.Status, e.Error = run, name, true, false
	e.Attempts++
	m.entries[run+"/"+name] = e
	return nil
}

func (m *memCheckpoint) MarkError(_ context.Context, run, name string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[run+"/"+name]
	e.Run, e.Name, e.Error = run, name, true
	e.LastError = cause.Error()
	e.Attempts++
	m.entries[run+"/"+name] = e
	return nil
}

func (m *memCheckpoint) Close(context.Context) error { return nil }

// fakeStore is an ObjectStore over a map.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	failPut   map[string]error
	failDel   map[string]error
	batchSize []int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: map[string][]byte{},
		types:   map[string]string{},
		failPut: map[string]error{},
		failDel: map[string]error{},
	}
}

func (s *fakeStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fakeStore) DeleteBatch(_ context.Context, keys []string) (DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res DeleteResult
	if len(keys) > MaxDeleteBatch {
		return res, fmt.Errorf("batch of %d keys", len(keys))
	}
	s.batchSize = append(s.batchSize, len(keys))
	for _, k := range keys {
		if err := s.failDel[k]; err != nil {
			res.Errors = append(res.Errors, DeleteFailure{Key: k, Err: err})
			continue
		}
		delete(s.objects, k)
		res.Deleted++
	}
	return res, nil
}

func (s *fakeStore) Head(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, contentType, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failPut[key]; err != nil {
		return err
	}
	s.objects[key] = data
	s.types[key] = contentType
	return nil
}

func (s *fakeStore) Close() error { return nil }

// newTestCrawler builds a crawler with defaults, no delays and a test logger.
func newTestCrawler(t *testing.T, fetcher Fetcher) *Crawler {
	t.Helper()
	v := viper.New()
	setConfigDefaults(v)
	engine := getDefaultEngine()
	engine.RequestDelay = 0
	engine.UploadDelay = 0
	engine.ImagesDir = t.TempDir()
	engine.PageDumpDir = t.TempDir()
	return &Crawler{
		Config:     &configService{v: v},
		Name:       "straincrawler-test",
		RunID:      "run-test",
		Logger:     newLoggerFromZap(zaptest.NewLogger(t)),
		engine:     &engine,
		fetcher:    fetcher,
		throttle:   newThrottle(0),
		checkpoint: nopCheckpoint{},
	}
}

// pngBytes is a 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func strPtr(s string) *string { return &s }
