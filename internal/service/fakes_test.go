package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
	"github.com/bigkaa/goartstore/upload-relay/internal/tgclient"
)

// testLogger — логгер для тестов (только ошибки).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock Uploader ---

// step — заранее заданный исход одной попытки.
type step struct {
	resp *tgclient.Response
	err  error
}

// fakeUploader возвращает исходы по порядку и записывает запросы.
// Если исходы закончились, повторяется последний.
type fakeUploader struct {
	steps    []step
	requests []tgclient.UpstreamRequest
	// payloads — содержимое файла, прочитанное на каждой попытке
	payloads []string
	onSend   func()
}

func (f *fakeUploader) Send(_ context.Context, req tgclient.UpstreamRequest) (*tgclient.Response, error) {
	if f.onSend != nil {
		f.onSend()
	}
	f.requests = append(f.requests, req)

	if seeker, ok := req.File.Content.(io.Seeker); ok {
		_, _ = seeker.Seek(0, io.SeekStart)
	}
	data, _ := io.ReadAll(req.File.Content)
	f.payloads = append(f.payloads, string(data))

	i := len(f.requests) - 1
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	return f.steps[i].resp, f.steps[i].err
}

func (f *fakeUploader) calls() int {
	return len(f.requests)
}

// recordingSleeper записывает задержки вместо ожидания.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) {
	s.delays = append(s.delays, d)
}

func (s *recordingSleeper) total() time.Duration {
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

// --- Готовые исходы ---

func photoResponse(variants ...tgclient.PhotoSize) *tgclient.Response {
	return &tgclient.Response{
		OK: true,
		Message: &tgclient.Message{
			MessageID: 1,
			Media:     tgclient.Media{Kind: tgclient.MediaPhoto, Variants: variants},
		},
	}
}

func fileResponse(kind tgclient.MediaKind, fileID string) *tgclient.Response {
	return &tgclient.Response{
		OK: true,
		Message: &tgclient.Message{
			MessageID: 1,
			Media:     tgclient.Media{Kind: kind, File: tgclient.File{FileID: fileID}},
		},
	}
}

func rejected(description string) step {
	return step{err: &tgclient.RejectionError{StatusCode: 400, ErrorCode: 400, Description: description}}
}

func transportFailure() step {
	return step{err: &tgclient.TransportError{Err: errors.New("connection reset by peer")}}
}

func succeeded(resp *tgclient.Response) step {
	return step{resp: resp}
}

// --- Mock KV ---

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]kv.Entry
	putErr  error
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]kv.Entry)}
}

func (s *fakeStore) Put(_ context.Context, key, value string, meta model.StoredMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[key] = kv.Entry{Key: key, Value: value, Metadata: meta}
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) (*kv.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return &e, nil
}

func (s *fakeStore) Ready(context.Context) error { return nil }

func (s *fakeStore) Close() error { return nil }
