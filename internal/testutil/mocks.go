package testutil

import (
	"context"
	"deckpack/internal/deck"
	"deckpack/internal/models"
	"deckpack/internal/providers"
	"sync"
	"time"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many entries were logged at level on channel t.
func (m *MockLogger) Count(level string, t providers.TypeEnum) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level && e.Type == t {
			n++
		}
	}
	return n
}

// MockCodec implements deck.CodecInterface with injectable behavior.
type MockCodec struct {
	mu          sync.Mutex
	EncodeFn    func(ctx context.Context, cards []*models.Flashcard, deckName string) (*deck.EncodeResult, error)
	DecodeFn    func(ctx context.Context, data []byte) (*deck.DecodeResult, error)
	EncodeCalls int
	DecodeCalls int
}

func (m *MockCodec) Encode(ctx context.Context, cards []*models.Flashcard, deckName string) (*deck.EncodeResult, error) {
	m.mu.Lock()
	m.EncodeCalls++
	m.mu.Unlock()
	if m.EncodeFn != nil {
		return m.EncodeFn(ctx, cards, deckName)
	}
	return &deck.EncodeResult{Notes: len(cards), Cards: len(cards)}, nil
}

func (m *MockCodec) Decode(ctx context.Context, data []byte) (*deck.DecodeResult, error) {
	m.mu.Lock()
	m.DecodeCalls++
	m.mu.Unlock()
	if m.DecodeFn != nil {
		return m.DecodeFn(ctx, data)
	}
	return &deck.DecodeResult{Flashcards: []*models.Flashcard{}, Skipped: []deck.PartialImportWarning{}}, nil
}

// MockDeckService implements services.DeckServiceInterface.
type MockDeckService struct {
	mu          sync.Mutex
	ExportCalls []ExportCall
	ImportCalls [][]byte
	ExportRes   *deck.EncodeResult
	ExportErr   error
	ImportRes   *deck.DecodeResult
	ImportErr   error
}

type ExportCall struct {
	DeckName string
	Cards    []*models.Flashcard
}

func (m *MockDeckService) Export(_ context.Context, deckName string, cards []*models.Flashcard) (*deck.EncodeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExportCalls = append(m.ExportCalls, ExportCall{DeckName: deckName, Cards: cards})
	return m.ExportRes, m.ExportErr
}

func (m *MockDeckService) Import(_ context.Context, data []byte) (*deck.DecodeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ImportCalls = append(m.ImportCalls, data)
	return m.ImportRes, m.ImportErr
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu           sync.Mutex
	Requests     map[string]int
	CacheHits    int
	CacheMisses  int
	Exports      map[string]int
	Imports      map[string]int
	CodecOps     []string
	NotesSkipped int
	MediaBytes   int64
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Requests: make(map[string]int),
		Exports:  make(map[string]int),
		Imports:  make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[endpoint]++
}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}
func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}
func (m *MockMetrics) IncExports(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Exports[outcome]++
}
func (m *MockMetrics) IncImports(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Imports[outcome]++
}
func (m *MockMetrics) ObserveCodecDuration(operation string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CodecOps = append(m.CodecOps, operation)
}
func (m *MockMetrics) AddNotesSkipped(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotesSkipped += count
}
func (m *MockMetrics) AddMediaBytes(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MediaBytes += count
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {
	m.Closed = true
}
