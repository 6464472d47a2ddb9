package controllers

import (
	"bytes"
	"context"
	"deckpack/internal/deck"
	"deckpack/internal/models"
	"deckpack/internal/providers"
	"deckpack/internal/structures"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- local mocks (scoped to controller tests) ---

type mockLogger struct{}

func (m *mockLogger) Errorf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Warnf(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *mockLogger) Debugf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Infof(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *mockLogger) Fatalf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Close()                                                  {}

type mockService struct {
	exportDeck  string
	exportCards []*models.Flashcard
	exportRes   *deck.EncodeResult
	exportErr   error

	importCalls int
	importData  []byte
	importRes   *deck.DecodeResult
	importErr   error
}

func (m *mockService) Export(_ context.Context, deckName string, cards []*models.Flashcard) (*deck.EncodeResult, error) {
	m.exportDeck = deckName
	m.exportCards = cards
	return m.exportRes, m.exportErr
}

func (m *mockService) Import(_ context.Context, data []byte) (*deck.DecodeResult, error) {
	m.importCalls++
	m.importData = data
	return m.importRes, m.importErr
}

type mockCache struct {
	data map[string][]byte
}

func newMockCache() *mockCache                     { return &mockCache{data: make(map[string][]byte)} }
func (m *mockCache) Get(key string) ([]byte, bool) { v, ok := m.data[key]; return v, ok }
func (m *mockCache) Set(key string, value []byte)  { m.data[key] = value }

// --- helpers ---

func testConf() *structures.Config {
	return &structures.Config{
		Codec: structures.CodecConfig{
			Serializer:      "sqlite",
			MaxMediaBytes:   1 << 20,
			MaxArchiveBytes: 1 << 20,
			MaxEntryBytes:   1 << 20,
		},
	}
}

func newTestController(svc *mockService, cache *mockCache) *DeckController {
	return NewDeckController(&mockLogger{}, svc, cache, testConf())
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

// --- Export tests ---

func TestExport_ValidPayload(t *testing.T) {
	svc := &mockService{exportRes: &deck.EncodeResult{
		Archive:    []byte("PK\x03\x04archive"),
		Notes:      2,
		Cards:      3,
		MediaFiles: 1,
	}}
	dc := newTestController(svc, newMockCache())

	payload := `{"deckName":"  Spanish: Verbs  ","flashcards":[{"type":"basic","front":"hola","back":"hello"},{"type":"inverted","front":"adios","back":"bye"}]}`
	req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	dc.Export(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/apkg", rr.Header().Get("Content-Type"))
	assert.Equal(t, "2", rr.Header().Get("X-Deck-Notes"))
	assert.Equal(t, "3", rr.Header().Get("X-Deck-Cards"))
	assert.Equal(t, "1", rr.Header().Get("X-Deck-Media"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename="Spanish_Verbs_`)
	assert.Equal(t, []byte("PK\x03\x04archive"), rr.Body.Bytes())

	assert.Equal(t, "Spanish: Verbs", svc.exportDeck)
	require.Len(t, svc.exportCards, 2)
	assert.Equal(t, models.TypeInverted, svc.exportCards[1].Type)
}

func TestExport_InvalidJSON(t *testing.T) {
	svc := &mockService{}
	dc := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	dc.Export(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_request", decodeError(t, rr).Kind)
	assert.Empty(t, svc.exportDeck)
}

func TestExport_MissingDeckName(t *testing.T) {
	svc := &mockService{}
	dc := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(`{"deckName":"   ","flashcards":[]}`))
	rr := httptest.NewRecorder()
	dc.Export(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation", decodeError(t, rr).Kind)
}

func TestExport_DeckNameTooLong(t *testing.T) {
	dc := newTestController(&mockService{}, newMockCache())

	payload := fmt.Sprintf(`{"deckName":"%s","flashcards":[]}`, strings.Repeat("x", 201))
	req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	dc.Export(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExport_BodyTooLarge(t *testing.T) {
	dc := newTestController(&mockService{}, newMockCache())

	payload := `{"deckName":"big","flashcards":[{"front":"` + strings.Repeat("a", 3<<20) + `"}]}`
	req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	dc.Export(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, deck.KindPayloadTooLarge, decodeError(t, rr).Kind)
}

func TestExport_CodecErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"too large", fmt.Errorf("%w: media exceeds 10 bytes", deck.ErrPayloadTooLarge), http.StatusRequestEntityTooLarge, deck.KindPayloadTooLarge},
		{"invalid state", fmt.Errorf("%w: Seal called on sealed builder", deck.ErrInvalidState), http.StatusConflict, deck.KindInvalidState},
		{"canceled", context.Canceled, StatusClientClosedRequest, deck.KindCanceled},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, deck.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := newTestController(&mockService{exportErr: tt.err}, newMockCache())

			req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(`{"deckName":"d","flashcards":[]}`))
			rr := httptest.NewRecorder()
			dc.Export(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, tt.kind, body.Kind)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, body.Error, "disk on fire")
			}
		})
	}
}

// --- Import tests ---

func TestImport_ReturnsFlashcards(t *testing.T) {
	svc := &mockService{importRes: &deck.DecodeResult{
		Flashcards: []*models.Flashcard{{Type: models.TypeBasic, Front: "q", Back: "a"}},
		Skipped:    []deck.PartialImportWarning{{Index: 1, NoteID: 42, Reason: "empty fields"}},
		Total:      2,
	}}
	dc := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader([]byte("PK archive")))
	rr := httptest.NewRecorder()
	dc.Import(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp struct {
		Flashcards []*models.Flashcard          `json:"flashcards"`
		Skipped    []deck.PartialImportWarning `json:"skipped"`
		Total      int                         `json:"total"`
		Imported   int                         `json:"imported"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Imported)
	require.Len(t, resp.Flashcards, 1)
	assert.Equal(t, "q", resp.Flashcards[0].Front)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, int64(42), resp.Skipped[0].NoteID)
	assert.Equal(t, []byte("PK archive"), svc.importData)
}

func TestImport_CachesByContent(t *testing.T) {
	svc := &mockService{importRes: &deck.DecodeResult{Total: 0}}
	cache := newMockCache()
	dc := newTestController(svc, cache)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader([]byte("same archive")))
		rr := httptest.NewRecorder()
		dc.Import(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	assert.Equal(t, 1, svc.importCalls)
	assert.Len(t, cache.data, 1)
	for key := range cache.data {
		assert.True(t, strings.HasPrefix(key, "import:"))
	}
}

func TestImport_FormatErrorNotCached(t *testing.T) {
	svc := &mockService{importErr: fmt.Errorf("%w: not a deck package", deck.ErrFormat)}
	cache := newMockCache()
	dc := newTestController(svc, cache)

	req := httptest.NewRequest(http.MethodPost, "/import", strings.NewReader("garbage"))
	rr := httptest.NewRecorder()
	dc.Import(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, deck.KindFormat, body.Kind)
	assert.Contains(t, body.Error, "not a deck package")
	assert.Empty(t, cache.data)
}

func TestImport_ArchiveError(t *testing.T) {
	svc := &mockService{importErr: fmt.Errorf("%w: read media 0: unexpected EOF", deck.ErrArchive)}
	dc := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodPost, "/import", strings.NewReader("PK"))
	rr := httptest.NewRecorder()
	dc.Import(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, deck.KindArchive, decodeError(t, rr).Kind)
}

func TestImport_BodyTooLarge(t *testing.T) {
	svc := &mockService{}
	dc := newTestController(svc, newMockCache())

	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader(make([]byte, (1<<20)+1)))
	rr := httptest.NewRecorder()
	dc.Import(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Zero(t, svc.importCalls)
}

// --- helpers under test ---

func TestArchiveFileName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name     string
		deckName string
		expected string
	}{
		{"plain", "Verbs", "Verbs_1700000000.apkg"},
		{"spaces and punctuation", "Spanish: Verbs / Part 1", "Spanish_Verbs_Part_1_1700000000.apkg"},
		{"quotes stripped", `say "hi"`, "say_hi_1700000000.apkg"},
		{"unicode kept", "Русский", "Русский_1700000000.apkg"},
		{"nothing usable", "///", "deck_1700000000.apkg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, archiveFileName(tt.deckName, now))
		})
	}
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, StatusForError(deck.ErrFormat))
	assert.Equal(t, http.StatusBadRequest, StatusForError(deck.ErrArchive))
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusForError(deck.ErrPayloadTooLarge))
	assert.Equal(t, http.StatusConflict, StatusForError(deck.ErrInvalidState))
	assert.Equal(t, StatusClientClosedRequest, StatusForError(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, StatusForError(errors.New("boom")))
}
