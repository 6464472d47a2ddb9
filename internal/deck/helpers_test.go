package deck

import (
	"bytes"
	"context"
	"deckpack/internal/deck/interfaces"
	"deckpack/internal/models"
	"deckpack/internal/providers"
	"encoding/base64"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// local mock logger to avoid import cycle with testutil
type testLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *testLogger) Errorf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *testLogger) Warnf(_ providers.TypeEnum, format string, _ ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, format)
}
func (m *testLogger) Debugf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *testLogger) Infof(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *testLogger) Fatalf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *testLogger) Close()                                                  {}

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// pngBytes is a PNG signature plus an IHDR chunk, enough for content sniffing.
func pngBytes(tail byte) []byte {
	return []byte{
		0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
		0, 0, 0, 13, 'I', 'H', 'D', 'R',
		0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0,
		0x90, 0x77, 0x53, tail,
	}
}

func pngDataURI(tail byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(tail))
}

func intPtr(v int) *int { return &v }

func newTestCodec(t *testing.T, serializer interfaces.SerializerInterface, limits Limits) *Codec {
	t.Helper()
	codec, err := NewCodec(Options{
		Serializer: serializer,
		Limits:     limits,
		Clock:      fixedClock,
	})
	require.NoError(t, err)
	return codec
}

type zipEntry struct {
	name   string
	data   []byte
	method uint16
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := e.method
		if method == 0 {
			method = zip.Deflate
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readZip(t *testing.T, archive []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = body
	}
	return out
}

// sealedCollection builds a collection from cards the way Encode does, with
// media going into the returned registry.
func sealedCollection(t *testing.T, cards ...*models.Flashcard) (*models.Collection, *MediaRegistry) {
	t.Helper()
	media := NewMediaRegistry(0)
	b := NewCollectionBuilder(NewIdentifierGenerator(fixedClock), NewFlashcardAdapter(media), fixedClock, "test deck")
	require.NoError(t, b.Begin("Test", RequiresReverse(cards)))
	for _, c := range cards {
		require.NoError(t, b.AddFlashcard(c))
	}
	coll, err := b.Seal()
	require.NoError(t, err)
	return coll, media
}

func marshalCollection(t *testing.T, s interfaces.SerializerInterface, coll *models.Collection) []byte {
	t.Helper()
	payload, err := s.Marshal(context.Background(), coll)
	require.NoError(t, err)
	return payload
}
