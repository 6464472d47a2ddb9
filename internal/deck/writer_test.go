package deck

import (
	"bytes"
	"context"
	"deckpack/internal/models"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(maxArchive int64) *PackageWriter {
	w := NewPackageWriter(NewJSONSerializer(), maxArchive)
	w.clock = fixedClock
	return w
}

func TestPackageWriter_Entries(t *testing.T) {
	coll, media := sealedCollection(t,
		&models.Flashcard{Front: "q", Back: "a", Images: []string{pngDataURI(1), pngDataURI(2)}},
	)
	archive, err := newTestWriter(0).Write(context.Background(), coll, media.Entries())
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	methods := make(map[string]uint16)
	for _, f := range zr.File {
		names = append(names, f.Name)
		methods[f.Name] = f.Method
		assert.True(t, f.Modified.Equal(testNow), f.Name)
	}
	assert.Equal(t, []string{"collection.anki2", "media", "0", "1"}, names)
	assert.Equal(t, zip.Deflate, methods["collection.anki2"])
	assert.Equal(t, zip.Deflate, methods["media"])
	assert.Equal(t, zip.Store, methods["0"])

	entries := readZip(t, archive)
	var manifest map[string]string
	require.NoError(t, json.Unmarshal(entries["media"], &manifest))
	assert.Equal(t, map[string]string{"0": "0", "1": "1"}, manifest)
	assert.Equal(t, pngBytes(1), entries["0"])
	assert.Equal(t, pngBytes(2), entries["1"])
}

func TestPackageWriter_EmptyManifest(t *testing.T) {
	coll, _ := sealedCollection(t)
	archive, err := newTestWriter(0).Write(context.Background(), coll, nil)
	require.NoError(t, err)

	entries := readZip(t, archive)
	assert.Len(t, entries, 2)
	assert.Equal(t, "{}", string(entries["media"]))
}

func TestPackageWriter_ArchiveLimit(t *testing.T) {
	coll, media := sealedCollection(t,
		&models.Flashcard{Front: "q", Back: "a", Images: []string{pngDataURI(1)}},
	)
	archive, err := newTestWriter(256).Write(context.Background(), coll, media.Entries())
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Nil(t, archive)
}

func TestPackageWriter_Canceled(t *testing.T) {
	coll, _ := sealedCollection(t, &models.Flashcard{Front: "q", Back: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestWriter(0).Write(ctx, coll, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, ErrorKind(err))
}
