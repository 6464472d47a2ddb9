package internal

import (
	"bytes"
	"context"
	"deckpack/internal/deck"
	"deckpack/internal/models"
	"deckpack/internal/structures"
	"deckpack/internal/testutil"
	"errors"
	"github.com/klauspost/compress/zip"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wiringConfig() *structures.Config {
	return &structures.Config{
		AppName: "deckpack",
		Codec: structures.CodecConfig{
			Serializer:      deck.SerializerJSON,
			MaxMediaBytes:   1 << 20,
			MaxArchiveBytes: 4 << 20,
			MaxEntryBytes:   4 << 20,
		},
	}
}

// repackModern moves the collection of a legacy archive under the modern
// entry name so the reader routes it through the decompressor.
func repackModern(t *testing.T, archive []byte) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	var payload []byte
	for _, f := range zr.File {
		if f.Name != "collection.anki2" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		payload, err = io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
	}
	require.NotEmpty(t, payload)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("collection.anki21b")
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	w, err = zw.Create(deck.MediaManifestEntry)
	require.NoError(t, err)
	_, err = w.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func exportForWiring(t *testing.T) []byte {
	t.Helper()
	codec, err := deck.NewCodecFromConfig(wiringConfig(), nil)
	require.NoError(t, err)
	res, err := codec.Encode(context.Background(), []*models.Flashcard{
		{Type: models.TypeBasic, Front: "capital of France", Back: "Paris"},
	}, "Geo")
	require.NoError(t, err)
	return res.Archive
}

func TestCodecFromConfig_ModernEntryUsesCompressor(t *testing.T) {
	archive := repackModern(t, exportForWiring(t))

	calls := 0
	compressor := &testutil.MockCompressor{
		DecompressFn: func(b []byte) ([]byte, error) {
			calls++
			return b, nil
		},
	}
	codec, err := deck.NewCodecFromConfig(wiringConfig(), compressor)
	require.NoError(t, err)

	res, err := codec.Decode(context.Background(), archive)
	require.NoError(t, err)
	require.Len(t, res.Flashcards, 1)
	assert.Equal(t, "capital of France", res.Flashcards[0].Front)
	assert.Equal(t, "Paris", res.Flashcards[0].Back)
	assert.Equal(t, 1, calls)
}

func TestCodecFromConfig_DecompressFailureIsFormatError(t *testing.T) {
	archive := repackModern(t, exportForWiring(t))

	compressor := &testutil.MockCompressor{
		DecompressFn: func([]byte) ([]byte, error) { return nil, errors.New("corrupt frame") },
	}
	codec, err := deck.NewCodecFromConfig(wiringConfig(), compressor)
	require.NoError(t, err)

	_, err = codec.Decode(context.Background(), archive)
	require.Error(t, err)
	assert.Equal(t, deck.KindFormat, deck.ErrorKind(err))
}

func TestCodecFromConfig_ModernEntryWithoutCompressor(t *testing.T) {
	archive := repackModern(t, exportForWiring(t))

	codec, err := deck.NewCodecFromConfig(wiringConfig(), nil)
	require.NoError(t, err)

	_, err = codec.Decode(context.Background(), archive)
	require.Error(t, err)
	assert.Equal(t, deck.KindFormat, deck.ErrorKind(err))
}
