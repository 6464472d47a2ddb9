package deck

import (
	"bytes"
	"context"
	"deckpack/internal/deck/interfaces"
	"deckpack/internal/models"
	"errors"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
	"time"
)

// MediaManifestEntry names the manifest inside the archive.
const MediaManifestEntry = "media"

var errArchiveLimit = errors.New("archive limit reached")

// limitedWriter fails once more than max bytes have been written. A
// non-positive max disables the limit.
type limitedWriter struct {
	buf *bytes.Buffer
	max int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.max > 0 && int64(w.buf.Len()+len(p)) > w.max {
		return 0, errArchiveLimit
	}
	return w.buf.Write(p)
}

type PackageWriter struct {
	serializer      interfaces.SerializerInterface
	maxArchiveBytes int64
	clock           func() time.Time
}

func NewPackageWriter(serializer interfaces.SerializerInterface, maxArchiveBytes int64) *PackageWriter {
	return &PackageWriter{serializer: serializer, maxArchiveBytes: maxArchiveBytes, clock: time.Now}
}

// Write packs the collection and its media into one archive. Nothing is
// returned unless every entry was written.
func (w *PackageWriter) Write(ctx context.Context, coll *models.Collection, media []MediaEntry) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := w.serializer.Marshal(ctx, coll)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, wrapArchive("serialize collection", err)
	}

	manifest := make(map[string]string, len(media))
	for _, m := range media {
		manifest[m.Name] = m.Name
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, wrapArchive("encode media manifest", err)
	}

	out := &limitedWriter{buf: &bytes.Buffer{}, max: w.maxArchiveBytes}
	zw := zip.NewWriter(out)
	modified := w.clock()

	if err := w.addEntry(zw, w.serializer.EntryName(), payload, zip.Deflate, modified); err != nil {
		return nil, w.fail(zw, err)
	}
	if err := w.addEntry(zw, MediaManifestEntry, manifestJSON, zip.Deflate, modified); err != nil {
		return nil, w.fail(zw, err)
	}
	for _, m := range media {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return nil, err
		}
		if err := w.addEntry(zw, m.Name, m.Data, zip.Store, modified); err != nil {
			return nil, w.fail(zw, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, w.classify(err)
	}
	return out.buf.Bytes(), nil
}

func (w *PackageWriter) addEntry(zw *zip.Writer, name string, data []byte, method uint16, modified time.Time) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: modified,
	})
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}

func (w *PackageWriter) fail(zw *zip.Writer, err error) error {
	_ = zw.Close()
	return w.classify(err)
}

func (w *PackageWriter) classify(err error) error {
	if errors.Is(err, errArchiveLimit) {
		return tooLarge("archive", w.maxArchiveBytes)
	}
	return wrapArchive("write archive", err)
}
