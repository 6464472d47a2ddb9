package deck

import (
	"bytes"
	"context"
	"deckpack/internal/deck/interfaces"
	"deckpack/internal/models"
	"errors"
	"fmt"
	"github.com/gabriel-vasile/mimetype"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/cast"
	"golang.org/x/net/html"
	"google.golang.org/protobuf/encoding/protowire"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const missingMediaPrefix = "missing-media:"

// Package is an archive opened by PackageReader.
type Package struct {
	Collection      *models.Collection
	CollectionEntry string
	// Manifest maps archive entry names to the display names notes refer to.
	Manifest map[string]string
	// Media holds payloads by display name.
	Media map[string][]byte

	missing map[string]struct{}
}

type ReaderLimits struct {
	MaxArchiveBytes int64
	MaxEntryBytes   int64
}

type PackageReader struct {
	serializers []interfaces.SerializerInterface
	compressor  interfaces.CompressorInterface
	limits      ReaderLimits
}

// NewPackageReader accepts every serializer whose payload it should recognise.
// compressor may be nil, in which case zstd packed archives are refused.
func NewPackageReader(serializers []interfaces.SerializerInterface, compressor interfaces.CompressorInterface, limits ReaderLimits) *PackageReader {
	return &PackageReader{serializers: serializers, compressor: compressor, limits: limits}
}

func (r *PackageReader) Read(ctx context.Context, data []byte) (*Package, error) {
	if len(data) == 0 {
		return nil, formatErr("empty archive")
	}
	if r.limits.MaxArchiveBytes > 0 && int64(len(data)) > r.limits.MaxArchiveBytes {
		return nil, tooLarge("archive", r.limits.MaxArchiveBytes)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, wrapFormat("not a deck package", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files[f.Name] = f
	}

	entry := pickCollectionEntry(files)
	if entry == "" {
		return nil, formatErr("collection entry missing")
	}
	manifestFile, ok := files[MediaManifestEntry]
	if !ok {
		return nil, formatErr("media manifest missing")
	}
	packed := entry == modernCollectionEntry

	payload, err := r.readEntry(files[entry], packed)
	if err != nil {
		return nil, err
	}
	coll, err := r.unmarshal(ctx, payload)
	if err != nil {
		return nil, err
	}

	rawManifest, err := r.readEntry(manifestFile, false)
	if err != nil {
		return nil, err
	}
	var manifest map[string]string
	if packed && !bytes.HasPrefix(bytes.TrimSpace(rawManifest), []byte("{")) {
		manifest, err = r.parseModernManifest(rawManifest)
	} else {
		manifest, err = parseLegacyManifest(rawManifest)
	}
	if err != nil {
		return nil, err
	}

	pkg := &Package{
		Collection:      coll,
		CollectionEntry: entry,
		Manifest:        manifest,
		Media:           make(map[string][]byte, len(manifest)),
		missing:         make(map[string]struct{}),
	}

	keys := make([]string, 0, len(manifest))
	for key := range manifest {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, ok := files[key]
		if !ok {
			continue
		}
		body, err := r.readEntry(f, packed)
		if err != nil {
			return nil, err
		}
		pkg.Media[manifest[key]] = body
	}
	return pkg, nil
}

// pickCollectionEntry prefers the newest collection format present.
func pickCollectionEntry(files map[string]*zip.File) string {
	for _, name := range []string{modernCollectionEntry, anki21CollectionEntry, legacyCollectionEntry} {
		if _, ok := files[name]; ok {
			return name
		}
	}
	var fallback []string
	for name := range files {
		if strings.HasPrefix(name, "collection.") {
			fallback = append(fallback, name)
		}
	}
	if len(fallback) == 0 {
		return ""
	}
	sort.Strings(fallback)
	return fallback[0]
}

func (r *PackageReader) readEntry(f *zip.File, packed bool) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, wrapArchive("open "+f.Name, err)
	}
	defer rc.Close()

	var src io.Reader = rc
	if r.limits.MaxEntryBytes > 0 {
		src = io.LimitReader(rc, r.limits.MaxEntryBytes+1)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, wrapArchive("read "+f.Name, err)
	}
	if r.limits.MaxEntryBytes > 0 && int64(len(body)) > r.limits.MaxEntryBytes {
		return nil, tooLarge("entry "+f.Name, r.limits.MaxEntryBytes)
	}
	if !packed {
		return body, nil
	}
	if r.compressor == nil {
		return nil, formatErr("entry %s is zstd packed but no decompressor is configured", f.Name)
	}
	out, err := r.compressor.Decompress(body)
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) {
			return nil, tooLarge("entry "+f.Name, r.limits.MaxEntryBytes)
		}
		return nil, wrapFormat("decompress "+f.Name, err)
	}
	if r.limits.MaxEntryBytes > 0 && int64(len(out)) > r.limits.MaxEntryBytes {
		return nil, tooLarge("entry "+f.Name, r.limits.MaxEntryBytes)
	}
	return out, nil
}

func (r *PackageReader) unmarshal(ctx context.Context, payload []byte) (*models.Collection, error) {
	for _, s := range r.serializers {
		if !s.Detect(payload) {
			continue
		}
		coll, err := s.Unmarshal(ctx, payload)
		if err != nil {
			if errors.Is(err, ErrFormat) || ctx.Err() != nil {
				return nil, err
			}
			return nil, wrapFormat(s.Name()+" collection", err)
		}
		return coll, nil
	}
	return nil, formatErr("unrecognized collection payload")
}

func parseLegacyManifest(raw []byte) (map[string]string, error) {
	manifest := make(map[string]string)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return manifest, nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, wrapFormat("media manifest", err)
	}
	for key, v := range doc {
		name, err := cast.ToStringE(v)
		if err != nil || name == "" {
			return nil, formatErr("media manifest entry %q has no name", key)
		}
		manifest[key] = name
	}
	return manifest, nil
}

// parseModernManifest decodes the zstd packed protobuf manifest:
// MediaEntries{repeated MediaEntry entries = 1}, where MediaEntry carries
// name = 1, size = 2, sha1 = 3 and legacy_zip_filename = 255. Entry i is
// stored under the zip name "i" unless a legacy filename says otherwise.
func (r *PackageReader) parseModernManifest(raw []byte) (map[string]string, error) {
	if r.compressor == nil {
		return nil, formatErr("media manifest is zstd packed but no decompressor is configured")
	}
	b, err := r.compressor.Decompress(raw)
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) {
			return nil, tooLarge("media manifest", r.limits.MaxEntryBytes)
		}
		return nil, wrapFormat("decompress media manifest", err)
	}

	manifest := make(map[string]string)
	for idx := 0; len(b) > 0; {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, wrapFormat("media manifest", protowire.ParseError(n))
		}
		b = b[n:]
		if num == 1 && typ == protowire.BytesType {
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, wrapFormat("media manifest", protowire.ParseError(n))
			}
			b = b[n:]
			name, legacy, err := parseMediaEntry(msg)
			if err != nil {
				return nil, err
			}
			key := strconv.Itoa(idx)
			if legacy >= 0 {
				key = strconv.FormatInt(legacy, 10)
			}
			if name != "" {
				manifest[key] = name
			}
			idx++
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, wrapFormat("media manifest", protowire.ParseError(n))
		}
		b = b[n:]
	}
	return manifest, nil
}

func parseMediaEntry(b []byte) (name string, legacy int64, err error) {
	legacy = -1
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", 0, wrapFormat("media entry", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", 0, wrapFormat("media entry name", protowire.ParseError(n))
			}
			name = string(v)
			b = b[n:]
		case num == 255 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return "", 0, wrapFormat("media entry legacy name", protowire.ParseError(n))
			}
			legacy = int64(v)
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", 0, wrapFormat("media entry", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return name, legacy, nil
}

var mediaSrc = regexp.MustCompile(`(?i)(\bsrc\s*=\s*)(["'])([^"']*)(["'])`)

// ResolveMediaReferences rewrites relative src attributes into data URIs built
// from the stored payloads. Unknown names become a placeholder.
func (p *Package) ResolveMediaReferences(content string) string {
	if !strings.Contains(strings.ToLower(content), "src") {
		return content
	}
	return mediaSrc.ReplaceAllStringFunc(content, func(attr string) string {
		m := mediaSrc.FindStringSubmatch(attr)
		value := html.UnescapeString(m[3])
		if !isLocalMediaName(value) {
			return attr
		}
		return m[1] + m[2] + html.EscapeString(p.ResolveMediaName(value)) + m[4]
	})
}

// ResolveMediaName returns the data URI of a stored payload, the name itself
// when it is not a local media name, or a placeholder when nothing is stored.
func (p *Package) ResolveMediaName(name string) string {
	if !isLocalMediaName(name) {
		return name
	}
	payload, ok := p.Media[name]
	if !ok {
		if unescaped, err := url.PathUnescape(name); err == nil {
			payload, ok = p.Media[unescaped]
		}
	}
	if !ok || len(payload) == 0 {
		p.missing[name] = struct{}{}
		return missingMediaPrefix + name
	}
	mime, _, _ := strings.Cut(mimetype.Detect(payload).String(), ";")
	return encodeDataURI(mime, payload)
}

// MissingMedia lists names referenced by notes but absent from the archive.
func (p *Package) MissingMedia() []string {
	out := make([]string, 0, len(p.missing))
	for name := range p.missing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func isLocalMediaName(v string) bool {
	if v == "" || strings.HasPrefix(v, "//") || strings.HasPrefix(v, "/") {
		return false
	}
	if strings.HasPrefix(v, missingMediaPrefix) {
		return false
	}
	if i := strings.IndexByte(v, ':'); i > 0 {
		scheme := v[:i]
		if !strings.ContainsAny(scheme, "/.?#") {
			return false
		}
	}
	return true
}

// ExtractFlashcards rebuilds one flashcard per note. Notes the adapter rejects
// are reported in Skipped and never abort the call.
func (r *PackageReader) ExtractFlashcards(ctx context.Context, pkg *Package, adapter *FlashcardAdapter) (*DecodeResult, error) {
	coll := pkg.Collection
	result := &DecodeResult{
		Flashcards: make([]*models.Flashcard, 0, len(coll.Notes)),
		Skipped:    []PartialImportWarning{},
		Total:      len(coll.Notes),
	}
	grouped := coll.CardsByNote()

	for i, note := range coll.Notes {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		model, _ := coll.Model(int64(note.ModelID))
		card, err := adapter.FromNote(note, model, grouped[note.ID], pkg)
		if err != nil {
			var mErr *malformedNoteError
			if errors.As(err, &mErr) {
				result.Skipped = append(result.Skipped, PartialImportWarning{Index: i, NoteID: note.ID, Reason: mErr.reason})
				continue
			}
			return nil, fmt.Errorf("note %d: %w", note.ID, err)
		}
		result.Flashcards = append(result.Flashcards, card)
	}
	result.MissingMedia = pkg.MissingMedia()
	return result, nil
}
