package deck

import (
	"context"
	"deckpack/internal/deck/interfaces"
	"deckpack/internal/models"
	"deckpack/internal/structures"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMaxMediaBytes   int64 = 64 << 20
	DefaultMaxArchiveBytes int64 = 128 << 20
	DefaultMaxEntryBytes   int64 = 64 << 20

	defaultAppName = "deckpack"
)

type Limits struct {
	MaxMediaBytes   int64
	MaxArchiveBytes int64
	MaxEntryBytes   int64
}

type Options struct {
	// Serializer encodes the collection entry on export.
	Serializer interfaces.SerializerInterface
	// Readers are tried in order on import; both built-in serializers by default.
	Readers    []interfaces.SerializerInterface
	Compressor interfaces.CompressorInterface
	Limits     Limits
	Clock      func() time.Time
	AppName    string
	CleanHTML  bool
}

type EncodeResult struct {
	Archive    []byte
	Notes      int
	Cards      int
	MediaFiles int
	MediaBytes int64
}

type DecodeResult struct {
	Flashcards   []*models.Flashcard    `json:"flashcards"`
	Skipped      []PartialImportWarning `json:"skipped"`
	Total        int                    `json:"total"`
	MissingMedia []string               `json:"missing_media,omitempty"`
}

type CodecInterface interface {
	Encode(ctx context.Context, cards []*models.Flashcard, deckName string) (*EncodeResult, error)
	Decode(ctx context.Context, data []byte) (*DecodeResult, error)
}

// Codec is safe for concurrent use. Every call builds its own registry,
// generator and builder.
type Codec struct {
	opts   Options
	writer *PackageWriter
	reader *PackageReader
}

func NewCodec(opts Options) (*Codec, error) {
	if opts.Serializer == nil {
		opts.Serializer = NewSQLiteSerializer("")
	}
	if len(opts.Readers) == 0 {
		opts.Readers = []interfaces.SerializerInterface{opts.Serializer}
		for _, s := range []interfaces.SerializerInterface{NewSQLiteSerializer(""), NewJSONSerializer()} {
			if s.Name() != opts.Serializer.Name() {
				opts.Readers = append(opts.Readers, s)
			}
		}
	}
	if opts.Limits.MaxMediaBytes == 0 {
		opts.Limits.MaxMediaBytes = DefaultMaxMediaBytes
	}
	if opts.Limits.MaxArchiveBytes == 0 {
		opts.Limits.MaxArchiveBytes = DefaultMaxArchiveBytes
	}
	if opts.Limits.MaxEntryBytes == 0 {
		opts.Limits.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if opts.Compressor == nil {
		z, err := newZstdCompression(opts.Limits.MaxEntryBytes)
		if err != nil {
			return nil, err
		}
		opts.Compressor = z
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.AppName == "" {
		opts.AppName = defaultAppName
	}

	writer := NewPackageWriter(opts.Serializer, opts.Limits.MaxArchiveBytes)
	writer.clock = opts.Clock

	return &Codec{
		opts:   opts,
		writer: writer,
		reader: NewPackageReader(opts.Readers, opts.Compressor, ReaderLimits{
			MaxArchiveBytes: opts.Limits.MaxArchiveBytes,
			MaxEntryBytes:   opts.Limits.MaxEntryBytes,
		}),
	}, nil
}

// NewCodecFromConfig builds the codec the daemon and the CLI share.
func NewCodecFromConfig(conf *structures.Config, compressor interfaces.CompressorInterface) (CodecInterface, error) {
	var serializer interfaces.SerializerInterface
	switch conf.Codec.Serializer {
	case SerializerJSON:
		serializer = NewJSONSerializer()
	case SerializerSQLite, "":
		serializer = NewSQLiteSerializer(conf.Codec.TempDir)
	default:
		return nil, fmt.Errorf("unknown collection serializer %q", conf.Codec.Serializer)
	}
	codec, err := NewCodec(Options{
		Serializer: serializer,
		Readers:    []interfaces.SerializerInterface{NewSQLiteSerializer(conf.Codec.TempDir), NewJSONSerializer()},
		Compressor: compressor,
		Limits: Limits{
			MaxMediaBytes:   conf.Codec.MaxMediaBytes,
			MaxArchiveBytes: conf.Codec.MaxArchiveBytes,
			MaxEntryBytes:   conf.Codec.MaxEntryBytes,
		},
		AppName:   conf.AppName,
		CleanHTML: conf.Codec.CleanImportedHTML,
	})
	if err != nil {
		return nil, err
	}
	return codec, nil
}

func (c *Codec) Encode(ctx context.Context, cards []*models.Flashcard, deckName string) (*EncodeResult, error) {
	ids := NewIdentifierGenerator(c.opts.Clock)
	media := NewMediaRegistry(c.opts.Limits.MaxMediaBytes)
	adapter := NewFlashcardAdapter(media)
	description := fmt.Sprintf("Deck exported from %s on %s", c.opts.AppName, c.opts.Clock().UTC().Format(time.RFC3339))
	builder := NewCollectionBuilder(ids, adapter, c.opts.Clock, description)

	if err := builder.Begin(deckName, RequiresReverse(cards)); err != nil {
		return nil, err
	}
	for i, card := range cards {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("encode interrupted: %w", err)
			}
		}
		if card == nil {
			continue
		}
		if err := builder.AddFlashcard(card); err != nil {
			return nil, fmt.Errorf("flashcard %d: %w", i, err)
		}
	}
	coll, err := builder.Seal()
	if err != nil {
		return nil, err
	}

	archive, err := c.writer.Write(ctx, coll, media.Entries())
	if err != nil {
		return nil, err
	}
	return &EncodeResult{
		Archive:    archive,
		Notes:      len(coll.Notes),
		Cards:      len(coll.Cards),
		MediaFiles: media.Len(),
		MediaBytes: media.TotalBytes(),
	}, nil
}

func (c *Codec) Decode(ctx context.Context, data []byte) (*DecodeResult, error) {
	pkg, err := c.reader.Read(ctx, data)
	if err != nil {
		return nil, err
	}
	adapter := NewFlashcardAdapter(nil)
	adapter.SetCleanHTML(c.opts.CleanHTML)
	return c.reader.ExtractFlashcards(ctx, pkg, adapter)
}

var (
	defaultCodecOnce sync.Once
	defaultCodec     *Codec
	defaultCodecErr  error
)

func sharedCodec() (*Codec, error) {
	defaultCodecOnce.Do(func() {
		defaultCodec, defaultCodecErr = NewCodec(Options{})
	})
	return defaultCodec, defaultCodecErr
}

// EncodeDeck packs flashcards with default options.
func EncodeDeck(cards []*models.Flashcard, deckName string) ([]byte, error) {
	codec, err := sharedCodec()
	if err != nil {
		return nil, err
	}
	res, err := codec.Encode(context.Background(), cards, deckName)
	if err != nil {
		return nil, err
	}
	return res.Archive, nil
}

// DecodeDeck unpacks an archive with default options.
func DecodeDeck(data []byte) (*DecodeResult, error) {
	codec, err := sharedCodec()
	if err != nil {
		return nil, err
	}
	return codec.Decode(context.Background(), data)
}
