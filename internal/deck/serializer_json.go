package deck

import (
	"bytes"
	"context"
	"deckpack/internal/deck/interfaces"
	"deckpack/internal/models"
	json "github.com/goccy/go-json"
)

const (
	SerializerJSON   = "json"
	SerializerSQLite = "sqlite"

	legacyCollectionEntry = "collection.anki2"
	anki21CollectionEntry = "collection.anki21"
	modernCollectionEntry = "collection.anki21b"
)

type jsonCollection struct {
	Col    *colRow              `json:"col"`
	Notes  []*models.Note       `json:"notes"`
	Cards  []*models.Card       `json:"cards"`
	Revlog []models.RevlogEntry `json:"revlog"`
}

// JSONSerializer stores the collection as one JSON document laid out like the
// relational tables. It is readable by this package only.
type JSONSerializer struct{}

func NewJSONSerializer() interfaces.SerializerInterface {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Name() string      { return SerializerJSON }
func (s *JSONSerializer) EntryName() string { return legacyCollectionEntry }

func (s *JSONSerializer) Detect(payload []byte) bool {
	trimmed := bytes.TrimLeft(payload, " \t\r\n\ufeff")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func (s *JSONSerializer) Marshal(ctx context.Context, coll *models.Collection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, err := encodeColRow(coll)
	if err != nil {
		return nil, err
	}
	doc := jsonCollection{
		Col:    row,
		Notes:  coll.Notes,
		Cards:  coll.Cards,
		Revlog: coll.ChangeLog,
	}
	if doc.Notes == nil {
		doc.Notes = []*models.Note{}
	}
	if doc.Cards == nil {
		doc.Cards = []*models.Card{}
	}
	if doc.Revlog == nil {
		doc.Revlog = []models.RevlogEntry{}
	}
	return json.Marshal(doc)
}

func (s *JSONSerializer) Unmarshal(ctx context.Context, payload []byte) (*models.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc jsonCollection
	if err := json.Unmarshal(bytes.TrimPrefix(payload, []byte("\ufeff")), &doc); err != nil {
		return nil, wrapFormat("collection document", err)
	}
	if doc.Col == nil {
		return nil, formatErr("collection document has no col row")
	}

	coll := &models.Collection{}
	if err := decodeColRow(doc.Col, coll); err != nil {
		return nil, err
	}
	for _, n := range doc.Notes {
		if n != nil {
			coll.Notes = append(coll.Notes, n)
		}
	}
	for _, c := range doc.Cards {
		if c != nil {
			coll.Cards = append(coll.Cards, c)
		}
	}
	coll.ChangeLog = doc.Revlog
	return coll, nil
}
