package deck

import (
	"deckpack/internal/models"
	"fmt"
	json "github.com/goccy/go-json"
	"strconv"
	"strings"
	"time"
)

type builderState int

const (
	stateEmpty builderState = iota
	stateConfigured
	statePopulated
	stateSealed
)

func (s builderState) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateConfigured:
		return "configured"
	case statePopulated:
		return "populated"
	case stateSealed:
		return "sealed"
	}
	return "unknown"
}

const (
	defaultDeckName = "Default"
	defaultConfID   = 1
	schemaVersion   = 11
)

const (
	frontTemplate = "{{Front}}"
	backTemplate  = "{{FrontSide}}\n\n<hr id=answer>\n\n{{Back}}"
	reverseFront  = "{{Back}}"
	reverseBack   = "{{FrontSide}}\n\n<hr id=answer>\n\n{{Front}}"
	modelCSS      = ".card {\n font-family: arial;\n font-size: 20px;\n text-align: center;\n color: black;\n background-color: white;\n}\n"
	latexPre      = "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage[utf8]{inputenc}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n"
	latexPost     = "\\end{document}"
)

// defaultDeckConf is the scheduling option group every exported deck points at.
const defaultDeckConf = `{"id":1,"name":"Default","mod":0,"usn":0,"maxTaken":60,"autoplay":true,"timer":0,"replayq":true,"dyn":false,` +
	`"new":{"bury":true,"delays":[1,10],"initialFactor":2500,"ints":[1,4,7],"order":1,"perDay":20,"separate":true},` +
	`"lapse":{"delays":[10],"leechAction":0,"leechFails":8,"minInt":1,"mult":0},` +
	`"rev":{"bury":true,"ease4":1.3,"fuzz":0.05,"ivlFct":1,"maxIvl":36500,"minSpace":1,"perDay":100}}`

// CollectionBuilder assembles one deck worth of notes and cards. A builder is
// single use: Begin, any number of AddFlashcard calls, then Seal.
type CollectionBuilder struct {
	ids         *IdentifierGenerator
	adapter     *FlashcardAdapter
	clock       func() time.Time
	description string

	state   builderState
	began   time.Time
	deck    *models.Deck
	model   *models.NoteModel
	notes   []*models.Note
	cards   []*models.Card
	tags    map[string]int
	guids   map[string]struct{}
	nextPos int64
}

func NewCollectionBuilder(ids *IdentifierGenerator, adapter *FlashcardAdapter, clock func() time.Time, description string) *CollectionBuilder {
	if clock == nil {
		clock = time.Now
	}
	return &CollectionBuilder{
		ids:         ids,
		adapter:     adapter,
		clock:       clock,
		description: description,
		tags:        make(map[string]int),
		guids:       make(map[string]struct{}),
		nextPos:     1,
	}
}

// noteGUID keeps a supplied guid unless it is empty or already taken by an
// earlier note of this collection.
func (b *CollectionBuilder) noteGUID(supplied string) string {
	guid := supplied
	for {
		if _, taken := b.guids[guid]; guid != "" && !taken {
			break
		}
		guid = b.ids.NextGUID()
	}
	b.guids[guid] = struct{}{}
	return guid
}

func (b *CollectionBuilder) invalid(op string) error {
	return fmt.Errorf("%w: %s called on %s builder", ErrInvalidState, op, b.state)
}

// Begin allocates the deck and the note model. withReverse adds the second
// template needed by inverted flashcards.
func (b *CollectionBuilder) Begin(deckName string, withReverse bool) error {
	if b.state != stateEmpty {
		return b.invalid("Begin")
	}

	deckName = strings.TrimSpace(normalizeField(deckName))
	if deckName == "" {
		deckName = defaultDeckName
	}

	b.began = b.clock()
	mod := b.began.Unix()

	b.deck = &models.Deck{
		ID:        models.FlexInt(b.ids.NextID()),
		Name:      deckName,
		Mod:       mod,
		Usn:       -1,
		Desc:      b.description,
		Conf:      defaultConfID,
		ExtendNew: 10,
		ExtendRev: 50,
	}

	did := b.deck.ID
	b.model = &models.NoteModel{
		ID:    models.FlexInt(b.ids.NextID()),
		Name:  "Basic",
		Type:  models.ModelTypeStandard,
		Mod:   mod,
		Usn:   -1,
		Sortf: 0,
		Did:   &did,
		Tmpls: []models.CardTemplate{{
			Name: "Card 1", Ord: 0, Qfmt: frontTemplate, Afmt: backTemplate,
		}},
		Flds: []models.ModelField{
			{Name: "Front", Ord: 0, Font: "Arial", Size: 20, Media: []string{}},
			{Name: "Back", Ord: 1, Font: "Arial", Size: 20, Media: []string{}},
		},
		CSS:       modelCSS,
		LatexPre:  latexPre,
		LatexPost: latexPost,
		Req:       []models.TemplateRequirement{{Ord: 0, Kind: "any", Fields: []int{0}}},
		Tags:      []string{},
		Vers:      []interface{}{},
	}
	if withReverse {
		b.model.Name = "Basic (and reversed card)"
		b.model.Tmpls = append(b.model.Tmpls, models.CardTemplate{
			Name: "Card 2", Ord: 1, Qfmt: reverseFront, Afmt: reverseBack,
		})
		b.model.Req = append(b.model.Req, models.TemplateRequirement{Ord: 1, Kind: "any", Fields: []int{1}})
	}

	b.state = stateConfigured
	return nil
}

func (b *CollectionBuilder) AddFlashcard(card *models.Flashcard) error {
	if b.state != stateConfigured && b.state != statePopulated {
		return b.invalid("AddFlashcard")
	}

	content, err := b.adapter.ToNoteFields(card)
	if err != nil {
		return err
	}
	ords := []int{0}
	if content.Reverse {
		if len(b.model.Tmpls) < 2 {
			return fmt.Errorf("%w: inverted flashcard needs a reverse template", ErrInvalidState)
		}
		ords = append(ords, 1)
	}

	mod := b.clock().Unix()
	guid := b.noteGUID(card.GUID)
	note := &models.Note{
		ID:      b.ids.NextID(),
		GUID:    guid,
		ModelID: b.model.ID,
		Mod:     mod,
		Usn:     -1,
		Tags:    models.JoinTags(content.Tags),
		Flds:    strings.Join(content.Fields, models.FieldSeparator),
		Sfld:    StripMarkup(content.Fields[0]),
		Csum:    int64(Checksum(content.Fields[0])),
		Data:    content.Data,
	}
	b.notes = append(b.notes, note)

	for _, ord := range ords {
		b.cards = append(b.cards, &models.Card{
			ID:     b.ids.NextID(),
			NoteID: note.ID,
			DeckID: b.deck.ID,
			Ord:    ord,
			Mod:    mod,
			Usn:    -1,
			Type:   models.CardTypeNew,
			Queue:  models.CardQueueNew,
			Due:    b.nextPos,
		})
		b.nextPos++
	}

	for _, tag := range content.Tags {
		b.tags[tag] = 0
	}
	b.state = statePopulated
	return nil
}

// Seal freezes the builder and returns the collection snapshot.
func (b *CollectionBuilder) Seal() (*models.Collection, error) {
	if b.state != stateConfigured && b.state != statePopulated {
		return nil, b.invalid("Seal")
	}
	b.state = stateSealed

	now := b.clock()
	day := time.Date(b.began.Year(), b.began.Month(), b.began.Day(), 0, 0, 0, 0, b.began.Location())
	deckID := int64(b.deck.ID)

	tags := make(map[string]int, len(b.tags))
	for tag, usn := range b.tags {
		tags[tag] = usn
	}

	return &models.Collection{
		Meta: models.CollectionMeta{
			ID:  1,
			Crt: day.Unix(),
			Mod: now.UnixMilli(),
			Scm: b.began.UnixMilli(),
			Ver: schemaVersion,
			Conf: models.CollectionConf{
				ActiveDecks:  []int64{deckID},
				CurDeck:      deckID,
				CollapseTime: 1200,
				EstTimes:     true,
				DueCounts:    true,
				CurModel:     strconv.FormatInt(int64(b.model.ID), 10),
				NextPos:      b.nextPos,
				SortType:     "noteFld",
				AddToCur:     true,
			},
			DeckConfigs: map[string]json.RawMessage{
				strconv.Itoa(defaultConfID): json.RawMessage(defaultDeckConf),
			},
			Tags: tags,
		},
		Models:    []*models.NoteModel{b.model},
		Decks:     []*models.Deck{b.deck},
		Notes:     append(make([]*models.Note, 0, len(b.notes)), b.notes...),
		Cards:     append(make([]*models.Card, 0, len(b.cards)), b.cards...),
		ChangeLog: []models.RevlogEntry{},
	}, nil
}
