package models

import (
	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
	"sort"
	"strings"
)

// FieldSeparator joins note field values inside notes.flds.
const FieldSeparator = "\x1f"

// FlexInt decodes ids that external exporters write either as numbers or as
// numeric strings. It always encodes as a JSON number.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = 0
		return nil
	}
	v, err := cast.ToInt64E(raw)
	if err != nil {
		return err
	}
	*f = FlexInt(v)
	return nil
}

type CollectionConf struct {
	ActiveDecks   []int64 `json:"activeDecks"`
	CurDeck       int64   `json:"curDeck"`
	NewSpread     int     `json:"newSpread"`
	CollapseTime  int     `json:"collapseTime"`
	TimeLim       int     `json:"timeLim"`
	EstTimes      bool    `json:"estTimes"`
	DueCounts     bool    `json:"dueCounts"`
	CurModel      string  `json:"curModel"`
	NextPos       int64   `json:"nextPos"`
	SortType      string  `json:"sortType"`
	SortBackwards bool    `json:"sortBackwards"`
	AddToCur      bool    `json:"addToCur"`
	DayLearnFirst bool    `json:"dayLearnFirst"`
}

type CollectionMeta struct {
	ID   int64
	Crt  int64
	Mod  int64
	Scm  int64
	Ver  int
	Dty  int
	Usn  int
	Ls   int64
	Conf CollectionConf
	// DeckConfigs is kept opaque; this package only ever writes the default one.
	DeckConfigs map[string]json.RawMessage
	Tags        map[string]int
}

type CardTemplate struct {
	Name  string   `json:"name"`
	Ord   int      `json:"ord"`
	Qfmt  string   `json:"qfmt"`
	Afmt  string   `json:"afmt"`
	Bqfmt string   `json:"bqfmt"`
	Bafmt string   `json:"bafmt"`
	Did   *FlexInt `json:"did"`
}

type ModelField struct {
	Name   string   `json:"name"`
	Ord    int      `json:"ord"`
	Sticky bool     `json:"sticky"`
	Rtl    bool     `json:"rtl"`
	Font   string   `json:"font"`
	Size   int      `json:"size"`
	Media  []string `json:"media"`
}

// TemplateRequirement is encoded as the array triple [ord, "any"|"all", [fieldOrds]].
type TemplateRequirement struct {
	Ord    int
	Kind   string
	Fields []int
}

func (r TemplateRequirement) MarshalJSON() ([]byte, error) {
	fields := r.Fields
	if fields == nil {
		fields = []int{}
	}
	return json.Marshal([]interface{}{r.Ord, r.Kind, fields})
}

func (r *TemplateRequirement) UnmarshalJSON(b []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = TemplateRequirement{}
	if len(raw) > 0 {
		r.Ord = cast.ToInt(raw[0])
	}
	if len(raw) > 1 {
		r.Kind = cast.ToString(raw[1])
	}
	if len(raw) > 2 {
		r.Fields = cast.ToIntSlice(raw[2])
	}
	return nil
}

const (
	ModelTypeStandard = 0
	ModelTypeCloze    = 1
)

type NoteModel struct {
	ID        FlexInt               `json:"id"`
	Name      string                `json:"name"`
	Type      int                   `json:"type"`
	Mod       int64                 `json:"mod"`
	Usn       int                   `json:"usn"`
	Sortf     int                   `json:"sortf"`
	Did       *FlexInt              `json:"did"`
	Tmpls     []CardTemplate        `json:"tmpls"`
	Flds      []ModelField          `json:"flds"`
	CSS       string                `json:"css"`
	LatexPre  string                `json:"latexPre"`
	LatexPost string                `json:"latexPost"`
	LatexSvg  bool                  `json:"latexsvg"`
	Req       []TemplateRequirement `json:"req"`
	Tags      []string              `json:"tags"`
	Vers      []interface{}         `json:"vers"`
}

func (m *NoteModel) FieldNames() []string {
	names := make([]string, len(m.Flds))
	for i, f := range m.Flds {
		names[i] = f.Name
	}
	return names
}

type Deck struct {
	ID               FlexInt `json:"id"`
	Name             string  `json:"name"`
	Mod              int64   `json:"mod"`
	Usn              int     `json:"usn"`
	LrnToday         [2]int  `json:"lrnToday"`
	RevToday         [2]int  `json:"revToday"`
	NewToday         [2]int  `json:"newToday"`
	TimeToday        [2]int  `json:"timeToday"`
	Collapsed        bool    `json:"collapsed"`
	BrowserCollapsed bool    `json:"browserCollapsed"`
	Desc             string  `json:"desc"`
	Dyn              int     `json:"dyn"`
	Conf             int64   `json:"conf"`
	ExtendNew        int     `json:"extendNew"`
	ExtendRev        int     `json:"extendRev"`
}

// Note mirrors a row of the notes table. Flds and Tags keep their on-disk
// string form so a reader can judge malformed rows itself.
type Note struct {
	ID      int64   `json:"id"`
	GUID    string  `json:"guid"`
	ModelID FlexInt `json:"mid"`
	Mod     int64   `json:"mod"`
	Usn     int     `json:"usn"`
	Tags    string  `json:"tags"`
	Flds    string  `json:"flds"`
	Sfld    string  `json:"sfld"`
	Csum    int64   `json:"csum"`
	Flags   int     `json:"flags"`
	Data    string  `json:"data"`
}

func (n *Note) Fields() []string {
	return strings.Split(n.Flds, FieldSeparator)
}

func (n *Note) TagList() []string {
	return strings.Fields(n.Tags)
}

// JoinTags renders tags the way the notes table stores them: space separated
// with a leading and trailing space, or empty.
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ") + " "
}

const (
	CardTypeNew  = 0
	CardQueueNew = 0
)

type Card struct {
	ID     int64   `json:"id"`
	NoteID int64   `json:"nid"`
	DeckID FlexInt `json:"did"`
	Ord    int     `json:"ord"`
	Mod    int64   `json:"mod"`
	Usn    int     `json:"usn"`
	Type   int     `json:"type"`
	Queue  int     `json:"queue"`
	Due    int64   `json:"due"`
	Ivl    int     `json:"ivl"`
	Factor int     `json:"factor"`
	Reps   int     `json:"reps"`
	Lapses int     `json:"lapses"`
	Left   int     `json:"left"`
	Odue   int64   `json:"odue"`
	Odid   int64   `json:"odid"`
	Flags  int     `json:"flags"`
	Data   string  `json:"data"`
}

type RevlogEntry struct {
	ID      int64 `json:"id"`
	CardID  int64 `json:"cid"`
	Usn     int   `json:"usn"`
	Ease    int   `json:"ease"`
	Ivl     int   `json:"ivl"`
	LastIvl int   `json:"lastIvl"`
	Factor  int   `json:"factor"`
	Time    int   `json:"time"`
	Type    int   `json:"type"`
}

// Collection is the sealed snapshot handed to a serializer.
type Collection struct {
	Meta      CollectionMeta
	Models    []*NoteModel
	Decks     []*Deck
	Notes     []*Note
	Cards     []*Card
	ChangeLog []RevlogEntry
}

func (c *Collection) Model(id int64) (*NoteModel, bool) {
	for _, m := range c.Models {
		if int64(m.ID) == id {
			return m, true
		}
	}
	return nil, false
}

// CardsByNote groups cards by note id, each group ordered by template ordinal.
func (c *Collection) CardsByNote() map[int64][]*Card {
	grouped := make(map[int64][]*Card, len(c.Notes))
	for _, card := range c.Cards {
		grouped[card.NoteID] = append(grouped[card.NoteID], card)
	}
	for _, cards := range grouped {
		sort.Slice(cards, func(i, j int) bool { return cards[i].Ord < cards[j].Ord })
	}
	return grouped
}
