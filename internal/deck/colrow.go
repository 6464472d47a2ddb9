package deck

import (
	"deckpack/internal/models"
	json "github.com/goccy/go-json"
	"sort"
	"strconv"
)

// colRow is the single row of the col table. The last five columns hold JSON
// documents stored as text.
type colRow struct {
	ID     int64  `json:"id"`
	Crt    int64  `json:"crt"`
	Mod    int64  `json:"mod"`
	Scm    int64  `json:"scm"`
	Ver    int    `json:"ver"`
	Dty    int    `json:"dty"`
	Usn    int    `json:"usn"`
	Ls     int64  `json:"ls"`
	Conf   string `json:"conf"`
	Models string `json:"models"`
	Decks  string `json:"decks"`
	Dconf  string `json:"dconf"`
	Tags   string `json:"tags"`
}

func encodeColRow(coll *models.Collection) (*colRow, error) {
	meta := coll.Meta
	row := &colRow{
		ID:  meta.ID,
		Crt: meta.Crt,
		Mod: meta.Mod,
		Scm: meta.Scm,
		Ver: meta.Ver,
		Dty: meta.Dty,
		Usn: meta.Usn,
		Ls:  meta.Ls,
	}

	conf, err := json.Marshal(meta.Conf)
	if err != nil {
		return nil, err
	}
	row.Conf = string(conf)

	modelMap := make(map[string]*models.NoteModel, len(coll.Models))
	for _, m := range coll.Models {
		modelMap[strconv.FormatInt(int64(m.ID), 10)] = m
	}
	if row.Models, err = marshalText(modelMap); err != nil {
		return nil, err
	}

	deckMap := make(map[string]*models.Deck, len(coll.Decks))
	for _, d := range coll.Decks {
		deckMap[strconv.FormatInt(int64(d.ID), 10)] = d
	}
	if row.Decks, err = marshalText(deckMap); err != nil {
		return nil, err
	}

	dconf := meta.DeckConfigs
	if dconf == nil {
		dconf = map[string]json.RawMessage{}
	}
	if row.Dconf, err = marshalText(dconf); err != nil {
		return nil, err
	}

	tags := meta.Tags
	if tags == nil {
		tags = map[string]int{}
	}
	if row.Tags, err = marshalText(tags); err != nil {
		return nil, err
	}
	return row, nil
}

func marshalText(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeColRow fills meta, models and decks of coll. Broken models or decks
// documents are fatal; conf, dconf and tags fall back to empty values since
// nothing downstream depends on them.
func decodeColRow(row *colRow, coll *models.Collection) error {
	coll.Meta = models.CollectionMeta{
		ID:  row.ID,
		Crt: row.Crt,
		Mod: row.Mod,
		Scm: row.Scm,
		Ver: row.Ver,
		Dty: row.Dty,
		Usn: row.Usn,
		Ls:  row.Ls,
	}
	if row.Conf != "" {
		_ = json.Unmarshal([]byte(row.Conf), &coll.Meta.Conf)
	}
	if row.Dconf != "" {
		if err := json.Unmarshal([]byte(row.Dconf), &coll.Meta.DeckConfigs); err != nil {
			coll.Meta.DeckConfigs = nil
		}
	}
	if row.Tags != "" {
		if err := json.Unmarshal([]byte(row.Tags), &coll.Meta.Tags); err != nil {
			coll.Meta.Tags = nil
		}
	}

	if row.Models != "" {
		var modelMap map[string]*models.NoteModel
		if err := json.Unmarshal([]byte(row.Models), &modelMap); err != nil {
			return wrapFormat("col.models", err)
		}
		for key, m := range modelMap {
			if m == nil {
				continue
			}
			if m.ID == 0 {
				id, _ := strconv.ParseInt(key, 10, 64)
				m.ID = models.FlexInt(id)
			}
			coll.Models = append(coll.Models, m)
		}
		sort.Slice(coll.Models, func(i, j int) bool { return coll.Models[i].ID < coll.Models[j].ID })
	}

	if row.Decks != "" {
		var deckMap map[string]*models.Deck
		if err := json.Unmarshal([]byte(row.Decks), &deckMap); err != nil {
			return wrapFormat("col.decks", err)
		}
		for key, d := range deckMap {
			if d == nil {
				continue
			}
			if d.ID == 0 {
				id, _ := strconv.ParseInt(key, 10, 64)
				d.ID = models.FlexInt(id)
			}
			coll.Decks = append(coll.Decks, d)
		}
		sort.Slice(coll.Decks, func(i, j int) bool { return coll.Decks[i].ID < coll.Decks[j].ID })
	}
	return nil
}
