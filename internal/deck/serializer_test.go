package deck

import (
	"context"
	"database/sql"
	"deckpack/internal/deck/interfaces"
	"deckpack/internal/models"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serializers(t *testing.T) map[string]interfaces.SerializerInterface {
	return map[string]interfaces.SerializerInterface{
		SerializerSQLite: NewSQLiteSerializer(t.TempDir()),
		SerializerJSON:   NewJSONSerializer(),
	}
}

func TestSerializers_RoundTrip(t *testing.T) {
	coll, _ := sealedCollection(t,
		&models.Flashcard{Front: "hola", Back: "hello", Tags: []string{"es"}},
		&models.Flashcard{Type: models.TypeInverted, Front: "perro", Back: "dog"},
		&models.Flashcard{Type: models.TypeCloze, Text: "{{c1::x}} y"},
	)

	for name, s := range serializers(t) {
		t.Run(name, func(t *testing.T) {
			payload := marshalCollection(t, s, coll)
			assert.True(t, s.Detect(payload))
			assert.Equal(t, legacyCollectionEntry, s.EntryName())

			got, err := s.Unmarshal(context.Background(), payload)
			require.NoError(t, err)

			assert.Equal(t, coll.Meta.Ver, got.Meta.Ver)
			assert.Equal(t, coll.Meta.Crt, got.Meta.Crt)
			assert.Equal(t, coll.Meta.Conf.CurDeck, got.Meta.Conf.CurDeck)
			assert.Equal(t, coll.Meta.Tags, got.Meta.Tags)
			assert.Contains(t, got.Meta.DeckConfigs, "1")

			require.Len(t, got.Models, 1)
			assert.Equal(t, coll.Models[0].ID, got.Models[0].ID)
			assert.Equal(t, coll.Models[0].Name, got.Models[0].Name)
			assert.Equal(t, coll.Models[0].Req, got.Models[0].Req)
			require.Len(t, got.Decks, 1)
			assert.Equal(t, coll.Decks[0].Name, got.Decks[0].Name)

			assert.Equal(t, coll.Notes, got.Notes)
			assert.Equal(t, coll.Cards, got.Cards)
			assert.Empty(t, got.ChangeLog)
		})
	}
}

func TestSerializers_DetectRejectsOtherFormat(t *testing.T) {
	coll, _ := sealedCollection(t)
	sqlitePayload := marshalCollection(t, NewSQLiteSerializer(t.TempDir()), coll)
	jsonPayload := marshalCollection(t, NewJSONSerializer(), coll)

	assert.False(t, NewJSONSerializer().Detect(sqlitePayload))
	assert.False(t, NewSQLiteSerializer("").Detect(jsonPayload))
	assert.True(t, NewJSONSerializer().Detect(append([]byte("\ufeff \n"), jsonPayload...)))
}

func TestSerializers_Canceled(t *testing.T) {
	coll, _ := sealedCollection(t, &models.Flashcard{Front: "q", Back: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, s := range serializers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Marshal(ctx, coll)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestJSONSerializer_BadDocuments(t *testing.T) {
	s := NewJSONSerializer()
	tests := []string{
		`{"notes":`,
		`{"notes":[]}`,
		`{"col":{"models":"{not json"},"notes":[],"cards":[]}`,
		`{"col":{"decks":"[1,2]"},"notes":[],"cards":[]}`,
	}
	for _, doc := range tests {
		_, err := s.Unmarshal(context.Background(), []byte(doc))
		assert.ErrorIs(t, err, ErrFormat, doc)
	}
}

func TestJSONSerializer_LenientIDs(t *testing.T) {
	doc := `{"col":{"id":1,"ver":11,"models":"{\"77\":{\"name\":\"Basic\",\"flds\":[{\"name\":\"Front\"},{\"name\":\"Back\"}]}}",` +
		`"decks":"{\"5\":{\"id\":\"5\",\"name\":\"Imported\"}}","conf":"not json","tags":"{}"},` +
		`"notes":[{"id":10,"guid":"g","mid":"77","tags":" a ","flds":"q\u001fa"},null],` +
		`"cards":[{"id":11,"nid":10,"did":"5","ord":0}]}`

	coll, err := NewJSONSerializer().Unmarshal(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Len(t, coll.Models, 1)
	assert.Equal(t, models.FlexInt(77), coll.Models[0].ID)
	require.Len(t, coll.Decks, 1)
	assert.Equal(t, models.FlexInt(5), coll.Decks[0].ID)
	require.Len(t, coll.Notes, 1)
	assert.Equal(t, models.FlexInt(77), coll.Notes[0].ModelID)
	assert.Equal(t, models.FlexInt(5), coll.Cards[0].DeckID)
}

func openPayload(t *testing.T, payload []byte) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collection.anki2")
	require.NoError(t, os.WriteFile(path, payload, 0o600))
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	return db, path
}

func TestSQLiteSerializer_Schema(t *testing.T) {
	coll, _ := sealedCollection(t, &models.Flashcard{Front: "q", Back: "a"})
	db, _ := openPayload(t, marshalCollection(t, NewSQLiteSerializer(t.TempDir()), coll))
	defer db.Close()

	names := func(kind string) []string {
		rows, err := db.Query(`select name from sqlite_master where type = ? and name not like 'sqlite_%' order by name`, kind)
		require.NoError(t, err)
		defer rows.Close()
		var out []string
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			out = append(out, name)
		}
		require.NoError(t, rows.Err())
		return out
	}

	assert.Equal(t, []string{"cards", "col", "graves", "notes", "revlog"}, names("table"))
	assert.Equal(t, []string{
		"ix_cards_nid", "ix_cards_sched", "ix_cards_usn", "ix_notes_csum",
		"ix_notes_usn", "ix_revlog_cid", "ix_revlog_usn",
	}, names("index"))

	var ver, count int
	require.NoError(t, db.QueryRow(`select ver from col`).Scan(&ver))
	assert.Equal(t, 11, ver)
	require.NoError(t, db.QueryRow(`select count(*) from notes`).Scan(&count))
	assert.Equal(t, 1, count)

	var csum int64
	var sfld string
	require.NoError(t, db.QueryRow(`select sfld, csum from notes`).Scan(&sfld, &csum))
	assert.Equal(t, "q", sfld)
	assert.Equal(t, int64(Checksum("q")), csum)
}

func TestSQLiteSerializer_NotetypeTables(t *testing.T) {
	coll, _ := sealedCollection(t, &models.Flashcard{Front: "q", Back: "a"})
	db, path := openPayload(t, marshalCollection(t, NewSQLiteSerializer(t.TempDir()), coll))

	mid := int64(coll.Models[0].ID)
	for _, stmt := range []string{
		`update col set models = '{}', decks = '{}'`,
		`create table notetypes (id integer primary key, name text not null)`,
		`create table fields (ntid integer not null, ord integer not null, name text not null)`,
		`create table templates (ntid integer not null, ord integer not null, name text not null)`,
		`create table decks (id integer primary key, name text not null)`,
		`insert into decks (id, name) values (9, 'Split Deck')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	_, err := db.Exec(`insert into notetypes (id, name) values (?, 'Basic-split')`, mid)
	require.NoError(t, err)
	_, err = db.Exec(`insert into fields (ntid, ord, name) values (?, 1, 'Back'), (?, 0, 'Front')`, mid, mid)
	require.NoError(t, err)
	_, err = db.Exec(`insert into templates (ntid, ord, name) values (?, 0, 'Card 1')`, mid)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := NewSQLiteSerializer(t.TempDir()).Unmarshal(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, got.Models, 1)
	assert.Equal(t, "Basic-split", got.Models[0].Name)
	assert.Equal(t, []string{"Front", "Back"}, got.Models[0].FieldNames())
	require.Len(t, got.Models[0].Tmpls, 1)
	require.Len(t, got.Decks, 1)
	assert.Equal(t, "Split Deck", got.Decks[0].Name)
	assert.Len(t, got.Notes, 1)
}

func TestSQLiteSerializer_RejectsBrokenDatabases(t *testing.T) {
	s := NewSQLiteSerializer(t.TempDir())

	_, err := s.Unmarshal(context.Background(), []byte("{}"))
	assert.ErrorIs(t, err, ErrFormat)

	coll, _ := sealedCollection(t)
	db, path := openPayload(t, marshalCollection(t, s, coll))
	_, err = db.Exec(`drop table cards`)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = s.Unmarshal(context.Background(), payload)
	assert.ErrorIs(t, err, ErrFormat)
}
