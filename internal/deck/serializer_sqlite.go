package deck

import (
	"bytes"
	"context"
	"database/sql"
	"deckpack/internal/deck/interfaces"
	"deckpack/internal/models"
	"fmt"
	_ "modernc.org/sqlite"
	"os"
	"path/filepath"
	"sort"
)

var sqliteMagic = []byte("SQLite format 3\x00")

// collectionSchema is the version 11 layout external consumers expect.
var collectionSchema = []string{
	`create table if not exists col (
    id              integer primary key,
    crt             integer not null,
    mod             integer not null,
    scm             integer not null,
    ver             integer not null,
    dty             integer not null,
    usn             integer not null,
    ls              integer not null,
    conf            text not null,
    models          text not null,
    decks           text not null,
    dconf           text not null,
    tags            text not null
)`,
	`create table if not exists notes (
    id              integer primary key,
    guid            text not null,
    mid             integer not null,
    mod             integer not null,
    usn             integer not null,
    tags            text not null,
    flds            text not null,
    sfld            integer not null,
    csum            integer not null,
    flags           integer not null,
    data            text not null
)`,
	`create table if not exists cards (
    id              integer primary key,
    nid             integer not null,
    did             integer not null,
    ord             integer not null,
    mod             integer not null,
    usn             integer not null,
    type            integer not null,
    queue           integer not null,
    due             integer not null,
    ivl             integer not null,
    factor          integer not null,
    reps            integer not null,
    lapses          integer not null,
    left            integer not null,
    odue            integer not null,
    odid            integer not null,
    flags           integer not null,
    data            text not null
)`,
	`create table if not exists revlog (
    id              integer primary key,
    cid             integer not null,
    usn             integer not null,
    ease            integer not null,
    ivl             integer not null,
    lastIvl         integer not null,
    factor          integer not null,
    time            integer not null,
    type            integer not null
)`,
	`create table if not exists graves (
    usn             integer not null,
    oid             integer not null,
    type            integer not null
)`,
	`create index if not exists ix_notes_usn on notes (usn)`,
	`create index if not exists ix_cards_usn on cards (usn)`,
	`create index if not exists ix_revlog_usn on revlog (usn)`,
	`create index if not exists ix_cards_nid on cards (nid)`,
	`create index if not exists ix_cards_sched on cards (did, queue, due)`,
	`create index if not exists ix_revlog_cid on revlog (cid)`,
	`create index if not exists ix_notes_csum on notes (csum)`,
}

// SQLiteSerializer writes a real SQLite collection file. The database lives in
// a private temporary directory for the duration of one call.
type SQLiteSerializer struct {
	tempDir string
}

func NewSQLiteSerializer(tempDir string) interfaces.SerializerInterface {
	return &SQLiteSerializer{tempDir: tempDir}
}

func (s *SQLiteSerializer) Name() string      { return SerializerSQLite }
func (s *SQLiteSerializer) EntryName() string { return legacyCollectionEntry }

func (s *SQLiteSerializer) Detect(payload []byte) bool {
	return bytes.HasPrefix(payload, sqliteMagic)
}

func (s *SQLiteSerializer) Marshal(ctx context.Context, coll *models.Collection) (data []byte, err error) {
	row, err := encodeColRow(coll)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(s.tempDir, "deckpack-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, legacyCollectionEntry)
	db, err := openCollectionDB(path)
	if err != nil {
		return nil, err
	}
	closed := false
	defer func() {
		if !closed {
			_ = db.Close()
		}
	}()

	for _, stmt := range collectionSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	err = withTx(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return insertCollection(ctx, tx, row, coll)
	})
	if err != nil {
		return nil, err
	}

	closed = true
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("close collection: %w", err)
	}
	return os.ReadFile(path)
}

func openCollectionDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, tx)
}

func insertCollection(ctx context.Context, tx *sql.Tx, row *colRow, coll *models.Collection) error {
	_, err := tx.ExecContext(ctx,
		`insert into col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		 values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Crt, row.Mod, row.Scm, row.Ver, row.Dty, row.Usn, row.Ls,
		row.Conf, row.Models, row.Decks, row.Dconf, row.Tags)
	if err != nil {
		return fmt.Errorf("insert col: %w", err)
	}

	noteStmt, err := tx.PrepareContext(ctx,
		`insert into notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
		 values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer noteStmt.Close()
	for _, n := range coll.Notes {
		if _, err := noteStmt.ExecContext(ctx, n.ID, n.GUID, int64(n.ModelID), n.Mod, n.Usn,
			n.Tags, n.Flds, n.Sfld, n.Csum, n.Flags, n.Data); err != nil {
			return fmt.Errorf("insert note %d: %w", n.ID, err)
		}
	}

	cardStmt, err := tx.PrepareContext(ctx,
		`insert into cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data)
		 values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer cardStmt.Close()
	for _, c := range coll.Cards {
		if _, err := cardStmt.ExecContext(ctx, c.ID, c.NoteID, int64(c.DeckID), c.Ord, c.Mod, c.Usn,
			c.Type, c.Queue, c.Due, c.Ivl, c.Factor, c.Reps, c.Lapses, c.Left, c.Odue, c.Odid,
			c.Flags, c.Data); err != nil {
			return fmt.Errorf("insert card %d: %w", c.ID, err)
		}
	}

	for _, r := range coll.ChangeLog {
		if _, err := tx.ExecContext(ctx,
			`insert into revlog (id, cid, usn, ease, ivl, lastIvl, factor, time, type) values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.CardID, r.Usn, r.Ease, r.Ivl, r.LastIvl, r.Factor, r.Time, r.Type); err != nil {
			return fmt.Errorf("insert revlog %d: %w", r.ID, err)
		}
	}
	return nil
}

func (s *SQLiteSerializer) Unmarshal(ctx context.Context, payload []byte) (*models.Collection, error) {
	if !s.Detect(payload) {
		return nil, formatErr("collection is not a SQLite database")
	}

	dir, err := os.MkdirTemp(s.tempDir, "deckpack-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, legacyCollectionEntry)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return nil, fmt.Errorf("stage collection: %w", err)
	}

	db, err := openCollectionDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tables, err := listTables(ctx, db)
	if err != nil {
		return nil, wrapFormat("read schema", err)
	}
	for _, required := range []string{"col", "notes", "cards"} {
		if _, ok := tables[required]; !ok {
			return nil, formatErr("collection has no %s table", required)
		}
	}

	coll := &models.Collection{}
	if err := readCol(ctx, db, coll); err != nil {
		return nil, err
	}
	if len(coll.Models) == 0 {
		if err := readNotetypes(ctx, db, tables, coll); err != nil {
			return nil, err
		}
	}
	if len(coll.Decks) == 0 {
		if err := readDeckTable(ctx, db, tables, coll); err != nil {
			return nil, err
		}
	}
	if err := readNotes(ctx, db, coll); err != nil {
		return nil, err
	}
	if err := readCards(ctx, db, coll); err != nil {
		return nil, err
	}
	if _, ok := tables["revlog"]; ok {
		if err := readRevlog(ctx, db, coll); err != nil {
			return nil, err
		}
	}
	return coll, nil
}

func listTables(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, `select name from sqlite_master where type = 'table'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = struct{}{}
	}
	return tables, rows.Err()
}

func readCol(ctx context.Context, db *sql.DB, coll *models.Collection) error {
	var (
		row                               colRow
		conf, mdls, decks, dconf, tagsStr sql.NullString
	)
	err := db.QueryRowContext(ctx,
		`select id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags from col limit 1`).
		Scan(&row.ID, &row.Crt, &row.Mod, &row.Scm, &row.Ver, &row.Dty, &row.Usn, &row.Ls,
			&conf, &mdls, &decks, &dconf, &tagsStr)
	if err == sql.ErrNoRows {
		return formatErr("col table is empty")
	}
	if err != nil {
		return wrapFormat("read col", err)
	}
	row.Conf, row.Models, row.Decks, row.Dconf, row.Tags = conf.String, mdls.String, decks.String, dconf.String, tagsStr.String
	return decodeColRow(&row, coll)
}

// readNotetypes recovers note models from the split tables newer clients use
// instead of col.models.
func readNotetypes(ctx context.Context, db *sql.DB, tables map[string]struct{}, coll *models.Collection) error {
	if _, ok := tables["notetypes"]; !ok {
		return nil
	}
	byID := make(map[int64]*models.NoteModel)

	rows, err := db.QueryContext(ctx, `select id, name from notetypes`)
	if err != nil {
		return wrapFormat("read notetypes", err)
	}
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return wrapFormat("read notetypes", err)
		}
		byID[id] = &models.NoteModel{ID: models.FlexInt(id), Name: name}
	}
	rows.Close()

	if _, ok := tables["fields"]; ok {
		if err := scanOrdNames(ctx, db, `select ntid, ord, name from fields order by ntid, ord`, func(ntid int64, ord int, name string) {
			if m, ok := byID[ntid]; ok {
				m.Flds = append(m.Flds, models.ModelField{Name: name, Ord: ord})
			}
		}); err != nil {
			return wrapFormat("read fields", err)
		}
	}
	if _, ok := tables["templates"]; ok {
		if err := scanOrdNames(ctx, db, `select ntid, ord, name from templates order by ntid, ord`, func(ntid int64, ord int, name string) {
			if m, ok := byID[ntid]; ok {
				m.Tmpls = append(m.Tmpls, models.CardTemplate{Name: name, Ord: ord})
			}
		}); err != nil {
			return wrapFormat("read templates", err)
		}
	}

	for _, m := range byID {
		coll.Models = append(coll.Models, m)
	}
	sort.Slice(coll.Models, func(i, j int) bool { return coll.Models[i].ID < coll.Models[j].ID })
	return nil
}

func scanOrdNames(ctx context.Context, db *sql.DB, query string, fn func(ntid int64, ord int, name string)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ntid int64
			ord  int
			name string
		)
		if err := rows.Scan(&ntid, &ord, &name); err != nil {
			return err
		}
		fn(ntid, ord, name)
	}
	return rows.Err()
}

func readDeckTable(ctx context.Context, db *sql.DB, tables map[string]struct{}, coll *models.Collection) error {
	if _, ok := tables["decks"]; !ok {
		return nil
	}
	rows, err := db.QueryContext(ctx, `select id, name from decks order by id`)
	if err != nil {
		return wrapFormat("read decks", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return wrapFormat("read decks", err)
		}
		coll.Decks = append(coll.Decks, &models.Deck{ID: models.FlexInt(id), Name: name})
	}
	return rows.Err()
}

func readNotes(ctx context.Context, db *sql.DB, coll *models.Collection) error {
	rows, err := db.QueryContext(ctx,
		`select id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data from notes order by id`)
	if err != nil {
		return wrapFormat("read notes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			n                            models.Note
			mid                          int64
			guid, tags, flds, sfld, data sql.NullString
			csum                         sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &guid, &mid, &n.Mod, &n.Usn, &tags, &flds, &sfld, &csum, &n.Flags, &data); err != nil {
			return wrapFormat("read notes", err)
		}
		n.ModelID = models.FlexInt(mid)
		n.GUID, n.Tags, n.Flds, n.Sfld, n.Data = guid.String, tags.String, flds.String, sfld.String, data.String
		n.Csum = csum.Int64
		coll.Notes = append(coll.Notes, &n)
	}
	if err := rows.Err(); err != nil {
		return wrapFormat("read notes", err)
	}
	return nil
}

func readCards(ctx context.Context, db *sql.DB, coll *models.Collection) error {
	rows, err := db.QueryContext(ctx,
		`select id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data
		 from cards order by id`)
	if err != nil {
		return wrapFormat("read cards", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c    models.Card
			did  int64
			data sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.NoteID, &did, &c.Ord, &c.Mod, &c.Usn, &c.Type, &c.Queue, &c.Due,
			&c.Ivl, &c.Factor, &c.Reps, &c.Lapses, &c.Left, &c.Odue, &c.Odid, &c.Flags, &data); err != nil {
			return wrapFormat("read cards", err)
		}
		c.DeckID = models.FlexInt(did)
		c.Data = data.String
		coll.Cards = append(coll.Cards, &c)
	}
	if err := rows.Err(); err != nil {
		return wrapFormat("read cards", err)
	}
	return nil
}

func readRevlog(ctx context.Context, db *sql.DB, coll *models.Collection) error {
	rows, err := db.QueryContext(ctx,
		`select id, cid, usn, ease, ivl, lastIvl, factor, time, type from revlog order by id`)
	if err != nil {
		return wrapFormat("read revlog", err)
	}
	defer rows.Close()

	coll.ChangeLog = []models.RevlogEntry{}
	for rows.Next() {
		var r models.RevlogEntry
		if err := rows.Scan(&r.ID, &r.CardID, &r.Usn, &r.Ease, &r.Ivl, &r.LastIvl, &r.Factor, &r.Time, &r.Type); err != nil {
			return wrapFormat("read revlog", err)
		}
		coll.ChangeLog = append(coll.ChangeLog, r)
	}
	if err := rows.Err(); err != nil {
		return wrapFormat("read revlog", err)
	}
	return nil
}
