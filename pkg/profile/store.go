package profile

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Savani-Raj/minivm-plus/pkg/bytecode"
)

// Store persists profile snapshots in a SQLite database so a later
// process run can seed its feedback stage from an earlier run's
// observations. Snapshots are keyed by a caller-chosen run label.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS type_counts (
	run      TEXT NOT NULL,
	function TEXT NOT NULL,
	variable TEXT NOT NULL,
	kind     TEXT NOT NULL,
	count    INTEGER NOT NULL,
	ord      INTEGER NOT NULL,
	PRIMARY KEY (run, function, variable, kind)
);
CREATE TABLE IF NOT EXISTS block_counts (
	run      TEXT NOT NULL,
	function TEXT NOT NULL,
	block    TEXT NOT NULL,
	count    INTEGER NOT NULL,
	PRIMARY KEY (run, function, block)
);
CREATE TABLE IF NOT EXISTS branch_counts (
	run       TEXT NOT NULL,
	site      TEXT NOT NULL,
	taken     INTEGER NOT NULL,
	not_taken INTEGER NOT NULL,
	PRIMARY KEY (run, site)
);
CREATE TABLE IF NOT EXISTS call_counts (
	run      TEXT NOT NULL,
	function TEXT NOT NULL,
	count    INTEGER NOT NULL,
	PRIMARY KEY (run, function)
);
`

// OpenStore opens (creating if needed) a profile database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize profile store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a snapshot of the profile under the given run label,
// replacing any previous snapshot with the same label.
func (s *Store) Save(run string, p *Profile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"type_counts", "block_counts", "branch_counts", "call_counts"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run = ?", run); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	}

	for key, tp := range p.Types {
		for ord, kind := range tp.Order {
			_, err := tx.Exec(
				"INSERT INTO type_counts (run, function, variable, kind, count, ord) VALUES (?, ?, ?, ?, ?, ?)",
				run, key.Function, key.Variable, kind.String(), tp.Counts[kind], ord)
			if err != nil {
				return fmt.Errorf("save profile: %w", err)
			}
		}
	}
	for key, count := range p.Blocks {
		_, err := tx.Exec(
			"INSERT INTO block_counts (run, function, block, count) VALUES (?, ?, ?, ?)",
			run, key.Function, key.Block, count)
		if err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	}
	for site, bp := range p.Branches {
		_, err := tx.Exec(
			"INSERT INTO branch_counts (run, site, taken, not_taken) VALUES (?, ?, ?, ?)",
			run, site, bp.Taken, bp.NotTaken)
		if err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	}
	for fn, count := range p.Calls {
		_, err := tx.Exec(
			"INSERT INTO call_counts (run, function, count) VALUES (?, ?, ?)",
			run, fn, count)
		if err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	}

	return tx.Commit()
}

// Load reconstructs a profile snapshot saved under the given run label.
// The returned profile uses the provided thresholds; a label with no
// rows yields an empty profile.
func (s *Store) Load(run string, th Thresholds) (*Profile, error) {
	p := New(th)

	rows, err := s.db.Query(
		"SELECT function, variable, kind, count FROM type_counts WHERE run = ? ORDER BY function, variable, ord",
		run)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fn, variable, kindName string
		var count int
		if err := rows.Scan(&fn, &variable, &kindName, &count); err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		kind, err := kindFromName(kindName)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		key := VarKey{fn, variable}
		tp := p.Types[key]
		if tp == nil {
			tp = &TypeProfile{Counts: make(map[bytecode.Kind]int)}
			p.Types[key] = tp
		}
		tp.Order = append(tp.Order, kind)
		tp.Counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	blockRows, err := s.db.Query(
		"SELECT function, block, count FROM block_counts WHERE run = ?", run)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	defer blockRows.Close()
	for blockRows.Next() {
		var fn, block string
		var count int
		if err := blockRows.Scan(&fn, &block, &count); err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		p.Blocks[BlockKey{fn, block}] = count
	}
	if err := blockRows.Err(); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	branchRows, err := s.db.Query(
		"SELECT site, taken, not_taken FROM branch_counts WHERE run = ?", run)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	defer branchRows.Close()
	for branchRows.Next() {
		var site string
		var taken, notTaken int
		if err := branchRows.Scan(&site, &taken, &notTaken); err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		p.Branches[site] = &BranchProfile{Taken: taken, NotTaken: notTaken}
	}
	if err := branchRows.Err(); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	callRows, err := s.db.Query(
		"SELECT function, count FROM call_counts WHERE run = ?", run)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	defer callRows.Close()
	for callRows.Next() {
		var fn string
		var count int
		if err := callRows.Scan(&fn, &count); err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		p.Calls[fn] = count
	}
	if err := callRows.Err(); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	return p, nil
}

// Runs lists the saved snapshot labels.
func (s *Store) Runs() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT run FROM type_counts
		UNION SELECT run FROM block_counts
		UNION SELECT run FROM branch_counts
		UNION SELECT run FROM call_counts
		ORDER BY run`)
	if err != nil {
		return nil, fmt.Errorf("list profile runs: %w", err)
	}
	defer rows.Close()
	var runs []string
	for rows.Next() {
		var run string
		if err := rows.Scan(&run); err != nil {
			return nil, fmt.Errorf("list profile runs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func kindFromName(name string) (bytecode.Kind, error) {
	switch name {
	case "int":
		return bytecode.KindInt, nil
	case "float":
		return bytecode.KindFloat, nil
	case "bool":
		return bytecode.KindBool, nil
	case "nil":
		return bytecode.KindNil, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", name)
	}
}
