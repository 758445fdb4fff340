// Package sqlite persists engine snapshots in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
	"github.com/narasim-teja/Sorobon-Battles/internal/storage/sqlite/migrations"
)

const (
	metaTotalSupply = "total_supply"
	metaSeq         = "seq"
)

// Store saves and loads full engine snapshots. Each Save replaces the stored
// state in a single transaction.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func nullString(a *models.Address) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*a), Valid: true}
}

func nullMove(m *models.Move) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*m), Valid: true}
}

// Save replaces the stored state with snap.
func (s *Store) Save(ctx context.Context, snap game.Snapshot) (err error) {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"battles", "tokens", "players", "meta"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, p := range snap.Players {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO players (address, position, name, mana, health, in_battle) VALUES (?, ?, ?, ?, ?, ?)`,
			string(p.Address), i, p.Name, p.Mana, p.Health, p.InBattle,
		); err != nil {
			return fmt.Errorf("insert player %s: %w", p.Address, err)
		}
	}

	current := make(map[uint64]bool, len(snap.CurrentTokens))
	for _, id := range snap.CurrentTokens {
		current[id] = true
	}
	for _, t := range snap.Tokens {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO tokens (id, name, owner, kind, attack, defense, is_current) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Name, string(t.Owner), uint8(t.Kind), t.Attack, t.Defense, current[t.ID],
		); err != nil {
			return fmt.Errorf("insert token %d: %w", t.ID, err)
		}
	}

	for i, b := range snap.Battles {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO battles (name, position, hash, status, creator, joiner, move_creator, move_joiner, winner, round)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.Name, i, b.Hash, b.Status.String(), string(b.Creator), nullString(b.Joiner),
			nullMove(b.Moves[0]), nullMove(b.Moves[1]), nullString(b.Winner), b.Round,
		); err != nil {
			return fmt.Errorf("insert battle %q: %w", b.Name, err)
		}
	}

	for key, value := range map[string]uint64{metaTotalSupply: snap.TotalSupply, metaSeq: snap.Seq} {
		if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, key, int64(value)); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load reads the stored state. ok is false when nothing has been saved yet.
func (s *Store) Load(ctx context.Context) (snap game.Snapshot, ok bool, err error) {
	if s == nil || s.sqlDB == nil {
		return game.Snapshot{}, false, fmt.Errorf("storage is not configured")
	}
	meta, err := s.loadMeta(ctx)
	if err != nil {
		return game.Snapshot{}, false, err
	}
	supply, saved := meta[metaTotalSupply]
	if !saved {
		return game.Snapshot{}, false, nil
	}
	snap.TotalSupply = supply
	snap.Seq = meta[metaSeq]

	if snap.Players, err = s.loadPlayers(ctx); err != nil {
		return game.Snapshot{}, false, err
	}
	if snap.Tokens, snap.CurrentTokens, err = s.loadTokens(ctx); err != nil {
		return game.Snapshot{}, false, err
	}
	if snap.Battles, err = s.loadBattles(ctx); err != nil {
		return game.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *Store) loadMeta(ctx context.Context) (map[string]uint64, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()
	out := make(map[string]uint64)
	for rows.Next() {
		var (
			key   string
			value int64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		out[key] = uint64(value)
	}
	return out, rows.Err()
}

func (s *Store) loadPlayers(ctx context.Context) ([]models.Player, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT address, name, mana, health, in_battle FROM players ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()
	var out []models.Player
	for rows.Next() {
		var (
			p    models.Player
			addr string
		)
		if err := rows.Scan(&addr, &p.Name, &p.Mana, &p.Health, &p.InBattle); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Address = models.Address(addr)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) loadTokens(ctx context.Context) ([]models.GameToken, map[models.Address]uint64, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, owner, kind, attack, defense, is_current FROM tokens ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()
	var out []models.GameToken
	current := make(map[models.Address]uint64)
	for rows.Next() {
		var (
			t         models.GameToken
			owner     string
			kind      uint8
			isCurrent bool
		)
		if err := rows.Scan(&t.ID, &t.Name, &owner, &kind, &t.Attack, &t.Defense, &isCurrent); err != nil {
			return nil, nil, fmt.Errorf("scan token: %w", err)
		}
		t.Owner = models.Address(owner)
		t.Kind = models.TokenKind(kind)
		if isCurrent {
			current[t.Owner] = t.ID
		}
		out = append(out, t)
	}
	return out, current, rows.Err()
}

func (s *Store) loadBattles(ctx context.Context) ([]models.Battle, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, hash, status, creator, joiner, move_creator, move_joiner, winner, round
		 FROM battles ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query battles: %w", err)
	}
	defer rows.Close()
	var out []models.Battle
	for rows.Next() {
		var (
			b              models.Battle
			status         string
			creator        string
			joiner, winner sql.NullString
			moves          [2]sql.NullInt64
		)
		if err := rows.Scan(&b.Name, &b.Hash, &status, &creator, &joiner, &moves[0], &moves[1], &winner, &b.Round); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		if err := b.Status.UnmarshalText([]byte(status)); err != nil {
			return nil, fmt.Errorf("battle %q: %w", b.Name, err)
		}
		b.Creator = models.Address(creator)
		if joiner.Valid {
			b.Joiner = models.AddressPtr(models.Address(joiner.String))
		}
		if winner.Valid {
			b.Winner = models.AddressPtr(models.Address(winner.String))
		}
		for i, m := range moves {
			if m.Valid {
				b.Moves[i] = models.MovePtr(models.Move(m.Int64))
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
