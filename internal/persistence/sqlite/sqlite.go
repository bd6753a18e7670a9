package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/store"
)

// Store is the embedded relational Backend. Writes arrive from a single
// store.Writer goroutine; reads happen at startup and on reputation cache
// misses.
type Store struct {
	db *sql.DB
}

var _ store.Backend = (*Store)(nil)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the handle for read-only tooling (cmd/admin).
func (s *Store) DB() *sql.DB { return s.db }

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS claims (
			world TEXT NOT NULL,
			chunk_x INTEGER NOT NULL,
			chunk_z INTEGER NOT NULL,
			owner TEXT NOT NULL,
			claimed_at INTEGER NOT NULL,
			PRIMARY KEY (world, chunk_x, chunk_z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_claims_owner ON claims(owner);`,
		`CREATE TABLE IF NOT EXISTS modes (
			player TEXT PRIMARY KEY,
			mode INTEGER NOT NULL,
			last_change_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS invitations (
			owner TEXT NOT NULL,
			invitee TEXT NOT NULL,
			invited_by TEXT NOT NULL,
			can_build INTEGER NOT NULL,
			can_containers INTEGER NOT NULL,
			can_manage INTEGER NOT NULL,
			invited_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (owner, invitee)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_invitee ON invitations(invitee);`,
		`CREATE TABLE IF NOT EXISTS reputation (
			player TEXT PRIMARY KEY,
			value INTEGER NOT NULL,
			playtime_hours REAL NOT NULL,
			last_update_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pvp_areas (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			world TEXT NOT NULL,
			min_x INTEGER NOT NULL,
			min_y INTEGER NOT NULL,
			min_z INTEGER NOT NULL,
			max_x INTEGER NOT NULL,
			max_y INTEGER NOT NULL,
			max_z INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS purchased_claims (
			player TEXT PRIMARY KEY,
			count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS noob_status (
			player TEXT PRIMARY KEY,
			first_join_at INTEGER NOT NULL,
			granted_until INTEGER NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return migrate(db)
}

// migrate adds columns introduced after schema version 1 to older files.
func migrate(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('invitations') WHERE name='invited_at'`).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.Exec(`ALTER TABLE invitations ADD COLUMN invited_at INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) LoadClaims(ctx context.Context) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT world,chunk_x,chunk_z,owner,claimed_at FROM claims ORDER BY claimed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Claim
	for rows.Next() {
		var (
			c     model.Claim
			owner string
			at    int64
		)
		if err := rows.Scan(&c.Key.World, &c.Key.X, &c.Key.Z, &owner, &at); err != nil {
			return nil, err
		}
		if c.Owner, err = uuid.Parse(owner); err != nil {
			return nil, fmt.Errorf("claim %s: %w", c.Key, err)
		}
		c.ClaimedAt = fromMillis(at)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) InsertClaim(ctx context.Context, c model.Claim) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO claims(world,chunk_x,chunk_z,owner,claimed_at) VALUES(?,?,?,?,?) ON CONFLICT DO NOTHING`,
		c.Key.World, c.Key.X, c.Key.Z, c.Owner.String(), toMillis(c.ClaimedAt))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrDuplicateKey
	}
	return nil
}

func (s *Store) DeleteClaim(ctx context.Context, key model.ChunkKey) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE world=? AND chunk_x=? AND chunk_z=?`, key.World, key.X, key.Z)
	return err
}

func (s *Store) DeleteClaimsOf(ctx context.Context, owner model.PlayerID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE owner=?`, owner.String())
	return err
}

func (s *Store) LoadModes(ctx context.Context) ([]model.ModeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player,mode,last_change_at FROM modes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ModeRecord
	for rows.Next() {
		var (
			r    model.ModeRecord
			id   string
			mode int
			at   int64
		)
		if err := rows.Scan(&id, &mode, &at); err != nil {
			return nil, err
		}
		if r.PlayerID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		r.Mode = model.Mode(mode)
		r.LastModeChangeAt = fromMillis(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveMode(ctx context.Context, r model.ModeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO modes(player,mode,last_change_at) VALUES(?,?,?)`,
		r.PlayerID.String(), int(r.Mode), toMillis(r.LastModeChangeAt))
	return err
}

func (s *Store) LoadInvitations(ctx context.Context) ([]model.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT owner,invitee,invited_by,can_build,can_containers,can_manage,invited_at FROM invitations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Invitation
	for rows.Next() {
		var (
			inv                 model.Invitation
			owner, invitee, by  string
			build, cont, manage bool
			at                  int64
		)
		if err := rows.Scan(&owner, &invitee, &by, &build, &cont, &manage, &at); err != nil {
			return nil, err
		}
		if inv.Owner, err = uuid.Parse(owner); err != nil {
			return nil, err
		}
		if inv.Invitee, err = uuid.Parse(invitee); err != nil {
			return nil, err
		}
		if inv.InvitedBy, err = uuid.Parse(by); err != nil {
			return nil, err
		}
		inv.CanBuild, inv.CanAccessContainers, inv.CanManageInvitations = build, cont, manage
		inv.InvitedAt = fromMillis(at)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) SaveInvitation(ctx context.Context, inv model.Invitation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO invitations(owner,invitee,invited_by,can_build,can_containers,can_manage,invited_at) VALUES(?,?,?,?,?,?,?)`,
		inv.Owner.String(), inv.Invitee.String(), inv.InvitedBy.String(),
		inv.CanBuild, inv.CanAccessContainers, inv.CanManageInvitations, toMillis(inv.InvitedAt))
	return err
}

func (s *Store) DeleteInvitation(ctx context.Context, owner, invitee model.PlayerID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE owner=? AND invitee=?`, owner.String(), invitee.String())
	return err
}

func (s *Store) DeleteInvitationsTo(ctx context.Context, invitee model.PlayerID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE invitee=?`, invitee.String())
	return err
}

func (s *Store) DeleteInvitationsBy(ctx context.Context, owner model.PlayerID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE owner=?`, owner.String())
	return err
}

func (s *Store) LoadReputation(ctx context.Context, id model.PlayerID) (model.Reputation, bool, error) {
	r := model.Reputation{PlayerID: id}
	var at int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value,playtime_hours,last_update_at FROM reputation WHERE player=?`, id.String()).
		Scan(&r.Value, &r.TotalPlaytimeHours, &at)
	if err == sql.ErrNoRows {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	r.LastPlaytimeUpdateAt = fromMillis(at)
	return r, true, nil
}

func (s *Store) SaveReputation(ctx context.Context, r model.Reputation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reputation(player,value,playtime_hours,last_update_at) VALUES(?,?,?,?)`,
		r.PlayerID.String(), r.Value, r.TotalPlaytimeHours, toMillis(r.LastPlaytimeUpdateAt))
	return err
}

func (s *Store) LoadPvpAreas(ctx context.Context) ([]model.PvpArea, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name,world,min_x,min_y,min_z,max_x,max_y,max_z FROM pvp_areas ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PvpArea
	for rows.Next() {
		var a model.PvpArea
		if err := rows.Scan(&a.Name, &a.World, &a.MinX, &a.MinY, &a.MinZ, &a.MaxX, &a.MaxY, &a.MaxZ); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SavePvpArea(ctx context.Context, a model.PvpArea) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pvp_areas(name,world,min_x,min_y,min_z,max_x,max_y,max_z) VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET world=excluded.world,
			min_x=excluded.min_x, min_y=excluded.min_y, min_z=excluded.min_z,
			max_x=excluded.max_x, max_y=excluded.max_y, max_z=excluded.max_z`,
		a.Name, a.World, a.MinX, a.MinY, a.MinZ, a.MaxX, a.MaxY, a.MaxZ)
	return err
}

func (s *Store) DeletePvpArea(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pvp_areas WHERE name=?`, name)
	return err
}

func (s *Store) LoadPurchased(ctx context.Context) (map[model.PlayerID]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player,count FROM purchased_claims`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.PlayerID]int{}
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		pid, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		out[pid] = n
	}
	return out, rows.Err()
}

func (s *Store) SavePurchased(ctx context.Context, id model.PlayerID, n int) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO purchased_claims(player,count) VALUES(?,?)`, id.String(), n)
	return err
}

func (s *Store) LoadNoob(ctx context.Context) ([]model.NoobStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player,first_join_at,granted_until FROM noob_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.NoobStatus
	for rows.Next() {
		var (
			st           model.NoobStatus
			id           string
			first, until int64
		)
		if err := rows.Scan(&id, &first, &until); err != nil {
			return nil, err
		}
		if st.PlayerID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		st.FirstJoinAt = fromMillis(first)
		st.GrantedUntil = fromMillis(until)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) SaveNoob(ctx context.Context, st model.NoobStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO noob_status(player,first_join_at,granted_until) VALUES(?,?,?)`,
		st.PlayerID.String(), toMillis(st.FirstJoinAt), toMillis(st.GrantedUntil))
	return err
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
