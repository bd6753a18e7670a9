package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"peaceclaims.dev/internal/model"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/peaceclaims.sqlite)")
	player := fs.String("player", "", "player uuid filter (claims, invites)")
	limit := fs.Int("limit", 50, "result limit")
	_ = fs.Parse(args)

	q := "claims"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "peaceclaims.sqlite")
	}
	if *limit <= 0 {
		*limit = 50
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, strings.TrimSpace(*player), *limit, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

type claimRow struct {
	World     string    `json:"world"`
	ChunkX    int       `json:"chunk_x"`
	ChunkZ    int       `json:"chunk_z"`
	Owner     string    `json:"owner"`
	ClaimedAt time.Time `json:"claimed_at"`
}

type modeRow struct {
	Player       string    `json:"player"`
	Mode         string    `json:"mode"`
	LastChangeAt time.Time `json:"last_change_at"`
}

type inviteRow struct {
	Owner      string    `json:"owner"`
	Invitee    string    `json:"invitee"`
	InvitedBy  string    `json:"invited_by"`
	Build      bool      `json:"build"`
	Containers bool      `json:"containers"`
	Manage     bool      `json:"manage"`
	InvitedAt  time.Time `json:"invited_at"`
}

type repRow struct {
	Player        string  `json:"player"`
	Value         int     `json:"value"`
	PlaytimeHours float64 `json:"playtime_hours"`
}

type areaRow struct {
	Name  string `json:"name"`
	World string `json:"world"`
	Min   [3]int `json:"min"`
	Max   [3]int `json:"max"`
}

// runQuery executes one named read-only query and hands each row to emit.
func runQuery(db *sql.DB, q, player string, limit int, emit func(any)) error {
	switch q {
	case "claims":
		rows, err := db.Query(`SELECT world,chunk_x,chunk_z,owner,claimed_at FROM claims WHERE (?='' OR owner=?) ORDER BY world,chunk_x,chunk_z LIMIT ?`, player, player, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r claimRow
			var at int64
			if err := rows.Scan(&r.World, &r.ChunkX, &r.ChunkZ, &r.Owner, &at); err != nil {
				return err
			}
			r.ClaimedAt = time.UnixMilli(at).UTC()
			emit(r)
		}
		return rows.Err()

	case "modes":
		rows, err := db.Query(`SELECT player,mode,last_change_at FROM modes ORDER BY player LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r modeRow
			var mode int
			var at int64
			if err := rows.Scan(&r.Player, &mode, &at); err != nil {
				return err
			}
			r.Mode = model.Mode(mode).String()
			r.LastChangeAt = time.UnixMilli(at).UTC()
			emit(r)
		}
		return rows.Err()

	case "invites":
		rows, err := db.Query(`SELECT owner,invitee,invited_by,can_build,can_containers,can_manage,invited_at FROM invitations WHERE (?='' OR owner=? OR invitee=?) ORDER BY owner,invitee LIMIT ?`, player, player, player, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r  inviteRow
				at int64
			)
			if err := rows.Scan(&r.Owner, &r.Invitee, &r.InvitedBy, &r.Build, &r.Containers, &r.Manage, &at); err != nil {
				return err
			}
			if at != 0 {
				r.InvitedAt = time.UnixMilli(at).UTC()
			}
			emit(r)
		}
		return rows.Err()

	case "rep":
		rows, err := db.Query(`SELECT player,value,playtime_hours FROM reputation ORDER BY value DESC, player LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r repRow
			if err := rows.Scan(&r.Player, &r.Value, &r.PlaytimeHours); err != nil {
				return err
			}
			emit(r)
		}
		return rows.Err()

	case "areas":
		rows, err := db.Query(`SELECT name,world,min_x,min_y,min_z,max_x,max_y,max_z FROM pvp_areas ORDER BY seq LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r areaRow
			if err := rows.Scan(&r.Name, &r.World, &r.Min[0], &r.Min[1], &r.Min[2], &r.Max[0], &r.Max[1], &r.Max[2]); err != nil {
				return err
			}
			emit(r)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query %q (claims, modes, invites, rep, areas)", q)
}
