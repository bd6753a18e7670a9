package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/transport/admin"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "claim":
			claimCmd(os.Args[2:])
			return
		case "token":
			tokenCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <db|audit|state|claim|token> [flags]")
	os.Exit(2)
}

func tokenCmd(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("secret", os.Getenv("PEACECLAIMS_ADMIN_SECRET"), "admin secret (or set PEACECLAIMS_ADMIN_SECRET)")
	subject := fs.String("sub", "operator", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	if strings.TrimSpace(*secret) == "" {
		fmt.Fprintln(os.Stderr, "missing -secret")
		os.Exit(2)
	}
	tok, err := admin.MintToken([]byte(*secret), *subject, *ttl, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	action := fs.String("action", "", "action filter, e.g. CLAIM (optional)")
	player := fs.String("player", "", "actor or target uuid filter (optional)")
	since := fs.Duration("since", 0, "only entries newer than this (optional)")
	_ = fs.Parse(args)

	f := auditFilter{Action: strings.ToUpper(strings.TrimSpace(*action)), Player: strings.TrimSpace(*player)}
	if *since > 0 {
		f.Since = time.Now().Add(-*since)
	}
	entries, err := readAudit(filepath.Join(*dataDir, "audit"), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "audit:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		printJSON(e)
	}
}

type auditFilter struct {
	Action string
	Player string
	Since  time.Time
}

func (f auditFilter) match(e model.AuditEntry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Player != "" && e.Actor != f.Player && e.Target != f.Player {
		return false
	}
	if !f.Since.IsZero() && e.At.Before(f.Since) {
		return false
	}
	return true
}

// readAudit decodes every hourly audit file in dir in chronological order.
func readAudit(dir string, f auditFilter) ([]model.AuditEntry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []model.AuditEntry
	for _, name := range names {
		path := filepath.Join(dir, name)
		got, err := readAuditFile(path, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, got...)
	}
	return out, nil
}

func readAuditFile(path string, f auditFilter) ([]model.AuditEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []model.AuditEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e model.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out, sc.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
