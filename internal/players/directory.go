// Package players keeps the names and permission nodes the game host reports
// for each player. It backs command name lookups and the resolver's
// permission queries.
package players

import (
	"sort"
	"strings"
	"sync"

	"peaceclaims.dev/internal/model"
)

type entry struct {
	name  string
	nodes map[string]struct{}
}

// Directory is safe for concurrent use. Entries outlive the session so
// offline players can still be named in commands.
type Directory struct {
	mu     sync.RWMutex
	byID   map[model.PlayerID]*entry
	byName map[string]model.PlayerID
}

func NewDirectory() *Directory {
	return &Directory{
		byID:   map[model.PlayerID]*entry{},
		byName: map[string]model.PlayerID{},
	}
}

// Put records id under name and replaces its nodes. A name taken by another
// id moves to this one.
func (d *Directory) Put(id model.PlayerID, name string, nodes []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.byID[id]
	if !ok {
		e = &entry{}
		d.byID[id] = e
	}
	if e.name != "" && !strings.EqualFold(e.name, name) {
		delete(d.byName, strings.ToLower(e.name))
	}
	e.name = name
	e.nodes = nodeSet(nodes)
	if name != "" {
		d.byName[strings.ToLower(name)] = id
	}
}

// SetNodes replaces the nodes of a known player.
func (d *Directory) SetNodes(id model.PlayerID, nodes []string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.byID[id]
	if !ok {
		return false
	}
	e.nodes = nodeSet(nodes)
	return true
}

func (d *Directory) Lookup(name string) (model.PlayerID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[strings.ToLower(name)]
	return id, ok
}

func (d *Directory) Name(id model.PlayerID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.byID[id]; ok {
		return e.name
	}
	return ""
}

// Has reports whether id holds node, either directly or through a wildcard
// such as "peaceclaims.*" or "*".
func (d *Directory) Has(id model.PlayerID, node string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[id]
	if !ok {
		return false
	}
	if _, ok := e.nodes[node]; ok {
		return true
	}
	if _, ok := e.nodes["*"]; ok {
		return true
	}
	for i := len(node) - 1; i > 0; i-- {
		if node[i] != '.' {
			continue
		}
		if _, ok := e.nodes[node[:i]+".*"]; ok {
			return true
		}
	}
	return false
}

// Nodes returns id's nodes sorted.
func (d *Directory) Nodes(id model.PlayerID) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.nodes))
	for n := range e.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

func nodeSet(nodes []string) map[string]struct{} {
	m := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			m[n] = struct{}{}
		}
	}
	return m
}
