// Package pvparea is the PVP area index: named boxes per world that suspend
// claim protection and PVP immunity.
//
// Overlapping areas are allowed. When several areas contain a point, AreaAt
// returns the most recently created one.
package pvparea

import (
	"context"
	"regexp"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/protocol"
)

var (
	ErrDuplicateName = protocol.New(protocol.ErrConflict, "pvp_area_exists")
	ErrNotFound      = protocol.New(protocol.ErrNotFound, "pvp_area_not_found")
	ErrBadName       = protocol.New(protocol.ErrBadRequest, "pvp_area_bad_name")
	ErrWorldMismatch = protocol.New(protocol.ErrBadRequest, "pvp_area_bad_world")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// Index keeps areas in creation order. Linear scans are fine for the tens of
// areas a server defines.
type Index struct {
	areas  []model.PvpArea
	writer *store.Writer
}

func NewIndex(w *store.Writer) *Index {
	return &Index{writer: w}
}

// Load replaces the in-memory set without persisting. Order is preserved.
func (x *Index) Load(areas []model.PvpArea) {
	x.areas = append(x.areas[:0], areas...)
}

// Create normalizes the two corners into a box spanning the full build height.
func (x *Index) Create(name string, a, b model.Location) (model.PvpArea, error) {
	if !namePattern.MatchString(name) {
		return model.PvpArea{}, ErrBadName
	}
	if a.World != b.World {
		return model.PvpArea{}, ErrWorldMismatch
	}
	if x.indexOf(name) >= 0 {
		return model.PvpArea{}, ErrDuplicateName
	}
	area := model.PvpArea{
		Name:  name,
		World: a.World,
		MinX:  min(a.X, b.X),
		MinY:  model.MinBuildY,
		MinZ:  min(a.Z, b.Z),
		MaxX:  max(a.X, b.X),
		MaxY:  model.MaxBuildY,
		MaxZ:  max(a.Z, b.Z),
	}
	x.areas = append(x.areas, area)
	x.writer.Submit(store.Op{Name: "save pvp area " + name, Run: func(ctx context.Context, be store.Backend) error {
		return be.SavePvpArea(ctx, area)
	}})
	return area, nil
}

func (x *Index) Delete(name string) error {
	i := x.indexOf(name)
	if i < 0 {
		return ErrNotFound
	}
	x.areas = append(x.areas[:i], x.areas[i+1:]...)
	x.writer.Submit(store.Op{Name: "delete pvp area " + name, Run: func(ctx context.Context, be store.Backend) error {
		return be.DeletePvpArea(ctx, name)
	}})
	return nil
}

func (x *Index) IsInArea(l model.Location) bool {
	_, ok := x.AreaAt(l)
	return ok
}

// AreaAt returns the newest area containing l.
func (x *Index) AreaAt(l model.Location) (model.PvpArea, bool) {
	for i := len(x.areas) - 1; i >= 0; i-- {
		if x.areas[i].Contains(l) {
			return x.areas[i], true
		}
	}
	return model.PvpArea{}, false
}

// IntersectingChunk returns the newest area touching any column of k.
func (x *Index) IntersectingChunk(k model.ChunkKey) (model.PvpArea, bool) {
	for i := len(x.areas) - 1; i >= 0; i-- {
		if x.areas[i].IntersectsChunk(k) {
			return x.areas[i], true
		}
	}
	return model.PvpArea{}, false
}

func (x *Index) Get(name string) (model.PvpArea, bool) {
	i := x.indexOf(name)
	if i < 0 {
		return model.PvpArea{}, false
	}
	return x.areas[i], true
}

// List returns a copy in creation order.
func (x *Index) List() []model.PvpArea {
	return append([]model.PvpArea(nil), x.areas...)
}

func (x *Index) indexOf(name string) int {
	for i := range x.areas {
		if x.areas[i].Name == name {
			return i
		}
	}
	return -1
}
