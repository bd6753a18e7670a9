// Package region is the optional region-protection capability. It is only
// consulted for diagnostics; the resolver never enforces it.
package region

import "peaceclaims.dev/internal/model"

type Oracle interface {
	// IsProtected reports whether any external region intersects the chunk.
	IsProtected(key model.ChunkKey) bool
	Name() string
}

// None is selected when no region plugin is present.
type None struct{}

func (None) IsProtected(model.ChunkKey) bool { return false }
func (None) Name() string                    { return "none" }

// Static marks a fixed set of chunks as protected. Hosts without a live
// region plugin can describe spawn areas this way.
type Static struct {
	Label  string
	Chunks map[model.ChunkKey]bool
}

func (s Static) IsProtected(key model.ChunkKey) bool { return s.Chunks[key] }

func (s Static) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

// Detect returns o, or None when o is nil.
func Detect(o Oracle) Oracle {
	if o == nil {
		return None{}
	}
	return o
}
