package model

type PvpArea struct {
	Name             string
	World            string
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// Contains is an inclusive 3D box test.
func (a PvpArea) Contains(l Location) bool {
	if l.World != a.World {
		return false
	}
	return l.X >= a.MinX && l.X <= a.MaxX &&
		l.Y >= a.MinY && l.Y <= a.MaxY &&
		l.Z >= a.MinZ && l.Z <= a.MaxZ
}

// IntersectsChunk reports whether any block column of the chunk lies in the box.
func (a PvpArea) IntersectsChunk(k ChunkKey) bool {
	if k.World != a.World {
		return false
	}
	return k.MinBlockX() <= a.MaxX && k.MaxBlockX() >= a.MinX &&
		k.MinBlockZ() <= a.MaxZ && k.MaxBlockZ() >= a.MinZ
}
