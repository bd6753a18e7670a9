package players

import (
	"testing"

	"github.com/google/uuid"
)

func TestDirectoryLookupIsCaseInsensitive(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()
	d.Put(id, "Alice", nil)

	got, ok := d.Lookup("alice")
	if !ok || got != id {
		t.Fatalf("Lookup(alice) = %v, %v", got, ok)
	}
	if d.Name(id) != "Alice" {
		t.Fatalf("Name = %q", d.Name(id))
	}
}

func TestDirectoryRenameDropsOldName(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()
	d.Put(id, "old", nil)
	d.Put(id, "new", nil)
	if _, ok := d.Lookup("old"); ok {
		t.Fatalf("old name still resolves")
	}
	if got, ok := d.Lookup("new"); !ok || got != id {
		t.Fatalf("new name: %v %v", got, ok)
	}
}

func TestDirectoryWildcards(t *testing.T) {
	d := NewDirectory()
	admin, mod, user, root := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	d.Put(admin, "admin", []string{"peaceclaims.*"})
	d.Put(mod, "mod", []string{"peaceclaims.admin.*", "Peaceclaims.Limit.5"})
	d.Put(user, "user", nil)
	d.Put(root, "root", []string{"*"})

	cases := []struct {
		id   uuid.UUID
		node string
		want bool
	}{
		{admin, "peaceclaims.bypass", true},
		{admin, "other.plugin", false},
		{mod, "peaceclaims.admin.unclaim", true},
		{mod, "peaceclaims.bypass", false},
		{mod, "peaceclaims.limit.5", true},
		{user, "peaceclaims.bypass", false},
		{root, "anything.at.all", true},
		{uuid.New(), "peaceclaims.bypass", false},
	}
	for _, c := range cases {
		if got := d.Has(c.id, c.node); got != c.want {
			t.Fatalf("Has(%s, %q) = %v, want %v", d.Name(c.id), c.node, got, c.want)
		}
	}
}

func TestDirectorySetNodes(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()
	if d.SetNodes(id, []string{"x"}) {
		t.Fatalf("SetNodes on unknown player should fail")
	}
	d.Put(id, "p", []string{"b", "a"})
	if got := d.Nodes(id); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Nodes = %v", got)
	}
	d.SetNodes(id, nil)
	if len(d.Nodes(id)) != 0 || d.Len() != 1 {
		t.Fatalf("nodes not cleared")
	}
}
