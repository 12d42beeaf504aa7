package link

import (
	"testing"

	"github.com/coreld/coreld/pkg/inputfile"
)

func newComdatObj(priority uint32, groups map[string][]int64, numSections int) *inputfile.ObjectFile {
	obj := &inputfile.ObjectFile{}
	obj.Priority = priority
	obj.ComdatGroups = groups
	obj.Sections = make([]*inputfile.InputSection, numSections)
	for i := range obj.Sections {
		obj.Sections[i] = &inputfile.InputSection{IsAlive: true}
	}
	return obj
}

func TestResolveComdatGroupsLowestPriorityWins(t *testing.T) {
	winner := newComdatObj(1, map[string][]int64{"vtable_for_Foo": {0, 1}}, 2)
	loser := newComdatObj(2, map[string][]int64{"vtable_for_Foo": {0}}, 1)

	ResolveComdatGroups([]*inputfile.ObjectFile{winner, loser})

	for _, s := range winner.Sections {
		if !s.IsAlive {
			t.Fatalf("winning file's comdat members must stay alive")
		}
	}
	if loser.Sections[0].IsAlive {
		t.Fatalf("losing file's comdat member must be killed")
	}
}

func TestResolveComdatGroupsIndependentKeysUnaffected(t *testing.T) {
	a := newComdatObj(1, map[string][]int64{"key_a": {0}}, 1)
	b := newComdatObj(2, map[string][]int64{"key_b": {0}}, 1)

	ResolveComdatGroups([]*inputfile.ObjectFile{a, b})

	if !a.Sections[0].IsAlive || !b.Sections[0].IsAlive {
		t.Fatalf("distinct comdat keys must not eliminate each other")
	}
}

func TestResolveComdatGroupsTieGoesToFirstSeen(t *testing.T) {
	first := newComdatObj(5, map[string][]int64{"k": {0}}, 1)
	second := newComdatObj(5, map[string][]int64{"k": {0}}, 1)

	ResolveComdatGroups([]*inputfile.ObjectFile{first, second})

	if !first.Sections[0].IsAlive {
		t.Fatalf("first object at a tied priority should win")
	}
	if second.Sections[0].IsAlive {
		t.Fatalf("second object at a tied priority should lose")
	}
}
