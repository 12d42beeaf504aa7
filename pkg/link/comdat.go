package link

import (
	"sync"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/parallel"
)

// ResolveComdatGroups elects, for every COMDAT key seen across every
// live object, the group belonging to the lowest-priority (earliest
// loaded) file, then nulls out the member sections of every other file's
// losing group for that key. A priority tie goes to the object that comes
// first in objs. Two sweeps, matching the teacher's own
// two-phase symbol resolution shape: first elect winners, then apply.
// Both run one object per goroutine; the winners map is the only state
// shared across them, so it's guarded by a single mutex.
func ResolveComdatGroups(objs []*inputfile.ObjectFile) {
	winners := make(map[string]*inputfile.ObjectFile)
	winnerIdx := make(map[string]int)
	var mu sync.Mutex

	parallel.ForEachIndexed(objs, func(i int, obj *inputfile.ObjectFile) {
		for key := range obj.ComdatGroups {
			mu.Lock()
			cur, ok := winners[key]
			if !ok || obj.Priority < cur.Priority ||
				(obj.Priority == cur.Priority && i < winnerIdx[key]) {
				winners[key] = obj
				winnerIdx[key] = i
			}
			mu.Unlock()
		}
	})

	parallel.ForEach(objs, func(obj *inputfile.ObjectFile) {
		for key, members := range obj.ComdatGroups {
			mu.Lock()
			win := winners[key]
			mu.Unlock()
			if win == obj {
				continue
			}
			for _, idx := range members {
				if idx >= 0 && idx < int64(len(obj.Sections)) && obj.Sections[idx] != nil {
					obj.Sections[idx].IsAlive = false
				}
			}
		}
	})
}
