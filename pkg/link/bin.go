package link

import (
	"sort"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/parallel"
)

// binKey is the normalized (name, type, flags) triple an InputSection
// bins under, after GetOutputSectionInstance's name-folding/type-
// canonicalization rules. Computed once per shard so the parallel phase
// of BinSections never needs to touch ctx.OutputSections.
type binKey struct {
	name  string
	typ   uint64
	flags uint64
}

func binKeyOf(isec *inputfile.InputSection) binKey {
	shdr := isec.Shdr()
	name, typ, flags := normalizeOutputKey(isec.Name(), uint64(shdr.Type), shdr.Flags)
	return binKey{name, typ, flags}
}

// BinSections assigns every live, non-merged input section to its output
// section (finding or creating one by (name, type, flags)) and groups
// each output section's members for later size computation.
//
// Sharding ctx.Objs into contiguous ranges lets each shard build its own
// private (key -> members) map with no locking at all; only the merge
// back into ctx.OutputSections is single-threaded, and merging shards in
// shard order (which preserves each shard's original object order)
// keeps member ordering inside each output section exactly what a
// sequential scan over ctx.Objs would have produced.
func BinSections(ctx *Context) {
	const shardCount = 128

	shards := shardObjects(ctx.Objs, shardCount)
	perShard := make([]map[binKey][]*inputfile.InputSection, len(shards))

	parallel.ForEachIndexed(shards, func(i int, shard []*inputfile.ObjectFile) {
		local := make(map[binKey][]*inputfile.InputSection)
		for _, obj := range shard {
			for _, isec := range obj.Sections {
				if isec == nil || !isec.IsAlive {
					continue
				}
				key := binKeyOf(isec)
				local[key] = append(local[key], isec)
			}
		}
		perShard[i] = local
	})

	for _, local := range perShard {
		for key, members := range local {
			osec := GetOutputSectionInstance(ctx, key.name, key.typ, key.flags)
			for _, isec := range members {
				isec.OutputChunk = osec
				osec.Members = append(osec.Members, isec)
			}
		}
	}
}

// shardObjects splits objs into up to n contiguous, order-preserving
// slices, matching the slab split layout.go's ComputeSectionSizes uses
// for the same reason: fixed, small shard counts make the parallel phase
// embarrassingly parallel without the shard boundaries themselves needing
// to be deterministic-content-aware.
func shardObjects(objs []*inputfile.ObjectFile, n int) [][]*inputfile.ObjectFile {
	if len(objs) == 0 {
		return nil
	}
	if n > len(objs) {
		n = len(objs)
	}
	shards := make([][]*inputfile.ObjectFile, 0, n)
	base := len(objs) / n
	rem := len(objs) % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		shards = append(shards, objs[start:start+size])
		start += size
	}
	return shards
}

// CollectOutputSections gathers every non-empty OutputSection and
// MergedSection into one sorted chunk list, ready to merge into
// ctx.Chunks alongside the header and synthetic chunks.
func CollectOutputSections(ctx *Context) []Chunker {
	var chunks []Chunker
	for _, osec := range ctx.OutputSections {
		if len(osec.Members) != 0 {
			chunks = append(chunks, osec)
		}
	}
	for _, m := range ctx.MergedSections {
		if m.Shdr.Size > 0 {
			chunks = append(chunks, m)
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].GetName() < chunks[j].GetName()
	})
	return chunks
}

// ComputeMergedSectionSizes marks every fragment of every surviving
// object's mergeable sections alive, whether or not any symbol or
// relocation refers to it and whatever GCSections says, then packs each
// MergedSection's alive fragments
// into concrete offsets. Assigning offsets within one MergedSection never
// touches another, so every section's AssignOffsets runs in its own
// goroutine.
func ComputeMergedSectionSizes(ctx *Context) {
	for _, obj := range ctx.Objs {
		for _, m := range obj.MergeableSections {
			if m == nil {
				continue
			}
			for _, frag := range m.Fragments {
				frag.(*SectionFragment).IsAlive = true
			}
		}
	}

	parallel.ForEach(ctx.MergedSections, func(m *MergedSection) {
		m.AssignOffsets()
	})
}
