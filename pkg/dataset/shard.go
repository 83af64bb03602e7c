package dataset

import "context"

// shardDataset is the Shard random-access primitive of spec §4.B: an even
// split of parent's epoch across shardCount workers, wrapping per epoch
// while preserving the shard's global indices. Kept under this name per
// SPEC_FULL.md §12's note that the original's "deprecated ShardLazyDataset"
// is exactly this algorithm, not a different one.
type shardDataset struct {
	parent        MapDataset
	shardIndex    int
	shardCount    int
	dropRemainder bool
	start, end    int
	parentLen     int
}

// NewShard computes an even [start,end) split of parent's length across
// shardCount shards and returns a MapDataset over shard shardIndex.
// dropRemainder, when true, truncates every shard to the size of the
// smallest shard instead of distributing the remainder across the first
// shards.
func NewShard(parent MapDataset, shardIndex, shardCount int, dropRemainder bool) MapDataset {
	n := parent.Length()

	var start, end int

	if n == Infinite {
		// An infinite parent shards by arithmetic progression alone;
		// there is no "remainder" to distribute.
		start, end = shardIndex, Infinite
	} else {
		base := n / shardCount
		rem := n % shardCount

		if dropRemainder {
			start = shardIndex * base
			end = start + base
		} else {
			start = shardIndex*base + min(shardIndex, rem)
			end = start + base

			if shardIndex < rem {
				end++
			}
		}
	}

	return &shardDataset{
		parent:        parent,
		shardIndex:    shardIndex,
		shardCount:    shardCount,
		dropRemainder: dropRemainder,
		start:         start,
		end:           end,
		parentLen:     n,
	}
}

func (s *shardDataset) Parents() []Node { return []Node{s.parent} }

func (s *shardDataset) Length() int {
	if s.end == Infinite {
		return Infinite
	}

	return s.end - s.start
}

func (s *shardDataset) At(ctx context.Context, i int) (Element, bool, error) {
	if i < 0 {
		return nil, false, ErrNegativeIndex
	}

	length := s.Length()
	if length == 0 {
		return nil, false, nil
	}

	if length == Infinite {
		return s.parent.At(ctx, s.start+i)
	}

	parentIdx := (i/length)*s.parentLen + (i % length) + s.start

	return s.parent.At(ctx, parentIdx)
}

func (s *shardDataset) Slice(start, stop, step int) MapDataset {
	return NewSliced(s, start, stop, step)
}

func (s *shardDataset) reshardParent(workerIndex, workerCount int) MapDataset {
	rewritten := reshardMap(s.parent, workerIndex, workerCount)

	return NewShard(rewritten, s.shardIndex, s.shardCount, s.dropRemainder)
}
