package batch

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// snapshot is one sealed hand-off from the collector: a batch per
// destination, in the order destinations were first seen.
type snapshot []*point.Batch

// points returns the total point count across the snapshot.
func (s snapshot) points() int {
	n := 0
	for _, b := range s {
		n += b.Len()
	}
	return n
}

// group accumulates points for one destination.
type group struct {
	dest   point.Destination
	points []*point.Point
}

// bufferState is what the scheduler needs to know about the open buffer.
type bufferState struct {
	count   int
	firstAt time.Time
	gen     uint64
}

// collector is the thread-safe in-flight buffer.
//
// Producers append under mu. When the buffered count reaches threshold the
// groups are sealed into an immutable snapshot before mu is released, so the
// open buffer never holds more than threshold points and each point lands in
// exactly one snapshot.
type collector struct {
	mu        sync.Mutex
	threshold int
	now       func() time.Time

	groups  []*group
	index   map[point.Destination]int
	count   int
	firstAt time.Time
	gen     uint64 // bumped whenever an empty buffer receives its first point

	sealed []snapshot
}

func newCollector(threshold int, now func() time.Time) *collector {
	return &collector{
		threshold: threshold,
		now:       now,
		index:     make(map[point.Destination]int),
	}
}

// add appends points for dest, splitting across snapshots if the threshold
// is crossed part-way through.
//
// Returns:
//   - sealed: at least one snapshot was sealed by this call
//   - started: this call opened a new buffer generation
func (c *collector) add(dest point.Destination, pts []*point.Point) (sealed, started bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(pts) > 0 {
		if c.count == 0 {
			c.gen++
			c.firstAt = c.now()
			started = true
		}

		n := min(c.threshold-c.count, len(pts))
		g := c.groupLocked(dest)
		g.points = append(g.points, pts[:n]...)
		c.count += n
		pts = pts[n:]

		if c.count >= c.threshold {
			c.sealLocked()
			sealed = true
		}
	}
	return sealed, started
}

// groupLocked returns the open group for dest, creating it if needed.
func (c *collector) groupLocked(dest point.Destination) *group {
	if i, ok := c.index[dest]; ok {
		return c.groups[i]
	}
	g := &group{dest: dest}
	c.index[dest] = len(c.groups)
	c.groups = append(c.groups, g)
	return g
}

// sealLocked swaps the open buffer out as an immutable snapshot.
func (c *collector) sealLocked() {
	if c.count == 0 {
		return
	}
	snap := make(snapshot, 0, len(c.groups))
	for _, g := range c.groups {
		snap = append(snap, point.NewBatch(g.dest, g.points...))
	}
	c.sealed = append(c.sealed, snap)

	c.groups = nil
	c.index = make(map[point.Destination]int)
	c.count = 0
	c.firstAt = time.Time{}
}

// takeSealed removes and returns the snapshots sealed by threshold crossings.
func (c *collector) takeSealed() []snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.sealed
	c.sealed = nil
	return out
}

// takeAll seals the open buffer and returns every pending snapshot, oldest first.
func (c *collector) takeAll() []snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sealLocked()
	out := c.sealed
	c.sealed = nil
	return out
}

// state reports the open buffer for flush scheduling.
func (c *collector) state() bufferState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bufferState{count: c.count, firstAt: c.firstAt, gen: c.gen}
}

// buffered returns the number of points not yet handed to the dispatcher.
func (c *collector) buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.count
	for _, s := range c.sealed {
		n += s.points()
	}
	return n
}
