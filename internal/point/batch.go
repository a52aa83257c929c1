package point

// Batch is an immutable, ordered group of points bound for one destination.
type Batch struct {
	dest   Destination
	points []*Point
}

// NewBatch builds a batch. The points slice is copied; nil points are skipped.
func NewBatch(dest Destination, points ...*Point) *Batch {
	cp := make([]*Point, 0, len(points))
	for _, p := range points {
		if p != nil {
			cp = append(cp, p)
		}
	}
	return &Batch{dest: dest, points: cp}
}

// Destination returns where the batch is written.
func (b *Batch) Destination() Destination {
	return b.dest
}

// Points returns a copy of the point slice in submission order.
func (b *Batch) Points() []*Point {
	out := make([]*Point, len(b.points))
	copy(out, b.points)
	return out
}

// Len returns the number of points in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.points)
}
