package book

import "github.com/luxfi/dex/internal/xheap"

// levelEntry is the (arrival time, order id) pair a price level's heap
// orders by. A min-heap on Timestamp gives FIFO order across ties in
// time.
type levelEntry struct {
	Timestamp int64
	ID        OrderID
}

func entryLess(a, b levelEntry) bool { return a.Timestamp < b.Timestamp }
func entryEq(a, b levelEntry) bool   { return a.Timestamp == b.Timestamp && a.ID == b.ID }

// PriceLevel is the FIFO queue of resting order ids at a single price on
// a single side, ordered by arrival time.
type PriceLevel struct {
	entries *xheap.Heap[levelEntry]
}

func newPriceLevel() *PriceLevel {
	return &PriceLevel{entries: xheap.New[levelEntry](xheap.Min, entryLess)}
}

func (l *PriceLevel) push(e levelEntry) { l.entries.Push(e) }

func (l *PriceLevel) front() levelEntry { return l.entries.Peek() }

func (l *PriceLevel) popFront() { l.entries.Pop() }

func (l *PriceLevel) remove(e levelEntry) bool {
	pos := l.entries.Find(e, entryEq)
	if pos < 0 {
		return false
	}
	l.entries.Pop(pos)
	return true
}

func (l *PriceLevel) empty() bool { return l.entries.Empty() }

func (l *PriceLevel) size() int { return l.entries.Size() }
