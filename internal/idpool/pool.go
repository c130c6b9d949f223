// Package idpool hands out small connection identifiers, always reusing the
// lowest one that is free.
package idpool

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/1ureka/bluewing/internal/util"
)

// MaxBorrowed is the number of identifiers that fit in a 16-bit wire value.
const MaxBorrowed = 0xFFFF

// ErrExhausted is the panic value raised when more than MaxBorrowed
// identifiers are held at once.
var ErrExhausted = errors.New("idpool: exceeded limit of 65535 borrowed identifiers")

// Pool recycles uint16 identifiers. The zero value is ready to use and the
// first identifier it returns is 0.
type Pool struct {
	mu       sync.Mutex
	released idHeap              // released IDs, smallest first
	member   map[uint16]struct{} // mirrors released, rejects duplicates
	next     uint16              // next never-used ID
	borrowed int
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{}
}

// Borrow returns the lowest identifier that is not currently held.
// It panics with ErrExhausted when the pool is over capacity.
func (p *Pool) Borrow() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.borrowed++
	if p.borrowed > MaxBorrowed {
		p.borrowed--
		panic(ErrExhausted)
	}

	util.LogDebug("borrowed identifier, %d in use", p.borrowed)

	if p.released.Len() > 0 {
		id := heap.Pop(&p.released).(uint16)
		delete(p.member, id)
		return id
	}

	id := p.next
	p.next++
	return id
}

// Release gives an identifier back. Once nothing is borrowed the pool starts
// over from 0.
func (p *Pool) Release(id uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Unknown or already-returned IDs are ignored so the count stays honest.
	if _, dup := p.member[id]; dup || p.borrowed == 0 || id >= p.next {
		return
	}

	p.borrowed--
	if p.borrowed == 0 {
		p.released = p.released[:0]
		p.member = nil
		p.next = 0
		return
	}

	if p.member == nil {
		p.member = make(map[uint16]struct{})
	}
	p.member[id] = struct{}{}
	heap.Push(&p.released, id)
}

// Borrowed reports how many identifiers are currently held.
func (p *Pool) Borrowed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.borrowed
}

// ---------------------------------------------------------------------------
// idHeap implements a min-heap of identifiers.
// ---------------------------------------------------------------------------

type idHeap []uint16

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(uint16)) }

func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
