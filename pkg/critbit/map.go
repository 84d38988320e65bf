// Package critbit implements a path-compressed 16-way trie keyed by 64-bit
// integers. It backs the compiler's constant and symbol tables.
//
// Nodes live in a single arena and refer to each other by index, so the
// whole structure can be grown (and moved) with one copy. Removed nodes and
// boxed value cells are recycled through intrusive free lists.
//
// A Map is not safe for concurrent use.
package critbit

import (
	"errors"
	"iter"
	"math/bits"
)

// ErrCapacity is returned when an insertion would grow the arena past its
// size ceiling. The map is left unchanged.
var ErrCapacity = errors.New("critbit: arena capacity exceeded")

// Slot word layout.
//
//	bits 0-3   one nibble of the owning node's prefix
//	bit  4     slot holds a child node
//	bit  5     slot holds an inline scalar
//	bits 6-31  child node index, value cell index or inline scalar
const (
	slotPrefixMask = 0x0000000f
	slotNode       = 0x00000010
	slotScalar     = 0x00000020
	slotValueMask  = 0xffffffe0
	slotShift      = 6

	maxScalar = 1<<(32-slotShift) - 1
)

const (
	nodeBytes = 64
	cellBytes = 8

	// DefaultLimit is the arena ceiling in bytes.
	DefaultLimit = 0x20000000

	rootPosition = 16
)

// node is sixteen slots. The node's prefix (the key bits above its
// branching position, with the position itself in the low nibble) is
// spread across the low nibbles of its slots, nibble k in slot k.
type node [16]uint32

func (n *node) prefix() uint64 {
	var p uint64
	for k := 0; k < 16; k++ {
		p |= uint64(n[k]&slotPrefixMask) << (4 * k)
	}
	return p
}

func (n *node) setPrefix(p uint64) {
	for k := 0; k < 16; k++ {
		n[k] = n[k]&^slotPrefixMask | uint32(p>>(4*k))&slotPrefixMask
	}
}

func (n *node) position() uint32 {
	return n[0] & slotPrefixMask
}

// popcount returns the number of occupied slots and the last occupied slot
// word.
func (n *node) popcount() (int, uint32) {
	count, last := 0, uint32(0)
	for _, s := range n {
		if s&^slotPrefixMask != 0 {
			last = s
			count++
		}
	}
	return count, last
}

func xpos(x uint64) uint32 {
	return uint32(63-bits.LeadingZeros64(x|1)) >> 2
}

func xdir(x uint64, pos uint32) uint32 {
	return uint32(x>>(pos<<2)) & 0xf
}

func xpfx(x uint64, pos uint32) uint64 {
	return x & (^uint64(0xf) << (pos << 2))
}

func ceilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Slot is a handle to one value slot of a Map. It stays valid across arena
// growth but not across removal of its key.
type Slot struct {
	node uint32
	dir  uint32
}

// Map is a trie from uint64 keys to uint64 values. The zero value is an
// empty map ready to use.
type Map struct {
	nodes []node   // nodes[0] holds the root slot
	cells []uint64 // cells[0] is never handed out
	nfree uint32
	vfree uint32
	count int
	limit int
}

// New returns a map with room for about capacity keys before its arena has
// to grow.
func New(capacity int) *Map {
	m := &Map{}
	if capacity > 0 {
		m.init(ceilPow2(2*capacity+1), ceilPow2(capacity+1))
	}
	return m
}

func (m *Map) init(nodeCap, cellCap int) {
	m.nodes = make([]node, 1, max(nodeCap, 1))
	m.cells = make([]uint64, 1, max(cellCap, 1))
}

func (m *Map) arenaLimit() int {
	if m.limit > 0 {
		return m.limit
	}
	return DefaultLimit
}

// Len returns the number of keys in the map.
func (m *Map) Len() int {
	return m.count
}

// Cap returns the number of nodes the arena can hold without growing.
func (m *Map) Cap() int {
	return cap(m.nodes)
}

// Reset removes every key. The arena is kept for reuse.
func (m *Map) Reset() {
	if m.nodes == nil {
		return
	}
	m.nodes = m.nodes[:1]
	m.nodes[0] = node{}
	m.cells = m.cells[:1]
	m.nfree, m.vfree = 0, 0
	m.count = 0
}

// ensure reserves room for one insertion: two nodes and one value cell.
func (m *Map) ensure() error {
	return m.reserve(2, 1)
}

// reserve grows the arena so that allocating the given number of nodes
// and cells cannot fail. Only the head of each free list is counted.
func (m *Map) reserve(nodes, cells int) error {
	if m.nodes == nil {
		m.init(0, 0)
	}
	needNodes := len(m.nodes) + nodes
	if m.nfree != 0 && nodes > 0 {
		needNodes--
	}
	needCells := len(m.cells) + cells
	if m.vfree != 0 && cells > 0 {
		needCells--
	}
	if needNodes <= cap(m.nodes) && needCells <= cap(m.cells) {
		return nil
	}
	nodeCap := max(cap(m.nodes), ceilPow2(needNodes))
	cellCap := max(cap(m.cells), ceilPow2(needCells))
	if nodeCap*nodeBytes+cellCap*cellBytes > m.arenaLimit() {
		return ErrCapacity
	}
	if nodeCap > cap(m.nodes) {
		grown := make([]node, len(m.nodes), nodeCap)
		copy(grown, m.nodes)
		m.nodes = grown
	}
	if cellCap > cap(m.cells) {
		grown := make([]uint64, len(m.cells), cellCap)
		copy(grown, m.cells)
		m.cells = grown
	}
	return nil
}

func (m *Map) allocNode() uint32 {
	idx := m.nfree
	if idx != 0 {
		m.nfree = m.nodes[idx][0]
	} else {
		idx = uint32(len(m.nodes))
		m.nodes = append(m.nodes, node{})
	}
	m.nodes[idx] = node{}
	return idx
}

func (m *Map) freeNode(idx uint32) {
	m.nodes[idx] = node{}
	m.nodes[idx][0] = m.nfree
	m.nfree = idx
}

func (m *Map) allocCell() uint32 {
	idx := m.vfree
	if idx != 0 {
		m.vfree = uint32(m.cells[idx])
		return idx
	}
	idx = uint32(len(m.cells))
	m.cells = append(m.cells, 0)
	return idx
}

func (m *Map) freeCell(idx uint32) {
	m.cells[idx] = uint64(m.vfree)
	m.vfree = idx
}

func (m *Map) slot(s Slot) *uint32 {
	return &m.nodes[s.node][s.dir]
}

// Lookup finds the value slot for key x.
func (m *Map) Lookup(x uint64) (Slot, bool) {
	if m.nodes == nil {
		return Slot{}, false
	}
	var cur, dir uint32
	for {
		sval := m.nodes[cur][dir]
		if sval&slotNode == 0 {
			if sval&slotValueMask != 0 && m.nodes[cur].prefix() == x&^0xf {
				return Slot{node: cur, dir: dir}, true
			}
			return Slot{}, false
		}
		cur = sval >> slotShift
		dir = xdir(x, m.nodes[cur].position())
	}
}

// Assign returns the value slot for key x, creating the path to it if
// needed. A freshly created slot holds no value until SetValue is called.
func (m *Map) Assign(x uint64) (Slot, error) {
	if err := m.ensure(); err != nil {
		return Slot{}, err
	}

	var slotStack [rootPosition + 1]Slot
	var posnStack [rootPosition + 1]uint32
	stackp := 0
	cur, dir, posn := uint32(0), uint32(0), uint32(rootPosition)
	for {
		s := Slot{node: cur, dir: dir}
		sval := *m.slot(s)
		slotStack[stackp], posnStack[stackp] = s, posn
		stackp++
		if sval&slotNode != 0 {
			cur = sval >> slotShift
			posn = m.nodes[cur].position()
			dir = xdir(x, posn)
			continue
		}

		prfx := m.nodes[cur].prefix()
		if posn == 0 && prfx == x&^0xf {
			return s, nil
		}

		// Find the highest node on the path whose position is above the
		// first nibble where x and the existing prefix diverge.
		diff := xpos(prfx ^ x)
		stacki := stackp
		for diff > posn {
			stacki--
			posn = posnStack[stacki]
		}

		var leaf uint32
		if stacki != stackp {
			at := m.slot(slotStack[stacki])
			old := *at
			branch := m.allocNode()
			*at = *at&slotPrefixMask | slotNode | branch<<slotShift
			leaf = m.allocNode()
			bn := &m.nodes[branch]
			bn[xdir(prfx, diff)] = old
			bn[xdir(x, diff)] = slotNode | leaf<<slotShift
			bn.setPrefix(xpfx(prfx, diff) | uint64(diff))
		} else {
			leaf = m.allocNode()
			at := m.slot(s)
			*at = *at&slotPrefixMask | slotNode | leaf<<slotShift
		}
		m.nodes[leaf].setPrefix(x &^ 0xf)
		return Slot{node: leaf, dir: uint32(x & 0xf)}, nil
	}
}

// Value returns the value stored in s.
func (m *Map) Value(s Slot) uint64 {
	sval := *m.slot(s)
	if sval&slotNode != 0 {
		panic("critbit: value read from a node slot")
	}
	if sval&slotScalar != 0 {
		return uint64(sval >> slotShift)
	}
	return m.cells[sval>>slotShift]
}

// SetValue stores v in s. Small values are kept inline in the slot word;
// larger ones are boxed into a value cell.
func (m *Map) SetValue(s Slot, v uint64) {
	at := m.slot(s)
	sval := *at
	if sval&slotNode != 0 {
		panic("critbit: value written to a node slot")
	}
	if sval&slotValueMask == 0 {
		m.count++
	}
	boxed := sval&slotScalar == 0 && sval>>slotShift != 0
	if v <= maxScalar {
		if boxed {
			m.freeCell(sval >> slotShift)
		}
		*at = sval&slotPrefixMask | slotScalar | uint32(v)<<slotShift
		return
	}
	var cell uint32
	if boxed {
		cell = sval >> slotShift
	} else {
		cell = m.allocCell()
	}
	m.cells[cell] = v
	*at = sval&slotPrefixMask | cell<<slotShift
}

func (m *Map) clearValue(s Slot) {
	at := m.slot(s)
	sval := *at
	if sval&slotValueMask == 0 {
		return
	}
	if sval&slotScalar == 0 {
		m.freeCell(sval >> slotShift)
	}
	*at = sval & slotPrefixMask
	m.count--
}

// Set maps key x to v. On ErrCapacity the map is unchanged.
func (m *Map) Set(x, v uint64) error {
	if s, ok := m.Lookup(x); ok {
		// Boxing an inline value needs a fresh cell.
		if v > maxScalar && *m.slot(s)&slotScalar != 0 {
			if err := m.reserve(0, 1); err != nil {
				return err
			}
		}
		m.SetValue(s, v)
		return nil
	}
	s, err := m.Assign(x)
	if err != nil {
		return err
	}
	m.SetValue(s, v)
	return nil
}

// Get returns the value for key x.
func (m *Map) Get(x uint64) (uint64, bool) {
	s, ok := m.Lookup(x)
	if !ok {
		return 0, false
	}
	return m.Value(s), true
}

// Has reports whether key x is present.
func (m *Map) Has(x uint64) bool {
	_, ok := m.Lookup(x)
	return ok
}

// Delete removes key x and reports whether it was present. Nodes left
// with a single child are folded into their parent.
func (m *Map) Delete(x uint64) bool {
	if _, ok := m.Lookup(x); !ok {
		return false
	}

	var slotStack [rootPosition + 1]Slot
	stackp := 0
	cur, dir := uint32(0), uint32(0)
	for {
		s := Slot{node: cur, dir: dir}
		sval := *m.slot(s)
		if sval&slotNode != 0 {
			slotStack[stackp] = s
			stackp++
			cur = sval >> slotShift
			dir = xdir(x, m.nodes[cur].position())
			continue
		}
		m.clearValue(s)
		break
	}

	for stackp > 0 {
		stackp--
		at := m.slot(slotStack[stackp])
		sval := *at
		idx := sval >> slotShift
		n := &m.nodes[idx]
		count, last := n.popcount()
		// Leaf nodes go when empty, branch nodes when down to one child.
		keep := count
		if n.position() != 0 {
			keep--
		}
		if keep != 0 {
			break
		}
		m.freeNode(idx)
		*at = sval&slotPrefixMask | last&^slotPrefixMask
	}
	return true
}

// ForEach calls fn for every key in pre-order until fn returns false.
func (m *Map) ForEach(fn func(key, val uint64) bool) {
	if m.nodes == nil {
		return
	}
	// Each stack entry packs a node index with the next direction to visit.
	var stack [rootPosition + 1]uint32
	stackp := 0
	visit := func(idx, dir uint32) bool {
		sval := m.nodes[idx][dir]
		if sval&slotNode != 0 {
			stack[stackp] = (sval >> slotShift) << 5
			stackp++
			return true
		}
		if sval&slotValueMask != 0 {
			key := m.nodes[idx].prefix() | uint64(dir)
			return fn(key, m.Value(Slot{node: idx, dir: dir}))
		}
		return true
	}
	if !visit(0, 0) {
		return
	}
	for stackp > 0 {
		top := stack[stackp-1]
		stack[stackp-1]++
		dir := top & 31
		if dir > 15 {
			stackp--
			continue
		}
		if !visit(top>>5, dir) {
			return
		}
	}
}

// All returns an iterator over every key/value pair in pre-order.
func (m *Map) All() iter.Seq2[uint64, uint64] {
	return func(yield func(uint64, uint64) bool) {
		m.ForEach(yield)
	}
}
