package kernel

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// wordSize is the alignment unit blocks are rounded up to, matching a
// machine-word stride on a 32-bit target.
const wordSize = 4

// alignUp rounds n up to the next multiple of align, generic over any
// integer type.
func alignUp[T constraints.Integer](n, align T) T {
	return (n + align - 1) &^ (align - 1)
}

// PoolStats is a point-in-time snapshot of a memory pool's bookkeeping.
type PoolStats struct {
	BlockCount   int
	BlockSize    int
	FreeCount    int
	MinFreeCount int
	OpsPerTick   uint16
	OpsRemaining uint16
}

// Pool is a fixed-block allocator over a caller-supplied buffer. Free blocks
// are threaded through an embedded free list, with the "next" pointer stored
// as a block index rather than a raw address — Go slices have no stable
// address to round-trip through an integer the way a pointer would.
type Pool struct {
	k *Kernel

	buf         []byte
	blockSize   int
	blockStride int
	blockCount  int

	freeHead  int32 // index of first free block; -1 means none
	freeCount int
	minFree   int

	opsPerTick   uint16
	opsRemaining uint16
}

const noFreeBlock int32 = -1

// NewPool carves buf into blocks of blockSize bytes (rounded up to
// wordSize), threads them onto a free list, and registers the pool for
// per-tick ops-budget refill. opsPerTick of 0 uses the kernel's configured
// default (WithDefaultOpsPerTick).
func NewPool(k *Kernel, buf []byte, blockSize int, opsPerTick uint16) (*Pool, error) {
	if k == nil || len(buf) == 0 || blockSize <= 0 {
		return nil, WrapError("kernel: new pool", ErrInvalidArgument)
	}
	stride := alignUp(blockSize, wordSize)
	count := len(buf) / stride
	if count == 0 {
		return nil, WrapError("kernel: new pool: buffer too small for one block", ErrInvalidArgument)
	}
	if opsPerTick == 0 {
		opsPerTick = k.opts.opsPerTick
	}

	p := &Pool{
		k:            k,
		buf:          buf,
		blockSize:    blockSize,
		blockStride:  stride,
		blockCount:   count,
		freeCount:    count,
		minFree:      count,
		opsPerTick:   opsPerTick,
		opsRemaining: opsPerTick,
	}
	for i := 0; i < count; i++ {
		var next int32
		if i == count-1 {
			next = noFreeBlock
		} else {
			next = int32(i + 1)
		}
		p.writeLink(int32(i), next)
	}
	p.freeHead = 0

	if err := k.registerPool(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) writeLink(idx, next int32) {
	off := int(idx) * p.blockStride
	b := p.buf[off : off+wordSize]
	v := uint32(next)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func (p *Pool) readLink(idx int32) int32 {
	off := int(idx) * p.blockStride
	b := p.buf[off : off+wordSize]
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return int32(v)
}

func (p *Pool) blockAt(idx int32) []byte {
	off := int(idx) * p.blockStride
	return p.buf[off : off+p.blockSize]
}

// indexOf validates that block is a stride-aligned sub-slice of p.buf. Go
// gives no portable way to recover "which element of this buffer does this
// slice alias" without comparing raw addresses.
func (p *Pool) indexOf(block []byte) (int32, bool) {
	if len(block) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(&p.buf[0]))
	addr := uintptr(unsafe.Pointer(&block[0]))
	if addr < base {
		return 0, false
	}
	off := addr - base
	if off >= uintptr(len(p.buf)) {
		return 0, false
	}
	if off%uintptr(p.blockStride) != 0 {
		return 0, false
	}
	idx := off / uintptr(p.blockStride)
	if idx >= uintptr(p.blockCount) {
		return 0, false
	}
	return int32(idx), true
}

// AllocTry attempts a constant-time allocation.
func (p *Pool) AllocTry() ([]byte, Status) {
	p.k.crit.enter()
	defer p.k.crit.exit()

	if p.opsRemaining == 0 {
		return nil, StatusBusy
	}
	if p.freeHead == noFreeBlock {
		return nil, StatusEmpty
	}
	idx := p.freeHead
	p.freeHead = p.readLink(idx)
	p.freeCount--
	if p.freeCount < p.minFree {
		p.minFree = p.freeCount
	}
	p.opsRemaining--
	return p.blockAt(idx), StatusOK
}

// FreeTry returns block to the pool. Double-freeing the same address is
// undefined behavior the caller must avoid; only address/alignment validity
// is checked here.
func (p *Pool) FreeTry(block []byte) Status {
	p.k.crit.enter()
	defer p.k.crit.exit()

	if p.opsRemaining == 0 {
		return StatusBusy
	}
	idx, ok := p.indexOf(block)
	if !ok {
		return StatusInvalid
	}
	p.writeLink(idx, p.freeHead)
	p.freeHead = idx
	p.freeCount++
	p.opsRemaining--
	return StatusOK
}

// refillLocked restores the per-tick operation budget. Called by the tick
// handler, which already holds the kernel critical section.
func (p *Pool) refillLocked() {
	p.opsRemaining = p.opsPerTick
}

// GetStats returns a snapshot of the pool's bookkeeping.
func (p *Pool) GetStats() PoolStats {
	p.k.crit.enter()
	defer p.k.crit.exit()
	return PoolStats{
		BlockCount:   p.blockCount,
		BlockSize:    p.blockSize,
		FreeCount:    p.freeCount,
		MinFreeCount: p.minFree,
		OpsPerTick:   p.opsPerTick,
		OpsRemaining: p.opsRemaining,
	}
}
