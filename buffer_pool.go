// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// bufferPool hands out the entry buffers of one run. An entry buffer holds a
// small extracted entry until its work item is processed. All buffers still
// outstanding at the end of a run are returned by release.
type bufferPool struct {
	entries bytebufferpool.Pool
	limit   int64

	mu          sync.Mutex
	held        int64
	outstanding map[*bytebufferpool.ByteBuffer]int64
}

// newBufferPool returns a pool that holds at most limit bytes in entry
// buffers. A limit of -1 disables the check.
func newBufferPool(limit int64) *bufferPool {
	return &bufferPool{
		limit:       limit,
		outstanding: make(map[*bytebufferpool.ByteBuffer]int64),
	}
}

// acquire returns an empty entry buffer.
func (p *bufferPool) acquire() *bytebufferpool.ByteBuffer {
	b := p.entries.Get()
	p.mu.Lock()
	p.outstanding[b] = 0
	p.mu.Unlock()
	return b
}

// hold accounts the content of b as pending. It returns false, if this would
// exceed the limit. The caller must put b back in that case.
func (p *bufferPool) hold(b *bytebufferpool.ByteBuffer) bool {
	n := int64(b.Len())
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limit >= 0 && p.held+n > p.limit {
		return false
	}
	p.held += n
	p.outstanding[b] = n
	return true
}

// put returns b to the pool. Buffers that are not outstanding are ignored,
// so a buffer can not be returned twice.
func (p *bufferPool) put(b *bytebufferpool.ByteBuffer) {
	p.mu.Lock()
	n, ok := p.outstanding[b]
	if ok {
		p.held -= n
		delete(p.outstanding, b)
	}
	p.mu.Unlock()
	if ok {
		p.entries.Put(b)
	}
}

// heldBytes returns the number of bytes in pending entry buffers.
func (p *bufferPool) heldBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}

// release returns all outstanding entry buffers and reports how many there were.
func (p *bufferPool) release() int {
	p.mu.Lock()
	buffers := make([]*bytebufferpool.ByteBuffer, 0, len(p.outstanding))
	for b := range p.outstanding {
		buffers = append(buffers, b)
	}
	p.mu.Unlock()
	for _, b := range buffers {
		p.put(b)
	}
	return len(buffers)
}

