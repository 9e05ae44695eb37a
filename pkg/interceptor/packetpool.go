package interceptor

import "sync"

// PayloadPool recycles payload buffers used on the frame transform hot path.
type PayloadPool struct {
	pools map[int]*sync.Pool // key: size
}

// NewPayloadPool builds a pool ladder for the given buffer sizes. With no
// sizes it covers a single MTU-sized payload plus a keyframe-sized bucket.
func NewPayloadPool(size ...int) *PayloadPool {
	if len(size) == 0 {
		size = []int{1500, 65536}
	}
	pools := make(map[int]*sync.Pool)
	for _, s := range size {
		bufSize := s
		pools[bufSize] = &sync.Pool{
			New: func() interface{} {
				b := make([]byte, bufSize)
				return &b
			},
		}
	}
	return &PayloadPool{pools: pools}
}

// Get returns a buffer of at least size bytes and the pool to return it to.
// A nil pool means the buffer was allocated outside the ladder and is left
// to the GC.
func (p *PayloadPool) Get(size int) (*[]byte, *sync.Pool) {
	for s, pool := range p.pools {
		if s >= size {
			return pool.Get().(*[]byte), pool
		}
	}
	b := make([]byte, size)
	return &b, nil
}
