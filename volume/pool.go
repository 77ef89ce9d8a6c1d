package volume

// BufferPool manages reusable byte slices for the file decoders. Reading a
// long 4D run decodes hundreds of identically sized frames; recycling the
// raw-byte scratch between frames keeps the loaders from churning the GC.
type BufferPool struct {
	buffers chan []byte
	size    int
}

// NewBufferPool creates a pool of reusable buffers.
func NewBufferPool(poolSize, bufferSize int) *BufferPool {
	bp := &BufferPool{
		buffers: make(chan []byte, poolSize),
		size:    bufferSize,
	}

	// Pre-allocate buffers
	for i := 0; i < poolSize; i++ {
		bp.buffers <- make([]byte, bufferSize)
	}

	return bp
}

// Get returns a buffer from the pool or allocates a new one.
func (bp *BufferPool) Get() []byte {
	select {
	case buf := <-bp.buffers:
		return buf
	default:
		return make([]byte, bp.size)
	}
}

// Put returns a buffer to the pool. Buffers of a different size are dropped.
func (bp *BufferPool) Put(buf []byte) {
	if len(buf) != bp.size {
		return
	}
	select {
	case bp.buffers <- buf:
	default:
		// Pool full, let GC handle it
	}
}
