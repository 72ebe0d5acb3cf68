package packets

import "sync"

// pooledBufferSize is the capacity of every buffer the pool hands out.
// It covers a CONNECT/CONNACK/PUBLISH/SUBSCRIBE of typical size without an
// extra allocation; readLoop's accumulation buffer only needs a bigger one
// for an oversized PUBLISH payload, which this pool doesn't pretend to serve.
const pooledBufferSize = 4096

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, pooledBufferSize)
		return &buf
	},
}

// GetBuffer returns a scratch buffer of at least size bytes. Requests above
// pooledBufferSize bypass the pool entirely (PutBuffer drops such a buffer
// instead of pooling it): growing the pooled size to fit one oversized
// packet would inflate every future Get, including the common case this
// pool exists for.
func GetBuffer(size int) *[]byte {
	if size > pooledBufferSize {
		buf := make([]byte, size)
		return &buf
	}
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer obtained from GetBuffer to the pool. Buffers
// GetBuffer allocated outside the pool (cap != pooledBufferSize) are
// dropped instead of pooled, so one oversized packet can't pin an
// oversized buffer in the pool forever.
func PutBuffer(bufPtr *[]byte) {
	if cap(*bufPtr) != pooledBufferSize {
		return
	}
	bufferPool.Put(bufPtr)
}
