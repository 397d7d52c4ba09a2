// Package buffers pools the copy buffers used when streaming downloads to
// disk, so parallel downloads do not each allocate their own.
package buffers

import (
	"sync"

	"github.com/mrd/ca-drive/internal/constants"
)

var copyPool = &sync.Pool{
	New: func() interface{} {
		buf := make([]byte, constants.CopyBufferSize)
		return &buf
	},
}

// GetCopyBuffer retrieves a CopyBufferSize buffer from the pool.
// Return it with PutCopyBuffer when done.
//
//	buf := buffers.GetCopyBuffer()
//	defer buffers.PutCopyBuffer(buf)
//	n, err := io.CopyBuffer(dst, src, *buf)
func GetCopyBuffer() *[]byte {
	return copyPool.Get().(*[]byte)
}

// PutCopyBuffer clears buf and returns it to the pool. Buffers of any other
// size are dropped.
func PutCopyBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.CopyBufferSize {
		clear(*buf)
		copyPool.Put(buf)
	}
}
