// Package bytebuffer 提供基于 bytebufferpool 的可复用字节缓冲区。
package bytebuffer

import (
	"github.com/valyala/bytebufferpool"
)

// ByteBuffer 是 bytebufferpool.ByteBuffer 的别名，B 字段即底层字节切片。
type ByteBuffer = bytebufferpool.ByteBuffer

// Get 从缓冲池中取出一个空缓冲区。
func Get() *ByteBuffer {
	return bytebufferpool.Get()
}

// Put 将缓冲区归还缓冲池，b 为 nil 时忽略。
// 归还后调用方不得再持有 b.B 的引用。
func Put(b *ByteBuffer) {
	if b != nil {
		bytebufferpool.Put(b)
	}
}
