package launcher

import (
	"bytes"
	"sync"
)

// StreamBuffer 收集子进程的一个输出流，每次写入后发出通知
// 超过上限的部分被丢弃，写入方不会因此收到错误
type StreamBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int64
	truncated bool
	notify    chan struct{}
}

// NewStreamBuffer limit <= 0 表示不限制
func NewStreamBuffer(limit int64) *StreamBuffer {
	return &StreamBuffer{
		limit:  limit,
		notify: make(chan struct{}, 1),
	}
}

// Write 实现 io.Writer
func (s *StreamBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	data := p
	if s.limit > 0 {
		room := s.limit - int64(s.buf.Len())
		if room < int64(len(data)) {
			if room < 0 {
				room = 0
			}
			data = data[:room]
			s.truncated = true
		}
	}
	s.buf.Write(data)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Notify 有新数据写入时可读，多次写入可能只对应一次通知
func (s *StreamBuffer) Notify() <-chan struct{} {
	return s.notify
}

// String 返回目前收集到的全部内容
func (s *StreamBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Len 已收集的字节数
func (s *StreamBuffer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Truncated 是否因超过上限而丢弃过数据
func (s *StreamBuffer) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}
