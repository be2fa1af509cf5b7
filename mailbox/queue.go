package mailbox

import (
	"sync/atomic"
)

// cell 是环形缓冲区的单个槽位。
// 序列号用于在无锁的前提下协调生产者与消费者。
type cell[T any] struct {
	// seq 槽位序列号
	seq atomic.Uint64
	// val 槽位中存储的值指针
	val atomic.Pointer[T]
}

// ring 是基于 Dmitry Vyukov 有界 MPMC 算法的无锁环形缓冲区。
// 入队与出队都通过 CAS 推进指针，序列号判断槽位是否可用，
// 在多生产者高并发投递下没有锁竞争。
type ring[T any] struct {
	// mask 容量掩码（容量为 2 的幂）
	mask uint64
	// buf 槽位数组
	buf []cell[T]
	// head 消费者指针
	head atomic.Uint64
	// tail 生产者指针
	tail atomic.Uint64
}

// newRing 创建环形缓冲区，容量向上取整到 2 的幂（最小 2）。
func newRing[T any](capacity uint64) *ring[T] {
	if capacity < 2 {
		capacity = 2
	}
	c := uint64(1)
	for c < capacity {
		c <<= 1
	}
	r := &ring[T]{mask: c - 1, buf: make([]cell[T], c)}
	for i := range r.buf {
		r.buf[i].seq.Store(uint64(i))
	}
	return r
}

// enqueue 将值入队，缓冲区已满时返回 false。
func (r *ring[T]) enqueue(v *T) bool {
	for {
		tail := r.tail.Load()
		c := &r.buf[tail&r.mask]
		dif := int64(c.seq.Load()) - int64(tail)
		if dif == 0 {
			if r.tail.CompareAndSwap(tail, tail+1) {
				c.val.Store(v)
				c.seq.Store(tail + 1)
				return true
			}
		} else if dif < 0 {
			return false
		}
	}
}

// dequeue 出队一个值，缓冲区为空时返回 (nil, false)。
func (r *ring[T]) dequeue() (*T, bool) {
	for {
		head := r.head.Load()
		c := &r.buf[head&r.mask]
		dif := int64(c.seq.Load()) - int64(head+1)
		if dif == 0 {
			if r.head.CompareAndSwap(head, head+1) {
				v := c.val.Load()
				c.val.Store(nil)
				c.seq.Store(head + r.mask + 1)
				return v, true
			}
		} else if dif < 0 {
			return nil, false
		}
	}
}

// segment 是到达队列的一段：一个环形缓冲区加下一段指针。
type segment[T any] struct {
	r    *ring[T]
	next atomic.Pointer[segment[T]]
}

// arrivalQueue 是邮箱的到达缓冲区：分段无锁队列。
// 生产者（任意 goroutine 的 Push）无锁入队，段满且未达段数上限时
// 自动追加新段；消费者（邮箱所有者）把到达的信封全部搬运到
// 自己私有的待匹配列表后做选择性接收。
type arrivalQueue[T any] struct {
	// head 消费端当前段
	head atomic.Pointer[segment[T]]
	// tail 生产端当前段
	tail atomic.Pointer[segment[T]]
	// segCap 单段容量
	segCap uint64
	// segs 当前段数
	segs atomic.Uint64
	// maxSeg 段数上限
	maxSeg uint64
}

// newArrivalQueue 创建到达队列。maxSegments 为 0 时按 1 处理。
func newArrivalQueue[T any](segmentCapacity, maxSegments uint64) *arrivalQueue[T] {
	if maxSegments == 0 {
		maxSegments = 1
	}
	s := &segment[T]{r: newRing[T](segmentCapacity)}
	q := &arrivalQueue[T]{segCap: segmentCapacity, maxSeg: maxSegments}
	q.head.Store(s)
	q.tail.Store(s)
	q.segs.Store(1)
	return q
}

// capacity 返回队列总容量（段容量 × 段数上限）。
func (q *arrivalQueue[T]) capacity() uint64 { return q.segCap * q.maxSeg }

// enqueue 入队；当前段满且可扩容时追加新段，达到上限返回 false。
func (q *arrivalQueue[T]) enqueue(v *T) bool {
	for {
		t := q.tail.Load()
		if t.r.enqueue(v) {
			return true
		}
		if q.segs.Load() >= q.maxSeg {
			return false
		}
		n := t.next.Load()
		if n == nil {
			ns := &segment[T]{r: newRing[T](q.segCap)}
			if t.next.CompareAndSwap(nil, ns) {
				q.tail.CompareAndSwap(t, ns)
				q.segs.Add(1)
			}
		} else {
			q.tail.CompareAndSwap(t, n)
		}
	}
}

// dequeue 出队；当前段空且存在后继段时切换到后继段。
func (q *arrivalQueue[T]) dequeue() (*T, bool) {
	h := q.head.Load()
	if v, ok := h.r.dequeue(); ok {
		return v, true
	}
	n := h.next.Load()
	if n == nil {
		return nil, false
	}
	q.head.Store(n)
	q.segs.Add(^uint64(0))
	return q.dequeue()
}
