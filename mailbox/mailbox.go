package mailbox

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ErrMailboxClosed 当向已关闭的邮箱推送消息、或在邮箱关闭且
// 没有剩余匹配消息时做接收，返回此错误。
var ErrMailboxClosed = errors.New("mailbox closed")

// ErrMailboxFull 当邮箱已满且背压策略为 Expand 时返回此错误。
var ErrMailboxFull = errors.New("mailbox full")

// 消息优先级。响应消息以紧急优先级投递，先于普通调用被匹配。
const (
	// PriorityNormal 普通优先级，常规调用消息。
	PriorityNormal uint8 = 0
	// PriorityUrgent 紧急优先级，响应与系统事件。
	PriorityUrgent uint8 = 1
)

// BackpressurePolicy 定义邮箱满时的背压策略。
type BackpressurePolicy uint8

const (
	// BackpressureExpand 扩展策略：入队直到达到容量，然后返回错误。
	BackpressureExpand BackpressurePolicy = iota
	// BackpressureBlock 阻塞策略：阻塞发送者直到有空间或邮箱关闭。
	BackpressureBlock
	// BackpressureDropNewest 丢弃策略：邮箱满时丢弃新消息。
	BackpressureDropNewest
)

// Envelope 是邮箱内部的消息包装器。
type Envelope struct {
	// Priority 消息优先级（0=普通，非 0=紧急）
	Priority uint8
	// Payload 实际消息内容
	Payload any
}

// Mailbox 是支持选择性接收的双优先级邮箱。
//
// 投递侧不变：任意 goroutine 可以 Push，紧急消息与普通消息分别
// 进入各自的无锁到达队列。接收侧是谓词驱动的：Receive(pred) 返回
// 最早到达的满足谓词的消息，不满足谓词的消息留在待匹配列表中
// 保持原有顺序，等待后续的接收者。
//
// 这是调用协议的挂起原语：同步调用在等待自己的响应时，
// 用谓词"发给我的响应，或可以就地分发的消息"做选择性接收。
// 邮箱只支持单消费者（其所属任务的 goroutine）。
type Mailbox struct {
	// urgent 紧急消息到达队列
	urgent *arrivalQueue[Envelope]
	// normal 普通消息到达队列
	normal *arrivalQueue[Envelope]
	// policy 背压策略
	policy BackpressurePolicy
	// closed 关闭信号通道
	closed chan struct{}
	// notify 新消息通知通道（容量 1，折叠多次通知）
	notify chan struct{}
	// size 未被消费的消息总数（到达队列 + 待匹配列表）
	size atomic.Int64

	// mu 保护待匹配列表
	mu sync.Mutex
	// pendingUrgent 已搬运但尚未被任何谓词匹配的紧急消息
	pendingUrgent []any
	// pendingNormal 已搬运但尚未被任何谓词匹配的普通消息
	pendingNormal []any
}

// Options 配置邮箱的容量与背压策略。
type Options struct {
	// Capacity 普通队列的单段容量，默认 65536
	Capacity uint64
	// UrgentCapacity 紧急队列的单段容量，默认 1024
	UrgentCapacity uint64
	// MaxSegments 最大分段数，默认 8
	MaxSegments uint64
	// Policy 背压策略，默认 BackpressureExpand
	Policy BackpressurePolicy
}

// New 创建一个新的邮箱，使用默认配置（普通=65536，紧急=1024，最大分段=8）。
func New(opts Options) *Mailbox {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = 65536
	}
	uc := opts.UrgentCapacity
	if uc == 0 {
		uc = 1024
	}
	ms := opts.MaxSegments
	if ms == 0 {
		ms = 8
	}
	return &Mailbox{
		urgent: newArrivalQueue[Envelope](uc, ms),
		normal: newArrivalQueue[Envelope](capacity, ms),
		policy: opts.Policy,
		closed: make(chan struct{}),
		notify: make(chan struct{}, 1),
	}
}

// Closed 返回一个通道，在邮箱关闭时该通道会被关闭。
func (m *Mailbox) Closed() <-chan struct{} { return m.closed }

// Close 关闭邮箱并解除接收者的阻塞。
// 关闭后不能再推送消息，已入队的消息仍可被接收或 Drain。
func (m *Mailbox) Close() {
	select {
	case <-m.closed:
	default:
		close(m.closed)
	}
}

// Len 返回未被消费的消息近似数量。
func (m *Mailbox) Len() int64 { return m.size.Load() }

// Push 根据优先级和背压策略将信封入队。
func (m *Mailbox) Push(env Envelope) error {
	select {
	case <-m.closed:
		return ErrMailboxClosed
	default:
	}
	q := m.normal
	if env.Priority != 0 {
		q = m.urgent
	}
	switch m.policy {
	case BackpressureExpand:
		if q.enqueue(&env) {
			m.bump()
			return nil
		}
		return ErrMailboxFull
	case BackpressureDropNewest:
		if q.enqueue(&env) {
			m.bump()
		}
		return nil
	case BackpressureBlock:
		backoff := time.Microsecond
		for {
			if q.enqueue(&env) {
				m.bump()
				return nil
			}
			select {
			case <-m.closed:
				return ErrMailboxClosed
			default:
			}
			runtime.Gosched()
			time.Sleep(backoff)
			if backoff < 2*time.Millisecond {
				backoff *= 2
			}
		}
	default:
		return errors.New("unknown backpressure policy")
	}
}

// bump 记录一条新消息并通知可能阻塞的接收者。
func (m *Mailbox) bump() {
	m.size.Add(1)
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Receive 选择性接收：返回最早到达的满足谓词的消息。
// 没有匹配消息时阻塞，直到匹配的消息到达或邮箱关闭。
// 不满足谓词的消息按到达顺序留在待匹配列表中。
func (m *Mailbox) Receive(pred func(any) bool) (any, error) {
	for {
		if v, ok := m.TryReceive(pred); ok {
			return v, nil
		}
		select {
		case <-m.notify:
		case <-m.closed:
			// 关闭与最后一批投递可能交错，再做一次匹配。
			if v, ok := m.TryReceive(pred); ok {
				return v, nil
			}
			return nil, ErrMailboxClosed
		}
	}
}

// TryReceive 是 Receive 的非阻塞变体。
func (m *Mailbox) TryReceive(pred func(any) bool) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moveArrivals()
	if v, ok := matchFirst(&m.pendingUrgent, pred); ok {
		m.size.Add(-1)
		return v, true
	}
	if v, ok := matchFirst(&m.pendingNormal, pred); ok {
		m.size.Add(-1)
		return v, true
	}
	return nil, false
}

// Drain 取出所有未被消费的消息（紧急在前，各自保持到达顺序）。
// 用于 Actor 停止时对积压的同步调用做 DeadActor 清理。
func (m *Mailbox) Drain() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moveArrivals()
	out := make([]any, 0, len(m.pendingUrgent)+len(m.pendingNormal))
	out = append(out, m.pendingUrgent...)
	out = append(out, m.pendingNormal...)
	m.pendingUrgent = nil
	m.pendingNormal = nil
	m.size.Add(-int64(len(out)))
	return out
}

// moveArrivals 将到达队列中的信封全部搬运到待匹配列表。
// 调用方必须持有 m.mu。
func (m *Mailbox) moveArrivals() {
	for {
		v, ok := m.urgent.dequeue()
		if !ok {
			break
		}
		m.pendingUrgent = append(m.pendingUrgent, v.Payload)
	}
	for {
		v, ok := m.normal.dequeue()
		if !ok {
			break
		}
		m.pendingNormal = append(m.pendingNormal, v.Payload)
	}
}

// matchFirst 从列表中移除并返回第一个满足谓词的元素。
func matchFirst(list *[]any, pred func(any) bool) (any, bool) {
	for i, v := range *list {
		if pred(v) {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return v, true
		}
	}
	return nil, false
}
