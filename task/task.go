package task

import (
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

// ErrAlreadyResumed 当 Waiter 被第二次恢复时返回此错误。
// 每个挂起点只允许被恢复一次，重复恢复说明协议出现了错误。
var ErrAlreadyResumed = xerrors.New("waiter already resumed")

// Task 表示一条逻辑执行线：一个 Actor 的处理循环，
// 或一个在任何 Actor 之外发起调用的独立调用方。
//
// Task 携带两个调用协议所需的槽位：
//   - 调用链关联 ID（chain id），在一次分发期间被设置，
//     任何退出路径上都会被清空；
//   - 独占标志（exclusive），独占任务在等待响应时不处理
//     任何可分发消息，并且不允许携带块发起调用。
//
// chain 槽位只由任务自己的 goroutine 读写，因此不需要加锁。
type Task struct {
	// id 任务的唯一标识符
	id string
	// exclusive 独占标志，构造后不可变
	exclusive bool
	// chain 当前活跃的调用链关联 ID，空值为 uuid.Nil
	chain uuid.UUID
}

// New 创建一个新任务。
// id 为任务标识符，exclusive 指定是否为独占任务。
func New(id string, exclusive bool) *Task {
	return &Task{id: id, exclusive: exclusive}
}

// ID 返回任务的唯一标识符。
func (t *Task) ID() string { return t.id }

// Exclusive 报告任务是否处于独占执行模式。
func (t *Task) Exclusive() bool { return t.exclusive }

// Chain 返回当前活跃的调用链关联 ID。
// 没有活跃调用链时返回 uuid.Nil。
func (t *Task) Chain() uuid.UUID { return t.chain }

// SetChain 设置当前活跃的调用链关联 ID，返回之前的值。
// 重入分发（阻塞等待期间就地服务的调用）在退出时用返回值恢复
// 外层的调用链。只能从任务自己的 goroutine 调用。
func (t *Task) SetChain(id uuid.UUID) (prev uuid.UUID) {
	prev = t.chain
	t.chain = id
	return prev
}

// ClearChain 清空调用链槽位（置为 uuid.Nil）。
// 分发的每一条退出路径都必须调用此方法。
func (t *Task) ClearChain() { t.chain = uuid.Nil }

// Waiter 是一次挂起的恢复句柄（等待任务句柄）。
// 每个未决调用对应一个 Waiter：挂起方阻塞在它上面，
// 响应消息通过 Resume 将结果交还给挂起方。
//
// Resume 恰好成功一次，第二次恢复返回 ErrAlreadyResumed，
// 这保证了"分发一个响应恰好恢复一个挂起任务恰好一次"。
type Waiter struct {
	// owner 创建此 Waiter 的任务
	owner *Task
	// done 标记是否已恢复
	done atomic.Bool
	// ch 单次使用的结果通道（容量 1）
	ch chan any
}

// NewWaiter 为一次未决调用创建新的恢复句柄。
func (t *Task) NewWaiter() *Waiter {
	return &Waiter{owner: t, ch: make(chan any, 1)}
}

// Owner 返回创建此 Waiter 的任务。
func (w *Waiter) Owner() *Task { return w.owner }

// Resume 以给定值恢复挂起的任务。
// 重复调用返回 ErrAlreadyResumed 且不投递值。
func (w *Waiter) Resume(v any) error {
	if w.done.Swap(true) {
		return ErrAlreadyResumed
	}
	w.ch <- v
	return nil
}

// Resumed 报告 Waiter 是否已被恢复。
func (w *Waiter) Resumed() bool { return w.done.Load() }

// Poll 非阻塞地取出恢复值。
// 值尚未到达（或已被取走）时返回 (nil, false)。
func (w *Waiter) Poll() (any, bool) {
	select {
	case v := <-w.ch:
		return v, true
	default:
		return nil, false
	}
}
