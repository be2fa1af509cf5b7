package actor

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/niamster/celluloid/mailbox"
	"github.com/niamster/celluloid/task"
)

// dispatchable 是可以被目标一侧（或阻塞中的等待循环）就地分发的
// 消息：SyncCall、AsyncCall、BlockCall 以及 Response 家族都实现它。
type dispatchable interface {
	Dispatch(a *Actor) error
}

// SyncCall 是同步调用：在基础描述符之上携带发送方地址
// （不透明的应答邮箱）、等待任务句柄和调用链关联 ID。
// 由调用方在发送前创建，其响应被分发之后即被丢弃。
type SyncCall struct {
	Call
	// sender 发送方邮箱，响应送回这里
	sender *mailbox.Mailbox
	// waiter 发送方任务的等待句柄
	waiter *task.Waiter
	// chain 调用链关联 ID
	chain uuid.UUID
	// cleaned 保证 Cleanup 恰好产生一个 DeadActor 响应
	cleaned atomic.Bool
}

// NewSyncCall 构造同步调用。
// 关联 ID 继承自调用方任务当前活跃的调用链，没有活跃调用链时
// 新生成一个。
func NewSyncCall(from *task.Task, sender *mailbox.Mailbox, op string, args []any, block *BlockProxy) (*SyncCall, error) {
	base, err := newCall(from, op, args, block)
	if err != nil {
		return nil, err
	}
	chain := from.Chain()
	if chain == uuid.Nil {
		chain = NewChainID()
	}
	return &SyncCall{
		Call:   base,
		sender: sender,
		waiter: from.NewWaiter(),
		chain:  chain,
	}, nil
}

// Chain 返回调用链关联 ID。
func (c *SyncCall) Chain() uuid.UUID { return c.chain }

// Dispatch 在目标上执行调用并向发送方回送响应。
//
// 分发期间被调方任务的关联 ID 槽位被设为本调用的 ID，任何退出
// 路径上都会恢复进入前的值（顶层分发即清空，重入分发恢复外层
// 调用链）。成功时回送 SuccessResponse；失败时回送 ErrorResponse，
// 然后区分归属：Abort 类失败（错在调用方）在通知发送方之后被
// 吞掉，被调方任务继续存活；其余失败是被调方自己的缺陷，继续
// 向上抛出，让被调方任务一并出错。
func (c *SyncCall) Dispatch(a *Actor) error {
	prev := a.task.SetChain(c.chain)
	defer a.task.SetChain(prev)

	result, err := c.invoke(a, a.newContext())
	if err != nil {
		c.respond(a, &ErrorResponse{waiter: c.waiter, op: c.op, err: err})
		if IsAbort(err) {
			log.Debugw("sync call aborted by caller error", "actor", a.id, "op", c.op, "err", err)
			if a.system != nil && a.system.metrics != nil {
				a.system.metrics.IncAbort()
			}
			return nil
		}
		return err
	}
	c.respond(a, &SuccessResponse{waiter: c.waiter, value: result})
	return nil
}

// Cleanup 在目标尚未分发就被发现死亡时调用：无条件产出一个
// 携带 DeadActor 错误的 ErrorResponse 并送达发送方，保证发送方
// 永远不会在已销毁的目标上空等。恰好产生一个响应，不会重复。
func (c *SyncCall) Cleanup(a *Actor) {
	if c.cleaned.Swap(true) {
		return
	}
	id := ""
	if a != nil {
		id = a.id
	}
	c.respond(a, &ErrorResponse{waiter: c.waiter, op: c.op, err: &DeadActorError{ActorID: id, Op: c.op}})
}

// respond 把响应以紧急优先级推回发送方邮箱。
// 发送方已经消失时只能丢弃并记录。
func (c *SyncCall) respond(a *Actor, r Response) {
	if err := c.sender.Push(mailbox.Envelope{Priority: mailbox.PriorityUrgent, Payload: r}); err != nil {
		log.Debugw("dropping response, sender mailbox gone", "op", c.op, "err", err)
	}
}

// Response 协作式地挂起调用任务，直到发给本调用等待句柄的响应
// 到达，返回该响应。self 为当前 Actor（在任何 Actor 之外发起的
// 调用传 nil）。
func (c *SyncCall) Response(self *Actor) (Response, error) {
	return waitResponse(c.sender, c.waiter, self)
}

// Value 等价于 Response().Value()：成功时返回分发结果；错误响应
// 会在调用方上下文重新抛出（可能已解包的）错误，其诊断链上带有
// 合成的"远程调用"边界标记和解包调用自身的栈帧——跨越异步跳跃
// 仍然可调试。
func (c *SyncCall) Value(self *Actor) (any, error) {
	resp, err := c.Response(self)
	if err != nil {
		return nil, err
	}
	return resp.Value()
}

// waitResponse 是同步调用未决期间发送方一侧的接收循环。
//
// 反复取出邮箱中"发给此等待句柄，或本就可分发"的下一条消息：
// 系统事件交给当前 Actor 的系统事件处理器后继续；可分发消息
// （BlockCall、重入的调用）就地分发后继续；发给等待句柄的响应
// 恢复任务并终止循环。这让阻塞中的调用方能服务来自被调方的
// 重入回调请求而不会死锁。
//
// 独占任务只等待自己的响应和系统事件，不服务任何可分发消息。
func waitResponse(mb *mailbox.Mailbox, w *task.Waiter, self *Actor) (Response, error) {
	exclusive := w.Owner().Exclusive()
	pred := func(v any) bool {
		if r, ok := v.(Response); ok && r.Waiter() == w {
			return true
		}
		if _, ok := v.(SystemEvent); ok {
			return true
		}
		if exclusive {
			return false
		}
		switch v.(type) {
		case *BlockCall:
			return true
		case *SyncCall, *AsyncCall:
			// 重入调用只有挂在 Actor 上的任务才能服务
			return self != nil
		}
		return false
	}
	for {
		msg, err := mb.Receive(pred)
		if err != nil {
			return nil, err
		}
		switch m := msg.(type) {
		case SystemEvent:
			if self != nil {
				self.handleSystemEvent(m)
			}
		case Response:
			// 谓词保证只匹配发给本等待句柄的响应
			if err := m.Dispatch(self); err != nil {
				log.Debugw("dropping duplicate response", "err", err)
			}
		case dispatchable:
			if err := m.Dispatch(self); err != nil {
				return nil, err
			}
		}
		if v, ok := w.Poll(); ok {
			return v.(Response), nil
		}
	}
}
