package actor

import "github.com/google/uuid"

// Context 提供一次分发期间的执行上下文。
// 它在每次分发时创建，不应在处理函数返回后保存。
type Context struct {
	// system 所属的运行时，用于发起后续调用
	system *System
	// self 当前处理调用的 Actor
	self *Actor
	// yield 随调用注入的块回调（站点为 receiver 时非空）
	yield func(args ...any) (any, error)
}

// Self 返回当前处理调用的 Actor。
func (c *Context) Self() *Actor { return c.self }

// System 返回所属的运行时。
func (c *Context) System() *System { return c.system }

// Chain 返回当前活跃的调用链关联 ID。
// 分发期间必然非空，分发结束后立即被清空。
func (c *Context) Chain() uuid.UUID { return c.self.task.Chain() }

// HasBlock 报告本次调用是否注入了可在被调方调用的块。
// 站点为 sender 的块不会注入：发送方一侧的执行由代理独立完成。
func (c *Context) HasBlock() bool { return c.yield != nil }

// Yield 调用随调用传入的块。块的执行站点为 receiver 时，
// 这会同步地跨边界回跳到发送方任务执行闭包并等待其结果。
// 没有注入块时返回 ErrNoBlock。
func (c *Context) Yield(args ...any) (any, error) {
	if c.yield == nil {
		return nil, ErrNoBlock
	}
	return c.yield(args...)
}

// Ask 从处理函数内部向另一个 Actor 发起同步调用。
// 当前任务协作式地挂起直到响应到达，期间仍然服务重入的
// 回调请求。
func (c *Context) Ask(target *Actor, op string, args ...any) (any, error) {
	if c.system == nil {
		return nil, ErrActorNotFound
	}
	return c.system.ask(c.self, target, op, args, nil)
}

// AskBlock 与 Ask 相同，但随调用传入一个块。
func (c *Context) AskBlock(target *Actor, op string, site Site, fn BlockFunc, args ...any) (any, error) {
	if c.system == nil {
		return nil, ErrActorNotFound
	}
	return c.system.ask(c.self, target, op, args, NewBlockProxy(fn, site, c.self.mb))
}

// Tell 从处理函数内部向另一个 Actor 发起异步（即发即忘）调用。
func (c *Context) Tell(target *Actor, op string, args ...any) error {
	if c.system == nil {
		return ErrActorNotFound
	}
	return c.system.tell(c.self.task, target, op, args, nil)
}

// TellBlock 与 Tell 相同，但随调用传入一个块。
func (c *Context) TellBlock(target *Actor, op string, site Site, fn BlockFunc, args ...any) error {
	if c.system == nil {
		return ErrActorNotFound
	}
	return c.system.tell(c.self.task, target, op, args, NewBlockProxy(fn, site, c.self.mb))
}
