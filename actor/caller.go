package actor

import (
	"github.com/niamster/celluloid/mailbox"
	"github.com/niamster/celluloid/task"
)

// Caller 是游离的调用方：不挂在任何 Actor 上，但拥有自己的邮箱和
// 任务句柄，因此可以从任何协程发起同步调用并接收响应（包括站点
// 为 receiver 的块回调）。运行时之外的代码（main、测试、HTTP
// 处理器）用它和 Actor 对话。
//
// 一个 Caller 同一时刻只能被一个协程使用。
type Caller struct {
	// system 所属运行时
	system *System
	// mb 响应和块调用送达的私有邮箱
	mb *mailbox.Mailbox
	// task 任务句柄，持有调用链关联 ID 槽位
	task *task.Task
}

// NewCaller 构造一个游离调用方。
func (s *System) NewCaller() *Caller {
	return &Caller{
		system: s,
		mb:     mailbox.New(mailbox.Options{}),
		task:   task.New(NewActorID(), false),
	}
}

// Ask 发起同步调用并挂起到响应到达。
func (c *Caller) Ask(target *Actor, op string, args ...any) (any, error) {
	return c.system.askFrom(nil, c.mb, c.task, target, op, args, nil)
}

// AskBlock 与 Ask 相同，但随调用传入一个块。
func (c *Caller) AskBlock(target *Actor, op string, site Site, fn BlockFunc, args ...any) (any, error) {
	return c.system.askFrom(nil, c.mb, c.task, target, op, args, NewBlockProxy(fn, site, c.mb))
}

// Tell 发起异步（即发即忘）调用。
func (c *Caller) Tell(target *Actor, op string, args ...any) error {
	return c.system.tell(c.task, target, op, args, nil)
}

// TellBlock 与 Tell 相同，但随调用传入一个块。
func (c *Caller) TellBlock(target *Actor, op string, site Site, fn BlockFunc, args ...any) error {
	return c.system.tell(c.task, target, op, args, NewBlockProxy(fn, site, c.mb))
}

// Close 释放调用方的邮箱。之后发起的调用会立即失败。
func (c *Caller) Close() { c.mb.Close() }
