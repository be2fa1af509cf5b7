package actor

import (
	"fmt"

	"golang.org/x/xerrors"

	"github.com/niamster/celluloid/task"
)

// HandlerFunc 是操作处理函数。
// ctx 提供本次分发的执行上下文（包括随调用传入的块），
// args 为调用方提供的实参。
type HandlerFunc func(ctx *Context, args []any) (any, error)

// Method 是能力表中的一个条目：处理函数加上声明的元数。
// 每个 Actor 在构造时声明一张静态的操作名到 Method 的能力表，
// 调用检查据此完成，不做任何运行时反射。
type Method struct {
	// Do 处理函数
	Do HandlerFunc
	// MinArgs 最少实参数量
	MinArgs int
	// MaxArgs 最多实参数量，-1 表示可变参数
	MaxArgs int
}

// accepts 报告给定的实参数量是否符合声明的元数。
func (m Method) accepts(n int) bool {
	if n < m.MinArgs {
		return false
	}
	return m.MaxArgs < 0 || n <= m.MaxArgs
}

// Call 是不可变的请求描述符：操作名、有序实参表、可选的块代理。
// 构造之后不再修改。SyncCall 与 AsyncCall 在其上扩展。
type Call struct {
	// op 操作名
	op string
	// args 有序实参表
	args []any
	// block 随调用传入的块代理（可为 nil）
	block *BlockProxy
}

// newCall 构造基础调用描述符。
// 独占任务不允许携带块——这是配置错误，在这里立即失败，
// 绝不会等到分发时才暴露。
func newCall(from *task.Task, op string, args []any, block *BlockProxy) (Call, error) {
	if block != nil && from != nil && from.Exclusive() {
		return Call{}, xerrors.Errorf("build call %q: %w", op, ErrExclusiveBlock)
	}
	return Call{op: op, args: args, block: block}, nil
}

// Op 返回调用的操作名。
func (c *Call) Op() string { return c.op }

// check 校验目标是否暴露匹配的操作以及实参数量是否符合元数。
// 任何检查失败都被包装为 AbortError：协议错误归咎于调用方，
// 与被调方自身抛出的普通故障严格区分。
func (c *Call) check(a *Actor) (Method, error) {
	m, ok := a.methods[c.op]
	if !ok {
		return Method{}, Abort(&MethodMissingError{Op: c.op, Target: describeTarget(a)})
	}
	if !m.accepts(len(c.args)) {
		return Method{}, Abort(&ArgumentCountError{
			Op:    c.op,
			Given: len(c.args),
			Min:   m.MinArgs,
			Max:   m.MaxArgs,
		})
	}
	return m, nil
}

// invoke 运行 check 后调用命名操作。
// 块的执行站点为 receiver 时，处理上下文获得一个可调用的 Yield，
// 它会同步地跨边界回跳到发送方执行闭包；站点为 sender 时，
// 不向处理函数传入任何块（发送方一侧的执行由代理自己独立完成）。
// 处理函数的 panic 被捕获为被调方故障。
func (c *Call) invoke(a *Actor, ctx *Context) (result any, err error) {
	m, err := c.check(a)
	if err != nil {
		return nil, err
	}
	if c.block != nil && c.block.site == SiteReceiver {
		ctx.yield = c.block.roundTrip(a)
	}
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("operation %q panicked: %v", c.op, r)
		}
	}()
	return m.Do(ctx, c.args)
}

// describeTarget 产出目标的尽力而为描述，用于 MethodMissing 诊断。
// 用户提供的 Describe 可能因为目标状态不一致而 panic，
// 此时退回到由 ID/名称/能力数合成的字段转储。
func describeTarget(a *Actor) (desc string) {
	defer func() {
		if r := recover(); r != nil {
			desc = fmt.Sprintf("#<Actor %s ops=%d>", a.id, len(a.methods))
		}
	}()
	if a.describe != nil {
		return a.describe()
	}
	if a.name != "" {
		return fmt.Sprintf("#<Actor %s %q>", a.id, a.name)
	}
	return "#<Actor " + a.id + ">"
}
