package actor

import (
	"fmt"

	"github.com/niamster/celluloid/task"
)

// AsyncCall 是即发即忘的调用：没有发送方地址，也没有等待任务。
// 调用方不等待也没有接收错误的句柄，所以失败绝不泄漏进调用方的
// 控制流。
type AsyncCall struct {
	Call
}

// NewAsyncCall 构造异步调用。
func NewAsyncCall(from *task.Task, op string, args []any, block *BlockProxy) (*AsyncCall, error) {
	base, err := newCall(from, op, args, block)
	if err != nil {
		return nil, err
	}
	return &AsyncCall{Call: base}, nil
}

// Dispatch 在目标上执行调用并丢弃结果。
//
// 分发期间被调方任务的关联 ID 槽位被设为新生成的 ID，退出时恢复
// 进入前的值。Abort 类失败只记录日志（带原始原因的诊断链）后吞掉
// ——调用方没有等待，正确性意味着不因调用方的错误让被调方任务
// 出错。其余失败是被调方的缺陷，照常向上抛出。
func (c *AsyncCall) Dispatch(a *Actor) error {
	prev := a.task.SetChain(NewChainID())
	defer a.task.SetChain(prev)

	_, err := c.invoke(a, a.newContext())
	if err != nil {
		if IsAbort(err) {
			log.Debugw("async call aborted by caller error",
				"actor", a.id, "op", c.op, "cause", fmt.Sprintf("%+v", err))
			if a.system != nil && a.system.metrics != nil {
				a.system.metrics.IncAbort()
			}
			return nil
		}
		return err
	}
	return nil
}
