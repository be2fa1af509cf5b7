package actor

import (
	"errors"

	"github.com/niamster/celluloid/task"
)

// Response 是恢复挂起任务的终结消息。
//
// Dispatch 以响应自身（而不是裸值）恢复等待任务，恰好一次；
// 等待方通过 Value 解包。错误响应的 Value 永远返回错误而不是值，
// 所以等待方必须统一走 Value，而不是按响应类型分支。
type Response interface {
	// Waiter 返回此响应要恢复的等待任务句柄。
	Waiter() *task.Waiter
	// Dispatch 恢复等待任务。重复分发返回 task.ErrAlreadyResumed。
	Dispatch(a *Actor) error
	// Value 解包响应的值或错误。
	Value() (any, error)
}

// SuccessResponse 携带一次成功分发的结果。
type SuccessResponse struct {
	// waiter 等待任务句柄
	waiter *task.Waiter
	// value 操作结果
	value any
}

// Waiter 返回此响应要恢复的等待任务句柄。
func (r *SuccessResponse) Waiter() *task.Waiter { return r.waiter }

// Dispatch 以响应自身恢复等待任务。
func (r *SuccessResponse) Dispatch(*Actor) error { return r.waiter.Resume(r) }

// Value 原样返回存储的结果值。
func (r *SuccessResponse) Value() (any, error) { return r.value, nil }

// ErrorResponse 携带一次失败分发的重分类错误。
type ErrorResponse struct {
	// waiter 等待任务句柄
	waiter *task.Waiter
	// op 失败调用的操作名，用于边界标记
	op string
	// err 被调方一侧记录的错误
	err error
}

// Waiter 返回此响应要恢复的等待任务句柄。
func (r *ErrorResponse) Waiter() *task.Waiter { return r.waiter }

// Dispatch 以响应自身恢复等待任务。
func (r *ErrorResponse) Dispatch(*Actor) error { return r.waiter.Resume(r) }

// Value 在调用方上下文重新抛出错误：Abort 先解包回原始原因，
// 然后补上合成的"远程调用"边界标记（解包调用自身的栈帧由
// xerrors 捕获）。永远返回错误，绝不返回值。
func (r *ErrorResponse) Value() (any, error) {
	err := r.err
	var abort *AbortError
	if errors.As(err, &abort) {
		err = abort.Cause
	}
	return nil, remoteBoundary(r.op, err)
}

// Err 返回被调方一侧记录的原始错误（未解包、未标注）。
func (r *ErrorResponse) Err() error { return r.err }

// BlockResponse 携带一次块调用的结果。
// 分发它直接以原始结果恢复块调用方挂起的任务——没有包装，
// 也没有成功/错误的重分类路径：闭包返回的错误按值原样传回。
type BlockResponse struct {
	// waiter 块调用一侧的等待任务句柄
	waiter *task.Waiter
	// value 闭包的返回值
	value any
	// err 闭包返回的错误（原样传回，不重分类）
	err error
}

// Waiter 返回此响应要恢复的等待任务句柄。
func (r *BlockResponse) Waiter() *task.Waiter { return r.waiter }

// Dispatch 以原始结果恢复块调用方挂起的任务。
func (r *BlockResponse) Dispatch(*Actor) error { return r.waiter.Resume(r) }

// Value 返回闭包的原始结果对。
func (r *BlockResponse) Value() (any, error) { return r.value, r.err }
