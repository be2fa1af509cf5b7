package actor

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrActorNotFound 当目标 Actor 为空或无法解析时返回此错误。
	ErrActorNotFound = errors.New("actor not found")
	// ErrNoBlock 当处理器在没有随调用传入块时调用 Yield 返回此错误。
	ErrNoBlock = errors.New("no block given")
	// ErrExclusiveBlock 当独占任务试图构造携带块的调用时返回此错误。
	// 这是配置错误，在构造时立即失败，绝不会等到分发时才暴露。
	ErrExclusiveBlock = errors.New("cannot pass a block from an exclusive task")
)

// AbortError 表示一次归咎于调用方的协议错误。
//
// 调用检查阶段（未知操作、实参数量不符）产生的一切失败都会被
// 包装成 AbortError：它会原样报告给调用方，但绝不会让被调方的
// 任务出错——错在调用方，被调方继续存活。
type AbortError struct {
	// Cause 原始失败原因
	Cause error
}

// Abort 将失败原因包装为调用方协议错误。
func Abort(cause error) *AbortError { return &AbortError{Cause: cause} }

func (e *AbortError) Error() string { return "call aborted: " + e.Cause.Error() }

// Unwrap 返回原始失败原因，支持 errors.Is/As 链。
func (e *AbortError) Unwrap() error { return e.Cause }

// IsAbort 报告错误链中是否存在调用方协议错误。
func IsAbort(err error) bool {
	var a *AbortError
	return errors.As(err, &a)
}

// MethodMissingError 表示目标没有暴露与操作名匹配的可调用成员。
type MethodMissingError struct {
	// Op 请求的操作名
	Op string
	// Target 目标的尽力而为描述
	Target string
}

func (e *MethodMissingError) Error() string {
	return fmt.Sprintf("undefined operation %q for %s", e.Op, e.Target)
}

// ArgumentCountError 表示实参数量与操作声明的元数不符。
type ArgumentCountError struct {
	// Op 请求的操作名
	Op string
	// Given 提供的实参数量
	Given int
	// Min 声明的最少实参数量
	Min int
	// Max 声明的最多实参数量，-1 表示可变参数
	Max int
}

func (e *ArgumentCountError) Error() string {
	if e.Max < 0 {
		return fmt.Sprintf("wrong number of arguments for %q: given %d, expected %d+", e.Op, e.Given, e.Min)
	}
	if e.Min == e.Max {
		return fmt.Sprintf("wrong number of arguments for %q: given %d, expected %d", e.Op, e.Given, e.Min)
	}
	return fmt.Sprintf("wrong number of arguments for %q: given %d, expected %d..%d", e.Op, e.Given, e.Min, e.Max)
}

// DeadActorError 表示调用的目标 Actor 已经不存在。
// cleanup 用它保证同步调用方永远不会在已销毁的目标上空等。
type DeadActorError struct {
	// ActorID 已死亡目标的 ID（可能为空）
	ActorID string
	// Op 未能分发的操作名
	Op string
}

func (e *DeadActorError) Error() string {
	if e.ActorID == "" {
		return fmt.Sprintf("attempted to call %q on a dead actor", e.Op)
	}
	return fmt.Sprintf("attempted to call %q on dead actor %s", e.Op, e.ActorID)
}

// remoteBoundary 在解包处为跨越 Actor 边界的错误补上合成的
// "远程调用"边界标记。xerrors 会捕获解包调用自身的栈帧，
// 原始错误通过 %w 保留，errors.Is/As 仍然命中同一个错误值。
func remoteBoundary(op string, err error) error {
	return xerrors.Errorf("remote call %q: %w", op, err)
}
