// Package testkit 提供调用协议测试用的探针、模拟时钟和故障注入工具。
package testkit

import (
	"testing"
	"time"
)

// Failure 是一次 Actor 失败的记录，由失败处理器投进探针。
type Failure struct {
	// ActorID 出错 Actor 的 ID
	ActorID string
	// Reason 失败原因
	Reason error
}

// Probe 是测试探针：处理函数和失败订阅者把观测值投进来，
// 测试代码在另一侧等待并断言。
type Probe struct {
	// t 测试上下文，用于报告失败
	t testing.TB
	// ch 观测值通道
	ch chan any
	// fail 失败处理函数
	fail func(string, ...any)
}

// NewProbe 创建测试探针。buffer 为通道缓冲区大小（默认 1024）。
func NewProbe(t testing.TB, buffer int) *Probe {
	if buffer <= 0 {
		buffer = 1024
	}
	p := &Probe{t: t, ch: make(chan any, buffer)}
	p.fail = t.Fatalf
	return p
}

// Chan 返回观测值通道，可直接用于 select。
func (p *Probe) Chan() <-chan any { return p.ch }

// Observe 投入一个观测值。通常在处理函数或订阅回调中调用。
func (p *Probe) Observe(v any) { p.ch <- v }

// FailureHandler 返回可注册到运行时失败订阅的处理器：
// 每次回调把 Failure 记录投进探针。
func (p *Probe) FailureHandler() func(actorID string, reason error) {
	return func(actorID string, reason error) {
		p.ch <- Failure{ActorID: actorID, Reason: reason}
	}
}

// Expect 等待并返回一个观测值，超时（默认 1 秒）则测试失败。
func (p *Probe) Expect(timeout time.Duration) any {
	p.t.Helper()
	if timeout <= 0 {
		timeout = time.Second
	}
	select {
	case v := <-p.ch:
		return v
	case <-time.After(timeout):
		p.fail("timeout waiting observation")
		return nil
	}
}

// ExpectMatch 等待直到出现满足谓词的观测值，不满足的被丢弃。
// 超时（默认 1 秒）则测试失败。
func (p *Probe) ExpectMatch(timeout time.Duration, pred func(any) bool) any {
	p.t.Helper()
	if timeout <= 0 {
		timeout = time.Second
	}
	deadline := time.After(timeout)
	for {
		select {
		case v := <-p.ch:
			if pred(v) {
				return v
			}
		case <-deadline:
			p.fail("timeout waiting matching observation")
			return nil
		}
	}
}

// ExpectNone 验证在指定时间（默认 50 毫秒）内没有任何观测值。
func (p *Probe) ExpectNone(timeout time.Duration) {
	p.t.Helper()
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case v := <-p.ch:
		p.fail("unexpected observation: %#v", v)
	case <-time.After(timeout):
	}
}
