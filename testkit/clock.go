package testkit

import (
	"sync"
	"time"
)

// FakeClock 是可控的模拟时钟。测试代码显式推进时间，不做真实
// 等待。NowFunc 可以直接接到限流器等接受时钟注入的组件上。
type FakeClock struct {
	// mu 保护并发访问
	mu sync.Mutex
	// now 当前模拟时间
	now time.Time
	// tmrs 待触发的定时器列表
	tmrs []*fakeTimer
}

// fakeTimer 是一个模拟定时器。
type fakeTimer struct {
	// at 触发时间
	at time.Time
	// ch 触发时发送当前时间的通道
	ch chan time.Time
}

// NewFakeClock 创建模拟时钟。start 为零值时使用 Unix 纪元。
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	return &FakeClock{now: start}
}

// Now 返回当前模拟时间。
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc 返回读取模拟时间的函数，用于注入到被测组件。
func (c *FakeClock) NowFunc() func() time.Time { return c.Now }

// After 返回一个通道，在模拟时间推进过指定时长后收到当前时间。
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.tmrs = append(c.tmrs, &fakeTimer{at: c.now.Add(d), ch: ch})
	return ch
}

// Advance 推进模拟时间并触发所有到期的定时器。
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var left, fire []*fakeTimer
	for _, t := range c.tmrs {
		if !t.at.After(now) {
			fire = append(fire, t)
		} else {
			left = append(left, t)
		}
	}
	c.tmrs = left
	c.mu.Unlock()
	for _, t := range fire {
		select {
		case t.ch <- now:
		default:
		}
		close(t.ch)
	}
}
