package testkit

import (
	"math/rand"
	"time"
)

// Chaos 在测试中给处理函数注入随机故障：按概率丢弃执行，或在
// 执行前加随机延迟。用于检验调用方在慢被调方和丢失响应下的行为。
type Chaos struct {
	// DropRate 执行被丢弃的概率（0.0-1.0）
	DropRate float64
	// MaxDelay 执行前的最大随机延迟
	MaxDelay time.Duration
	// Rand 随机数生成器，缺省用时间种子
	Rand *rand.Rand
}

// Run 按配置执行 fn：可能直接丢弃（返回 false），可能先延迟再
// 执行。返回 fn 是否被执行。
func (c Chaos) Run(fn func()) bool {
	r := c.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.DropRate > 0 && r.Float64() < c.DropRate {
		return false
	}
	if c.MaxDelay > 0 {
		time.Sleep(time.Duration(r.Int63n(int64(c.MaxDelay))))
	}
	fn()
	return true
}
