package actor

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync/atomic"
	"time"
)

// Metrics 收集并暴露运行时指标：出站调用、分发、Abort、被调方
// 缺陷、块回调往返、分发延迟分布和运行时间。所有计数器都用原子
// 操作，并发访问无锁竞争。格式兼容 Prometheus，经 /metrics 暴露。
type Metrics struct {
	// startedAtUnix 运行时启动时间的 Unix 时间戳
	startedAtUnix atomic.Int64
	// callsOut 发出的调用总数（同步加异步）
	callsOut atomic.Uint64
	// dispatches 完成的分发总数
	dispatches atomic.Uint64
	// aborts 被重分类为调用方错误并吞掉的失败总数
	aborts atomic.Uint64
	// faults 因被调方缺陷出错的 Actor 总数
	faults atomic.Uint64
	// blockTrips 块回调往返总数
	blockTrips atomic.Uint64

	// latBuckets 分发延迟直方图的桶边界
	latBuckets []time.Duration
	// latCounts 每个延迟桶的计数
	latCounts []atomic.Uint64
	// latSumNS 延迟总和（纳秒）
	latSumNS atomic.Uint64
}

// NewMetrics 创建指标收集器。
// 延迟桶覆盖 10 微秒到 100 毫秒，适合进程内消息分发的量级。
func NewMetrics() *Metrics {
	b := []time.Duration{
		10 * time.Microsecond,
		50 * time.Microsecond,
		100 * time.Microsecond,
		500 * time.Microsecond,
		1 * time.Millisecond,
		2 * time.Millisecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		20 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
	}
	return &Metrics{
		latBuckets: b,
		latCounts:  make([]atomic.Uint64, len(b)+1),
	}
}

// MarkStart 记录运行时启动时间。仅首次调用生效。
func (m *Metrics) MarkStart() {
	if m.startedAtUnix.Load() == 0 {
		m.startedAtUnix.Store(time.Now().Unix())
	}
}

// IncOut 增加出站调用计数。
func (m *Metrics) IncOut() { m.callsOut.Add(1) }

// IncDispatch 增加分发计数。
func (m *Metrics) IncDispatch() { m.dispatches.Add(1) }

// IncAbort 增加 Abort 计数。
func (m *Metrics) IncAbort() { m.aborts.Add(1) }

// IncFault 增加被调方缺陷计数。
func (m *Metrics) IncFault() { m.faults.Add(1) }

// IncBlockTrip 增加块回调往返计数。
func (m *Metrics) IncBlockTrip() { m.blockTrips.Add(1) }

// ObserveLatency 记录一次分发延迟观测值。
func (m *Metrics) ObserveLatency(d time.Duration) {
	if d < 0 {
		return
	}
	m.latSumNS.Add(uint64(d.Nanoseconds()))
	i := sort.Search(len(m.latBuckets), func(i int) bool { return d <= m.latBuckets[i] })
	m.latCounts[i].Add(1)
}

// EnableMetrics 启用指标收集和 HTTP 暴露端点。
// 指标在指定地址（默认 :9090）的 /metrics 路径下以 Prometheus
// 格式暴露。应在产生流量之前调用。
func (s *System) EnableMetrics(addr string) error {
	if addr == "" {
		addr = ":9090"
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.metrics.MarkStart()
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) { s.writeMetrics(w) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}

// writeMetrics 把指标以 Prometheus 文本格式写入响应。
func (s *System) writeMetrics(w http.ResponseWriter) {
	if s.metrics == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	now := time.Now()
	var backlog int64
	for _, a := range s.registry.Snapshot() {
		backlog += a.Backlog()
	}

	_, _ = fmt.Fprintln(w, "# TYPE celluloid_calls_out_total counter")
	_, _ = fmt.Fprintln(w, "celluloid_calls_out_total", s.metrics.callsOut.Load())
	_, _ = fmt.Fprintln(w, "# TYPE celluloid_dispatches_total counter")
	_, _ = fmt.Fprintln(w, "celluloid_dispatches_total", s.metrics.dispatches.Load())
	_, _ = fmt.Fprintln(w, "# TYPE celluloid_aborts_total counter")
	_, _ = fmt.Fprintln(w, "celluloid_aborts_total", s.metrics.aborts.Load())
	_, _ = fmt.Fprintln(w, "# TYPE celluloid_actor_faults_total counter")
	_, _ = fmt.Fprintln(w, "celluloid_actor_faults_total", s.metrics.faults.Load())
	_, _ = fmt.Fprintln(w, "# TYPE celluloid_block_roundtrips_total counter")
	_, _ = fmt.Fprintln(w, "celluloid_block_roundtrips_total", s.metrics.blockTrips.Load())
	_, _ = fmt.Fprintln(w, "# TYPE celluloid_mailbox_backlog gauge")
	_, _ = fmt.Fprintln(w, "celluloid_mailbox_backlog", backlog)

	_, _ = fmt.Fprintln(w, "# TYPE celluloid_dispatch_latency_seconds histogram")
	var cum uint64
	for i, b := range s.metrics.latBuckets {
		cum += s.metrics.latCounts[i].Load()
		_, _ = fmt.Fprintln(w, "celluloid_dispatch_latency_seconds_bucket{le=\""+strconv.FormatFloat(b.Seconds(), 'f', -1, 64)+"\"}", cum)
	}
	cum += s.metrics.latCounts[len(s.metrics.latBuckets)].Load()
	_, _ = fmt.Fprintln(w, "celluloid_dispatch_latency_seconds_bucket{le=\"+Inf\"}", cum)
	_, _ = fmt.Fprintln(w, "celluloid_dispatch_latency_seconds_sum", float64(s.metrics.latSumNS.Load())/1e9)
	_, _ = fmt.Fprintln(w, "celluloid_dispatch_latency_seconds_count", cum)

	_, _ = fmt.Fprintln(w, "# TYPE celluloid_uptime_seconds gauge")
	started := s.metrics.startedAtUnix.Load()
	if started == 0 {
		started = now.Unix()
	}
	_, _ = fmt.Fprintln(w, "celluloid_uptime_seconds", now.Sub(time.Unix(started, 0)).Seconds())
}
