package actor

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/niamster/celluloid/config"
	"github.com/niamster/celluloid/mailbox"
	"github.com/niamster/celluloid/task"
)

// System 是 Actor 运行时：持有注册表、默认邮箱参数，以及可选的
// 出站限流和指标。所有调用都经由它路由。
type System struct {
	// registry 按 ID 和名字索引存活的 Actor
	registry *Registry
	// defaultMailbox 新 Actor 的默认邮箱参数
	defaultMailbox mailbox.Options
	// metrics 指标收集器，未启用时为 nil
	metrics *Metrics
	// limiter 出站调用限流器，未启用时为 nil
	limiter *TokenBucket

	failMu sync.Mutex
	// failSub 失败订阅者，Actor 因缺陷出错时逐个通知
	failSub []func(actorID string, reason error)
}

// NewSystem 构造一个使用默认参数的运行时。
func NewSystem() *System {
	return &System{registry: NewRegistry()}
}

// FromConfig 按配置构造运行时：日志级别、默认邮箱参数、
// 出站限流和指标导出。
func FromConfig(cfg *config.Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("system config: %w", err)
	}
	if cfg.Log.Level != "" {
		lvl, err := logging.LevelFromString(cfg.Log.Level)
		if err != nil {
			return nil, xerrors.Errorf("log level %q: %w", cfg.Log.Level, err)
		}
		logging.SetAllLoggers(lvl)
	}
	s := NewSystem()
	s.defaultMailbox = mailbox.Options{
		Capacity:       cfg.Actor.MailboxCapacity,
		UrgentCapacity: cfg.Actor.UrgentCapacity,
		MaxSegments:    cfg.Actor.MaxSegments,
		Policy:         cfg.Actor.BackpressurePolicy(),
	}
	if cfg.RateLimit.QPS > 0 {
		s.limiter = NewTokenBucket(cfg.RateLimit.QPS, cfg.RateLimit.Burst)
	}
	if cfg.Metrics.Enabled {
		s.metrics = NewMetrics()
		s.metrics.MarkStart()
		// 地址为空时只收集不监听
		if cfg.Metrics.Addr != "" {
			if err := s.EnableMetrics(cfg.Metrics.Addr); err != nil {
				return nil, xerrors.Errorf("metrics listener: %w", err)
			}
		}
	}
	return s, nil
}

// Spawn 构造、注册并启动一个 Actor。
func (s *System) Spawn(opts Options) *Actor {
	a := NewActor(s, opts)
	a.Start()
	return a
}

// FindByID 按 ID 查找存活的 Actor。
func (s *System) FindByID(id string) (*Actor, bool) { return s.registry.Get(id) }

// FindByName 按注册名查找存活的 Actor。
func (s *System) FindByName(name string) (*Actor, bool) { return s.registry.GetByName(name) }

// Registry 返回注册表。
func (s *System) Registry() *Registry { return s.registry }

// Metrics 返回指标收集器，未启用时为 nil。
func (s *System) Metrics() *Metrics { return s.metrics }

// EnableRateLimit 启用出站调用限流。必须在产生流量之前调用。
func (s *System) EnableRateLimit(qps, burst int64) *TokenBucket {
	s.limiter = NewTokenBucket(qps, burst)
	return s.limiter
}

// SubscribeFailures 注册失败订阅者：任何 Actor 因被调方缺陷出错时
// 以其 ID 和原因回调。回调在出错 Actor 的任务协程上执行，不得阻塞。
func (s *System) SubscribeFailures(fn func(actorID string, reason error)) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failSub = append(s.failSub, fn)
}

func (s *System) notifyFailure(actorID string, reason error) {
	s.failMu.Lock()
	subs := make([]func(string, error), len(s.failSub))
	copy(subs, s.failSub)
	s.failMu.Unlock()
	for _, fn := range subs {
		fn(actorID, reason)
	}
}

// Shutdown 停止所有注册的 Actor。
func (s *System) Shutdown() {
	for _, a := range s.registry.Snapshot() {
		a.Stop()
	}
}

// send 把一条调用消息投递到目标邮箱，途经限流和出站计数。
// 目标缺失或已死亡时返回 DeadActor 类错误，让调用方走清理路径。
func (s *System) send(target *Actor, op string, payload any) error {
	if target == nil {
		return ErrActorNotFound
	}
	if s.limiter != nil {
		s.limiter.Wait(1)
	}
	if s.metrics != nil {
		s.metrics.IncOut()
	}
	if !target.Alive() {
		return &DeadActorError{ActorID: target.id, Op: op}
	}
	err := target.mb.Push(mailbox.Envelope{Priority: mailbox.PriorityNormal, Payload: payload})
	if xerrors.Is(err, mailbox.ErrMailboxClosed) {
		return &DeadActorError{ActorID: target.id, Op: op}
	}
	return err
}

// ask 发起同步调用并挂起到响应到达。self 为发起方 Actor。
func (s *System) ask(self *Actor, target *Actor, op string, args []any, block *BlockProxy) (any, error) {
	return s.askFrom(self, self.mb, self.task, target, op, args, block)
}

// askFrom 是 ask 的底层入口，供游离调用方（Caller）复用：
// 构造同步调用、投递，投递失败时就地清理出恰好一个 DeadActor
// 响应，然后统一走等待路径取值。
func (s *System) askFrom(self *Actor, sender *mailbox.Mailbox, from *task.Task, target *Actor, op string, args []any, block *BlockProxy) (any, error) {
	c, err := NewSyncCall(from, sender, op, args, block)
	if err != nil {
		return nil, err
	}
	if err := s.send(target, op, c); err != nil {
		c.Cleanup(target)
	}
	return c.Value(self)
}

// tell 发起异步（即发即忘）调用。只有投递本身的失败会报告给
// 调用方；分发结果永远不会。
func (s *System) tell(from *task.Task, target *Actor, op string, args []any, block *BlockProxy) error {
	c, err := NewAsyncCall(from, op, args, block)
	if err != nil {
		return err
	}
	return s.send(target, op, c)
}
