package actor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/niamster/celluloid/mailbox"
	"github.com/niamster/celluloid/task"
)

var log = logging.Logger("actor")

// 生命周期状态。
const (
	stateNew uint32 = iota
	stateRunning
	stateStopping
	stateStopped
)

// SystemEvent 是运行时级别的带外通知（关闭、链接事件等）。
// 它插队于普通调用之前，并且在同步调用挂起期间也会被送达。
type SystemEvent struct {
	// Kind 事件类别
	Kind string
	// Payload 事件附带数据
	Payload any
}

// Options 配置一个 Actor。
type Options struct {
	// ID 唯一标识，留空时自动生成
	ID string
	// Name 注册名，可选，同名注册会顶替旧条目
	Name string
	// Methods 能力表：操作名到处理函数的映射
	Methods map[string]Method
	// Exclusive 独占模式：挂起等待期间不服务任何重入消息
	Exclusive bool
	// Describe 自定义目标描述，用于 MethodMissing 等错误文案
	Describe func() string
	// OnSystemEvent 系统事件处理器，可选
	OnSystemEvent func(*Context, SystemEvent)
	// Mailbox 邮箱参数，零值时使用运行时默认
	Mailbox mailbox.Options
}

// Actor 是一个拥有独立任务和邮箱的执行单元。
// 所有送达的调用在其任务上顺序分发；任务挂起等待时仍然按
// 选择性接收的规则服务重入消息。
type Actor struct {
	// id 唯一标识
	id string
	// name 注册名，可为空
	name string
	// system 所属运行时，可为 nil（游离 Actor）
	system *System
	// mb 邮箱
	mb *mailbox.Mailbox
	// task 任务句柄，持有调用链关联 ID 槽位
	task *task.Task
	// methods 能力表
	methods map[string]Method
	// describe 自定义目标描述
	describe func() string
	// onSystem 系统事件处理器
	onSystem func(*Context, SystemEvent)
	// state 生命周期状态
	state atomic.Uint32
	// started 任务协程是否已经启动
	started atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	// done 任务协程退出时关闭
	done chan struct{}
}

// NewActor 构造一个 Actor，不启动。
// sys 可为 nil：游离 Actor 不注册也无法发起后续调用。
func NewActor(sys *System, opts Options) *Actor {
	id := opts.ID
	if id == "" {
		id = NewActorID()
	}
	mbOpts := opts.Mailbox
	if mbOpts == (mailbox.Options{}) && sys != nil {
		mbOpts = sys.defaultMailbox
	}
	methods := opts.Methods
	if methods == nil {
		methods = map[string]Method{}
	}
	return &Actor{
		id:       id,
		name:     opts.Name,
		system:   sys,
		mb:       mailbox.New(mbOpts),
		task:     task.New(id, opts.Exclusive),
		methods:  methods,
		describe: opts.Describe,
		onSystem: opts.OnSystemEvent,
		done:     make(chan struct{}),
	}
}

// ID 返回唯一标识。
func (a *Actor) ID() string { return a.id }

// Name 返回注册名。
func (a *Actor) Name() string { return a.name }

// Alive 报告 Actor 是否还在接收调用。
func (a *Actor) Alive() bool { return a.state.Load() == stateRunning }

// Backlog 返回邮箱当前积压的消息数。
func (a *Actor) Backlog() int64 { return a.mb.Len() }

// Start 启动任务协程并在运行时注册。幂等。
func (a *Actor) Start() {
	a.startOnce.Do(func() {
		a.state.Store(stateRunning)
		a.started.Store(true)
		if a.system != nil {
			a.system.registry.Register(a)
		}
		go a.run()
	})
}

// Stop 停止 Actor：关闭邮箱、等任务协程退出、给积压中的同步调用
// 逐个回送 DeadActor 响应，最后从运行时注销。幂等，可并发调用。
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		a.state.CompareAndSwap(stateRunning, stateStopping)
		a.mb.Close()
		if a.started.Load() {
			<-a.done
		}
		for _, msg := range a.mb.Drain() {
			if sc, ok := msg.(*SyncCall); ok {
				sc.Cleanup(a)
			}
		}
		a.state.Store(stateStopped)
		if a.system != nil {
			a.system.registry.Unregister(a.id)
		}
		log.Debugw("actor stopped", "id", a.id, "name", a.name)
	})
}

// NotifySystem 向 Actor 投递一条系统事件（紧急优先级）。
func (a *Actor) NotifySystem(ev SystemEvent) error {
	return a.mb.Push(mailbox.Envelope{Priority: mailbox.PriorityUrgent, Payload: ev})
}

// run 是任务协程主循环：顺序取出消息并分发，直到邮箱关闭。
func (a *Actor) run() {
	defer close(a.done)
	for {
		msg, err := a.mb.Receive(acceptAll)
		if err != nil {
			return
		}
		if a.state.Load() != stateRunning {
			// 停止中：同步调用回送 DeadActor，其余丢弃
			if sc, ok := msg.(*SyncCall); ok {
				sc.Cleanup(a)
			}
			continue
		}
		if !a.handle(msg) {
			return
		}
	}
}

func acceptAll(any) bool { return true }

// handle 分发一条消息。返回 false 表示任务已出错，主循环退出。
//
// 处理函数内未被 invoke 捕获的失败（以及分发器自身的 panic）把
// 整个 Actor 标记为出错：错在被调方时正确性意味着让被调方任务
// 一并出错，而不是假装无事发生。
func (a *Actor) handle(msg any) (cont bool) {
	cont = true
	defer func() {
		if r := recover(); r != nil {
			a.fail(xerrors.Errorf("dispatch panicked: %v", r))
			cont = false
		}
	}()
	switch m := msg.(type) {
	case SystemEvent:
		a.handleSystemEvent(m)
	case Response:
		// 迟到的响应：等待者早已被恢复或清理，只能丢弃
		if err := m.Dispatch(a); err != nil {
			log.Debugw("dropping stale response", "actor", a.id, "err", err)
		}
	case dispatchable:
		start := time.Now()
		err := m.Dispatch(a)
		if a.system != nil && a.system.metrics != nil {
			a.system.metrics.IncDispatch()
			a.system.metrics.ObserveLatency(time.Since(start))
		}
		if err != nil {
			a.fail(err)
			return false
		}
	default:
		log.Warnw("unknown message dropped", "actor", a.id, "type", fmt.Sprintf("%T", msg))
	}
	return cont
}

// fail 让 Actor 因被调方缺陷出错：记录诊断链、通知失败订阅者、
// 关闭邮箱并在后台完成清理。
func (a *Actor) fail(err error) {
	log.Errorw("actor faulted", "id", a.id, "name", a.name, "err", fmt.Sprintf("%+v", err))
	a.state.CompareAndSwap(stateRunning, stateStopping)
	if a.system != nil {
		if a.system.metrics != nil {
			a.system.metrics.IncFault()
		}
		a.system.notifyFailure(a.id, err)
	}
	a.mb.Close()
	go a.Stop()
}

// handleSystemEvent 执行系统事件处理器。处理器的 panic 不算
// 被调方缺陷，捕获后记录即可。
func (a *Actor) handleSystemEvent(ev SystemEvent) {
	if a.onSystem == nil {
		log.Debugw("system event ignored", "actor", a.id, "kind", ev.Kind)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("system event handler panicked", "actor", a.id, "kind", ev.Kind, "panic", r)
		}
	}()
	a.onSystem(a.newContext(), ev)
}

// newContext 为一次分发构造执行上下文。
func (a *Actor) newContext() *Context {
	return &Context{system: a.system, self: a}
}
