package actor

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/niamster/celluloid/mailbox"
	"github.com/niamster/celluloid/task"
	"github.com/niamster/celluloid/testkit"
)

// waitUntil 轮询条件直到成立或超时。
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func spawnAdder(sys *System) *Actor {
	return sys.Spawn(Options{
		Name: "adder",
		Methods: map[string]Method{
			"add": {
				Do: func(_ *Context, args []any) (any, error) {
					return args[0].(int) + args[1].(int), nil
				},
				MinArgs: 2, MaxArgs: 2,
			},
			"sum": {
				Do: func(_ *Context, args []any) (any, error) {
					total := 0
					for _, v := range args {
						total += v.(int)
					}
					return total, nil
				},
				MinArgs: 1, MaxArgs: -1,
			},
		},
	})
}

func TestSyncCallReturnsValue(t *testing.T) {
	sys := NewSystem()
	a := spawnAdder(sys)
	defer a.Stop()

	c := sys.NewCaller()
	v, err := c.Ask(a, "add", 2, 3)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.(int) != 5 {
		t.Fatalf("value: %v", v)
	}
	// 可变参数操作
	v, err = c.Ask(a, "sum", 1, 2, 3, 4)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.(int) != 10 {
		t.Fatalf("value: %v", v)
	}
}

func TestMethodMissingAbortsWithoutFault(t *testing.T) {
	sys := NewSystem()
	p := testkit.NewProbe(t, 4)
	sys.SubscribeFailures(p.FailureHandler())
	a := spawnAdder(sys)
	defer a.Stop()

	c := sys.NewCaller()
	_, err := c.Ask(a, "multiply", 2, 3)
	if err == nil {
		t.Fatalf("expected error for unknown operation")
	}
	var mm *MethodMissingError
	if !errors.As(err, &mm) || mm.Op != "multiply" {
		t.Fatalf("expected MethodMissingError, got: %v", err)
	}
	// 解包后调用方拿到的是原始原因，不再带 Abort 包装
	if IsAbort(err) {
		t.Fatalf("caller should see the unwrapped cause, got abort wrapper: %v", err)
	}
	// 错在调用方：被调方继续存活，没有失败通知
	if !a.Alive() {
		t.Fatalf("callee should survive a caller error")
	}
	p.ExpectNone(50 * time.Millisecond)
	if v, err := c.Ask(a, "add", 1, 1); err != nil || v.(int) != 2 {
		t.Fatalf("callee should keep serving: %v %v", v, err)
	}
}

func TestArgumentCountAbortsWithoutFault(t *testing.T) {
	sys := NewSystem()
	a := spawnAdder(sys)
	defer a.Stop()

	c := sys.NewCaller()
	_, err := c.Ask(a, "add", 1)
	var ac *ArgumentCountError
	if !errors.As(err, &ac) {
		t.Fatalf("expected ArgumentCountError, got: %v", err)
	}
	if ac.Given != 1 || ac.Min != 2 || ac.Max != 2 {
		t.Fatalf("arity report: %+v", ac)
	}
	if !a.Alive() {
		t.Fatalf("callee should survive a caller error")
	}
	// 可变参数：至少 1 个
	if _, err := c.Ask(a, "sum"); err == nil {
		t.Fatalf("expected arity error for empty variadic call")
	}
}

func TestCalleeFaultPropagatesIdentity(t *testing.T) {
	sentinel := errors.New("ledger out of balance")
	sys := NewSystem()
	p := testkit.NewProbe(t, 4)
	sys.SubscribeFailures(p.FailureHandler())
	a := sys.Spawn(Options{
		Methods: map[string]Method{
			"post": {Do: func(*Context, []any) (any, error) { return nil, sentinel }},
		},
	})

	c := sys.NewCaller()
	_, err := c.Ask(a, "post")
	if err == nil {
		t.Fatalf("expected callee fault to propagate")
	}
	// 跨边界后 errors.Is 仍然命中同一个错误值
	if !errors.Is(err, sentinel) {
		t.Fatalf("identity lost across the hop: %v", err)
	}
	if !strings.Contains(err.Error(), `remote call "post"`) {
		t.Fatalf("missing boundary annotation: %v", err)
	}
	// 错在被调方：被调方任务一并出错
	f := p.Expect(time.Second).(testkit.Failure)
	if f.ActorID != a.ID() || !errors.Is(f.Reason, sentinel) {
		t.Fatalf("failure record: %+v", f)
	}
	waitUntil(t, time.Second, func() bool { return !a.Alive() })
}

func TestHandlerPanicFaultsCallee(t *testing.T) {
	sys := NewSystem()
	p := testkit.NewProbe(t, 4)
	sys.SubscribeFailures(p.FailureHandler())
	a := sys.Spawn(Options{
		Methods: map[string]Method{
			"boom": {Do: func(*Context, []any) (any, error) { panic("corrupted state") }},
		},
	})

	c := sys.NewCaller()
	_, err := c.Ask(a, "boom")
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected panic to surface as error: %v", err)
	}
	f := p.Expect(time.Second).(testkit.Failure)
	if f.ActorID != a.ID() {
		t.Fatalf("failure record: %+v", f)
	}
	waitUntil(t, time.Second, func() bool { return !a.Alive() })
}

func TestDeadActorResponse(t *testing.T) {
	sys := NewSystem()
	a := spawnAdder(sys)
	a.Stop()

	c := sys.NewCaller()
	_, err := c.Ask(a, "add", 1, 2)
	var dead *DeadActorError
	if !errors.As(err, &dead) {
		t.Fatalf("expected DeadActorError, got: %v", err)
	}
	if dead.ActorID != a.ID() || dead.Op != "add" {
		t.Fatalf("dead report: %+v", dead)
	}
}

func TestStopCleansQueuedSyncCalls(t *testing.T) {
	sys := NewSystem()
	started := make(chan struct{})
	release := make(chan struct{})
	a := sys.Spawn(Options{
		Methods: map[string]Method{
			"wait": {Do: func(*Context, []any) (any, error) {
				close(started)
				<-release
				return "done", nil
			}},
		},
	})

	first := make(chan error, 1)
	go func() {
		_, err := sys.NewCaller().Ask(a, "wait")
		first <- err
	}()
	<-started

	// 第二个调用排进积压
	second := make(chan error, 1)
	go func() {
		_, err := sys.NewCaller().Ask(a, "wait")
		second <- err
	}()
	waitUntil(t, time.Second, func() bool { return a.Backlog() >= 1 })

	go a.Stop()
	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-first; err != nil {
		t.Fatalf("in-flight call should complete: %v", err)
	}
	var dead *DeadActorError
	if err := <-second; !errors.As(err, &dead) {
		t.Fatalf("queued call should get DeadActor, got: %v", err)
	}
}

func TestAsyncCallNeverResponds(t *testing.T) {
	sys := NewSystem()
	p := testkit.NewProbe(t, 4)
	a := sys.Spawn(Options{
		Methods: map[string]Method{
			"record": {Do: func(_ *Context, args []any) (any, error) {
				p.Observe(args[0])
				return "ignored", nil
			}, MinArgs: 1, MaxArgs: 1},
		},
	})
	defer a.Stop()

	c := sys.NewCaller()
	if err := c.Tell(a, "record", "hello"); err != nil {
		t.Fatalf("tell: %v", err)
	}
	if got := p.Expect(time.Second); got.(string) != "hello" {
		t.Fatalf("observed: %v", got)
	}
}

func TestAsyncAbortSwallowed(t *testing.T) {
	sys := NewSystem()
	p := testkit.NewProbe(t, 4)
	sys.SubscribeFailures(p.FailureHandler())
	a := spawnAdder(sys)
	defer a.Stop()

	c := sys.NewCaller()
	if err := c.Tell(a, "no_such_op"); err != nil {
		t.Fatalf("tell: %v", err)
	}
	// 错在调用方且调用方没有等待：被调方存活，无失败通知
	p.ExpectNone(100 * time.Millisecond)
	if !a.Alive() {
		t.Fatalf("callee should survive an async caller error")
	}
}

func TestAsyncFaultFaultsCallee(t *testing.T) {
	sentinel := errors.New("disk gone")
	sys := NewSystem()
	p := testkit.NewProbe(t, 4)
	sys.SubscribeFailures(p.FailureHandler())
	a := sys.Spawn(Options{
		Methods: map[string]Method{
			"flush": {Do: func(*Context, []any) (any, error) { return nil, sentinel }},
		},
	})

	if err := sys.NewCaller().Tell(a, "flush"); err != nil {
		t.Fatalf("tell: %v", err)
	}
	f := p.Expect(time.Second).(testkit.Failure)
	if f.ActorID != a.ID() || !errors.Is(f.Reason, sentinel) {
		t.Fatalf("failure record: %+v", f)
	}
	waitUntil(t, time.Second, func() bool { return !a.Alive() })
}

func TestBlockRunsOnSenderSide(t *testing.T) {
	sys := NewSystem()
	a := sys.Spawn(Options{
		Methods: map[string]Method{
			"each": {Do: func(ctx *Context, args []any) (any, error) {
				if !ctx.HasBlock() {
					return nil, ErrNoBlock
				}
				var out []any
				for _, v := range args {
					r, err := ctx.Yield(v)
					if err != nil {
						return nil, err
					}
					out = append(out, r)
				}
				return out, nil
			}, MinArgs: 0, MaxArgs: -1},
		},
	})
	defer a.Stop()

	// 闭包捕获的状态属于发送方：回跳执行后无需同步即可见
	var seen []int
	c := sys.NewCaller()
	v, err := c.AskBlock(a, "each", SiteReceiver, func(args ...any) (any, error) {
		n := args[0].(int)
		seen = append(seen, n)
		return n * n, nil
	}, 1, 2, 3)
	if err != nil {
		t.Fatalf("ask with block: %v", err)
	}
	got := v.([]any)
	if len(got) != 3 || got[0].(int) != 1 || got[1].(int) != 4 || got[2].(int) != 9 {
		t.Fatalf("yield results: %v", got)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Fatalf("closure state: %v", seen)
	}
}

func TestSenderSiteBlockNotInjected(t *testing.T) {
	sys := NewSystem()
	a := sys.Spawn(Options{
		Methods: map[string]Method{
			"probe": {Do: func(ctx *Context, _ []any) (any, error) {
				if ctx.HasBlock() {
					return nil, errors.New("sender-site block leaked to receiver")
				}
				_, err := ctx.Yield()
				return errors.Is(err, ErrNoBlock), nil
			}},
		},
	})
	defer a.Stop()

	c := sys.NewCaller()
	v, err := c.AskBlock(a, "probe", SiteSender, func(...any) (any, error) { return nil, nil })
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.(bool) != true {
		t.Fatalf("yield without block should return ErrNoBlock")
	}
}

func TestBlockClosureErrorPassthrough(t *testing.T) {
	sentinel := errors.New("stop iteration")
	sys := NewSystem()
	a := sys.Spawn(Options{
		Methods: map[string]Method{
			"scan": {Do: func(ctx *Context, _ []any) (any, error) {
				_, err := ctx.Yield(1)
				// 闭包的错误按值原样传回，没有重分类，没有边界标记
				return err == sentinel, nil
			}},
		},
	})
	defer a.Stop()

	c := sys.NewCaller()
	v, err := c.AskBlock(a, "scan", SiteReceiver, func(...any) (any, error) { return nil, sentinel })
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.(bool) != true {
		t.Fatalf("closure error should pass through unchanged")
	}
}

func TestNestedBlockRoundTrip(t *testing.T) {
	sys := NewSystem()
	double := sys.Spawn(Options{
		Methods: map[string]Method{
			"double": {Do: func(_ *Context, args []any) (any, error) {
				return args[0].(int) * 2, nil
			}, MinArgs: 1, MaxArgs: 1},
		},
	})
	defer double.Stop()
	outer := sys.Spawn(Options{
		Methods: map[string]Method{
			"map": {Do: func(ctx *Context, args []any) (any, error) {
				return ctx.Yield(args[0])
			}, MinArgs: 1, MaxArgs: 1},
		},
	})
	defer outer.Stop()

	c := sys.NewCaller()
	// 闭包回跳到发送方执行，在那里再发起一次同步调用
	v, err := c.AskBlock(outer, "map", SiteReceiver, func(args ...any) (any, error) {
		return c.Ask(double, "double", args[0])
	}, 21)
	if err != nil {
		t.Fatalf("nested round trip: %v", err)
	}
	if v.(int) != 42 {
		t.Fatalf("value: %v", v)
	}
}

func TestReentrantCallServicedDuringWait(t *testing.T) {
	sys := NewSystem()
	var a, b *Actor
	a = sys.Spawn(Options{
		Name: "a",
		Methods: map[string]Method{
			"ping": {Do: func(ctx *Context, _ []any) (any, error) {
				return ctx.Ask(b, "pong")
			}},
			"echo": {Do: func(*Context, []any) (any, error) { return "echo", nil }},
		},
	})
	defer a.Stop()
	b = sys.Spawn(Options{
		Name: "b",
		Methods: map[string]Method{
			// 回头调用 a：a 正阻塞等待本次 pong 的响应，
			// 必须在挂起期间就地服务这次重入调用
			"pong": {Do: func(ctx *Context, _ []any) (any, error) {
				v, err := ctx.Ask(a, "echo")
				if err != nil {
					return nil, err
				}
				return "pong:" + v.(string), nil
			}},
		},
	})
	defer b.Stop()

	done := make(chan struct{})
	var v any
	var err error
	go func() {
		v, err = sys.NewCaller().Ask(a, "ping")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("re-entrant call deadlocked")
	}
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if v.(string) != "pong:echo" {
		t.Fatalf("value: %v", v)
	}
}

func TestExclusiveDefersReentrantCalls(t *testing.T) {
	sys := NewSystem()
	p := testkit.NewProbe(t, 8)
	slow := sys.Spawn(Options{
		Methods: map[string]Method{
			"slow": {Do: func(*Context, []any) (any, error) {
				time.Sleep(150 * time.Millisecond)
				return nil, nil
			}},
		},
	})
	defer slow.Stop()
	a := sys.Spawn(Options{
		Exclusive: true,
		Methods: map[string]Method{
			"first": {Do: func(ctx *Context, _ []any) (any, error) {
				if _, err := ctx.Ask(slow, "slow"); err != nil {
					return nil, err
				}
				p.Observe("first-done")
				return nil, nil
			}},
			"note": {Do: func(*Context, []any) (any, error) {
				p.Observe("note")
				return nil, nil
			}},
		},
	})
	defer a.Stop()

	go func() { _, _ = sys.NewCaller().Ask(a, "first") }()
	time.Sleep(30 * time.Millisecond)
	go func() { _, _ = sys.NewCaller().Ask(a, "note") }()

	// 独占任务挂起期间不服务重入调用：note 必须排在 first 完成之后
	if got := p.Expect(2 * time.Second); got.(string) != "first-done" {
		t.Fatalf("exclusive task serviced a re-entrant call while suspended: %v", got)
	}
	if got := p.Expect(2 * time.Second); got.(string) != "note" {
		t.Fatalf("queued call lost: %v", got)
	}
}

func TestExclusiveTaskCannotPassBlock(t *testing.T) {
	sys := NewSystem()
	b := spawnAdder(sys)
	defer b.Stop()
	a := sys.Spawn(Options{
		Exclusive: true,
		Methods: map[string]Method{
			"try": {Do: func(ctx *Context, _ []any) (any, error) {
				_, err := ctx.AskBlock(b, "add", SiteReceiver, func(...any) (any, error) { return nil, nil }, 1, 2)
				return errors.Is(err, ErrExclusiveBlock), nil
			}},
		},
	})
	defer a.Stop()

	v, err := sys.NewCaller().Ask(a, "try")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.(bool) != true {
		t.Fatalf("block from exclusive task should fail at construction")
	}
}

func TestChainInheritedAcrossSyncCalls(t *testing.T) {
	sys := NewSystem()
	p := testkit.NewProbe(t, 8)
	var a, b *Actor
	b = sys.Spawn(Options{
		Methods: map[string]Method{
			"inner": {Do: func(ctx *Context, _ []any) (any, error) {
				p.Observe(ctx.Chain())
				return nil, nil
			}},
		},
	})
	defer b.Stop()
	a = sys.Spawn(Options{
		Methods: map[string]Method{
			"outer": {Do: func(ctx *Context, _ []any) (any, error) {
				p.Observe(ctx.Chain())
				if _, err := ctx.Ask(b, "inner"); err != nil {
					return nil, err
				}
				// 重入分发退出后外层调用链保持不变
				p.Observe(ctx.Chain())
				return nil, nil
			}},
		},
	})
	defer a.Stop()

	if _, err := sys.NewCaller().Ask(a, "outer"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	first := p.Expect(time.Second).(uuid.UUID)
	second := p.Expect(time.Second).(uuid.UUID)
	third := p.Expect(time.Second).(uuid.UUID)
	if first == uuid.Nil {
		t.Fatalf("chain must be set during dispatch")
	}
	if second != first || third != first {
		t.Fatalf("chain not inherited: %v %v %v", first, second, third)
	}
}

func TestDispatchClearsChainSlot(t *testing.T) {
	// 单线程直接分发：绕过任务协程，验证分发前后槽位的状态
	a := NewActor(nil, Options{
		Methods: map[string]Method{
			"ping": {Do: func(ctx *Context, _ []any) (any, error) {
				if ctx.Chain() == uuid.Nil {
					return nil, errors.New("chain must be set during dispatch")
				}
				return "pong", nil
			}},
		},
	})
	sender := mailbox.New(mailbox.Options{})
	from := task.New("caller", false)

	c, err := NewSyncCall(from, sender, "ping", nil, nil)
	if err != nil {
		t.Fatalf("new call: %v", err)
	}
	if err := c.Dispatch(a); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if a.task.Chain() != uuid.Nil {
		t.Fatalf("chain slot not cleared after dispatch")
	}
	// 分发结果与直接调用一致，响应已送达发送方邮箱
	msg, ok := sender.TryReceive(func(any) bool { return true })
	if !ok {
		t.Fatalf("response not delivered")
	}
	v, err := msg.(Response).Value()
	if err != nil || v.(string) != "pong" {
		t.Fatalf("response value: %v %v", v, err)
	}
}

func TestAsyncCallGetsFreshChain(t *testing.T) {
	sys := NewSystem()
	p := testkit.NewProbe(t, 4)
	a := sys.Spawn(Options{
		Methods: map[string]Method{
			"mark": {Do: func(ctx *Context, _ []any) (any, error) {
				p.Observe(ctx.Chain())
				return nil, nil
			}},
		},
	})
	defer a.Stop()

	c := sys.NewCaller()
	if err := c.Tell(a, "mark"); err != nil {
		t.Fatalf("tell: %v", err)
	}
	if err := c.Tell(a, "mark"); err != nil {
		t.Fatalf("tell: %v", err)
	}
	first := p.Expect(time.Second).(uuid.UUID)
	second := p.Expect(time.Second).(uuid.UUID)
	if first == uuid.Nil || second == uuid.Nil {
		t.Fatalf("chain must be set during dispatch")
	}
	if first == second {
		t.Fatalf("async calls must start fresh chains")
	}
}

func TestSystemEventDeliveredDuringWait(t *testing.T) {
	sys := NewSystem()
	p := testkit.NewProbe(t, 4)
	entered := make(chan struct{})
	release := make(chan struct{})
	slow := sys.Spawn(Options{
		Methods: map[string]Method{
			"slow": {Do: func(*Context, []any) (any, error) {
				close(entered)
				<-release
				return nil, nil
			}},
		},
	})
	defer slow.Stop()
	a := sys.Spawn(Options{
		OnSystemEvent: func(_ *Context, ev SystemEvent) { p.Observe(ev.Kind) },
		Methods: map[string]Method{
			"work": {Do: func(ctx *Context, _ []any) (any, error) {
				return ctx.Ask(slow, "slow")
			}},
		},
	})
	defer a.Stop()

	go func() { _, _ = sys.NewCaller().Ask(a, "work") }()
	<-entered

	if err := a.NotifySystem(SystemEvent{Kind: "drain"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	// 事件在挂起等待期间就被送达，不等 work 完成
	if got := p.Expect(time.Second); got.(string) != "drain" {
		t.Fatalf("event: %v", got)
	}
	close(release)
}

func TestMethodMissingUsesDescribe(t *testing.T) {
	sys := NewSystem()
	a := sys.Spawn(Options{
		Describe: func() string { return "#<Ledger 42 entries>" },
		Methods:  map[string]Method{},
	})
	defer a.Stop()

	_, err := sys.NewCaller().Ask(a, "post")
	if err == nil || !strings.Contains(err.Error(), "#<Ledger 42 entries>") {
		t.Fatalf("describe not used: %v", err)
	}

	// Describe panic 时退回合成描述
	b := sys.Spawn(Options{
		Describe: func() string { panic("inconsistent") },
		Methods:  map[string]Method{},
	})
	defer b.Stop()
	_, err = sys.NewCaller().Ask(b, "post")
	if err == nil || !strings.Contains(err.Error(), "#<Actor "+b.ID()) {
		t.Fatalf("fallback description not used: %v", err)
	}
}

func TestRegistryLookupAndUnregister(t *testing.T) {
	sys := NewSystem()
	a := spawnAdder(sys)

	if got, ok := sys.FindByName("adder"); !ok || got != a {
		t.Fatalf("find by name failed")
	}
	if got, ok := sys.FindByID(a.ID()); !ok || got != a {
		t.Fatalf("find by id failed")
	}
	a.Stop()
	if _, ok := sys.FindByID(a.ID()); ok {
		t.Fatalf("stopped actor should be unregistered")
	}
	if _, ok := sys.FindByName("adder"); ok {
		t.Fatalf("stopped actor should leave the name index")
	}
}

func TestCallerAfterClose(t *testing.T) {
	sys := NewSystem()
	a := spawnAdder(sys)
	defer a.Stop()

	c := sys.NewCaller()
	c.Close()
	if _, err := c.Ask(a, "add", 1, 2); err == nil {
		t.Fatalf("ask on a closed caller should fail")
	}
}

func TestTokenBucketWithFakeClock(t *testing.T) {
	clk := testkit.NewFakeClock(time.Unix(1000, 0))
	tb := NewTokenBucket(10, 10)
	tb.SetClock(clk.NowFunc())

	if !tb.Allow(10) {
		t.Fatalf("burst should be available")
	}
	if tb.Allow(1) {
		t.Fatalf("bucket should be empty")
	}
	clk.Advance(500 * time.Millisecond)
	if !tb.Allow(5) {
		t.Fatalf("half the rate should have refilled")
	}
	if tb.Allow(1) {
		t.Fatalf("bucket should be empty again")
	}
	clk.Advance(10 * time.Second)
	if !tb.Allow(10) {
		t.Fatalf("refill should cap at burst")
	}
	tb.SetRate(0)
	if !tb.Allow(10) {
		t.Fatalf("rate 0 disables limiting")
	}
}

func TestMetricsExposition(t *testing.T) {
	sys := NewSystem()
	sys.metrics = NewMetrics()
	sys.metrics.MarkStart()
	a := spawnAdder(sys)
	defer a.Stop()

	c := sys.NewCaller()
	if _, err := c.Ask(a, "add", 1, 2); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if _, err := c.Ask(a, "missing"); err == nil {
		t.Fatalf("expected abort")
	}

	rec := httptest.NewRecorder()
	sys.writeMetrics(rec)
	body := rec.Body.String()
	for _, want := range []string{
		"celluloid_calls_out_total 2",
		"celluloid_dispatches_total 2",
		"celluloid_aborts_total 1",
		"celluloid_dispatch_latency_seconds_count 2",
		"celluloid_uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q in:\n%s", want, body)
		}
	}
}

func TestShutdownStopsAllActors(t *testing.T) {
	sys := NewSystem()
	actors := make([]*Actor, 0, 3)
	for i := 0; i < 3; i++ {
		actors = append(actors, sys.Spawn(Options{
			Name: fmt.Sprintf("w%d", i),
			Methods: map[string]Method{
				"noop": {Do: func(*Context, []any) (any, error) { return nil, nil }},
			},
		}))
	}
	sys.Shutdown()
	for _, a := range actors {
		if a.Alive() {
			t.Fatalf("actor %s still alive after shutdown", a.ID())
		}
	}
	if len(sys.Registry().Snapshot()) != 0 {
		t.Fatalf("registry should be empty after shutdown")
	}
}
