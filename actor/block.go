package actor

import (
	"golang.org/x/xerrors"

	"github.com/niamster/celluloid/mailbox"
	"github.com/niamster/celluloid/task"
)

// Site 指定随调用传入的块（闭包）在边界的哪一侧执行。
type Site uint8

const (
	// SiteSender 闭包在发送方任务上执行。
	// 被调方的处理函数收不到任何块，发送方一侧的执行由
	// 代理自己独立完成（BlockProxy.Invoke）。
	SiteSender Site = iota
	// SiteReceiver 闭包从被调方调用，但实际回跳到发送方执行：
	// 闭包捕获的状态属于发送方任务，必须在那一侧运行。
	SiteReceiver
)

// BlockFunc 是调用方随调用提供的回调闭包。
type BlockFunc func(args ...any) (any, error)

// BlockProxy 包装调用方提供的闭包并携带执行站点标志。
// 它跨越 Actor 边界传递，但闭包捕获的状态始终属于发送方。
type BlockProxy struct {
	// fn 被包装的闭包
	fn BlockFunc
	// site 执行站点
	site Site
	// sender 闭包属主（发送方）的邮箱，块调用发往这里
	sender *mailbox.Mailbox
}

// NewBlockProxy 包装一个闭包。
// sender 为闭包属主的邮箱（站点为 receiver 时块调用发往这里）。
func NewBlockProxy(fn BlockFunc, site Site, sender *mailbox.Mailbox) *BlockProxy {
	return &BlockProxy{fn: fn, site: site, sender: sender}
}

// Site 返回块的执行站点。
func (p *BlockProxy) Site() Site { return p.site }

// Invoke 在发送方本地执行闭包。
// 站点为 sender 的块由代理的属主自己调用，不经过任何边界。
func (p *BlockProxy) Invoke(args ...any) (any, error) { return p.fn(args...) }

// roundTrip 返回注入给被调方处理函数的可调用对象。
// 调用它会构造一个 BlockCall 发往发送方邮箱，然后协作式地挂起
// 被调方任务，直到匹配的 BlockResponse 被分发——完整的同步回调
// 往返，两侧都不会阻塞底层线程。嵌套（递归）往返同样成立，
// 因为两侧跑的是同一套等待循环。
func (p *BlockProxy) roundTrip(callee *Actor) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		w := callee.task.NewWaiter()
		bc := &BlockCall{proxy: p, args: args, waiter: w, replyTo: callee.mb}
		if err := p.sender.Push(mailbox.Envelope{Priority: mailbox.PriorityUrgent, Payload: bc}); err != nil {
			return nil, xerrors.Errorf("yield to sender: %w", err)
		}
		if callee.system != nil && callee.system.metrics != nil {
			callee.system.metrics.IncBlockTrip()
		}
		resp, err := waitResponse(callee.mb, w, callee)
		if err != nil {
			return nil, err
		}
		return resp.Value()
	}
}

// BlockCall 是对代理闭包的一次调用请求：调用实参加上
// 请求方等待任务句柄的回引。
type BlockCall struct {
	// proxy 目标块代理
	proxy *BlockProxy
	// args 闭包调用实参
	args []any
	// waiter 请求方（被调方任务）的等待任务句柄
	waiter *task.Waiter
	// replyTo 块响应送回的邮箱
	replyTo *mailbox.Mailbox
}

// Args 返回闭包调用实参。
func (bc *BlockCall) Args() []any { return bc.args }

// Dispatch 在闭包属主一侧就地执行闭包，并把 BlockResponse
// 送回请求方邮箱。发送方同步调用的等待循环会把 BlockCall 识别为
// 可分发消息并在此入口内联执行——这让阻塞中的调用方能够服务
// 来自被调方的重入回调请求而不会死锁。
func (bc *BlockCall) Dispatch(*Actor) error {
	v, err := bc.proxy.fn(bc.args...)
	perr := bc.replyTo.Push(mailbox.Envelope{
		Priority: mailbox.PriorityUrgent,
		Payload:  &BlockResponse{waiter: bc.waiter, value: v, err: err},
	})
	if perr != nil {
		return xerrors.Errorf("deliver block response: %w", perr)
	}
	return nil
}
