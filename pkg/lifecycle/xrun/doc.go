// Package xrun 提供基于 errgroup + context 的进程生命周期管理。
//
// xbcachectl serve 用它把 HTTP 指标端点、内存压力监视、配置热更新和定时报告
// 组织在同一个 Group 中：任一服务返回错误或收到终止信号时，
// Group 的 context 被取消，其余服务随之退出。
//
//	err := xrun.RunWithOptions(ctx, []xrun.Option{xrun.WithName("xbcachectl")},
//	    xrun.HTTPServer(srv, 5*time.Second),
//	    monitor.Run,
//	    xrun.Cron(reporter),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常退出
//	}
//
// # 错误处理
//
// Wait 返回第一个非 nil 错误。context.Canceled 的来源通过 causeCtx 判断：
// Group 被主动取消时返回显式 cause（如 *SignalError），没有 cause 时返回 nil；
// context.Canceled 来自服务内部时原样返回。
//
// # 设计决策
//
// 1. 无全局关闭钩子：关闭逻辑内聚在各服务的 ctx.Done() 处理中。
//
// 2. 信号处理只在 Run/RunWithOptions 中注册，直接使用 NewGroup 时需自行处理。
//
// 3. HTTPServer 通过 buffered channel 传递 Shutdown 的返回值，关闭超时不会被静默吞掉。
package xrun
