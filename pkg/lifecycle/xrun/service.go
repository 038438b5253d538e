package xrun

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
)

// HTTPServerInterface 定义 HTTP 服务器接口，*http.Server 天然满足。
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 将 server 包装为支持优雅关闭的服务函数。
// shutdownTimeout 非正时 Shutdown 等待所有在途请求完成。
func HTTPServer(server HTTPServerInterface, shutdownTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}
		shutdownErrCh := make(chan error, 1)
		// listenDone 通知关闭 goroutine：ListenAndServe 已返回，无需 Shutdown。
		listenDone := make(chan struct{})

		go func() {
			select {
			case <-ctx.Done():
				shutdownCtx := context.WithoutCancel(ctx)
				if shutdownTimeout > 0 {
					var cancel context.CancelFunc
					shutdownCtx, cancel = context.WithTimeout(shutdownCtx, shutdownTimeout)
					defer cancel()
				}
				shutdownErrCh <- server.Shutdown(shutdownCtx)
			case <-listenDone:
			}
		}()

		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			// 设计决策: 三路 select 区分关闭来源：
			// ctx 驱动的关闭已完成或进行中时返回 Shutdown 的结果，
			// 外部直接 Shutdown 时 ctx 未取消，返回 nil。
			select {
			case shutdownErr := <-shutdownErrCh:
				return shutdownErr
			case <-ctx.Done():
				return <-shutdownErrCh
			default:
				close(listenDone)
				return nil
			}
		}
		close(listenDone)
		return err
	}
}

// Cron 将调度器包装为服务函数：启动 c，ctx 取消后停止调度并等待运行中的任务结束。
func Cron(c *cron.Cron) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if c == nil {
			return ErrNilCron
		}
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		return ctx.Err()
	}
}
