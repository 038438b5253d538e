// xbcachectl 运行有界缓存服务，或离线比较淘汰策略。
//
// 用法:
//
//	xbcachectl <命令> [命令参数]
//
// 命令:
//
//	serve          按配置文件创建具名缓存，暴露 HTTP 读写接口与 Prometheus 指标，
//	               并在内存压力超过阈值时执行激进清理
//	simulate       对配置中的每个缓存回放 Zipf 负载并输出统计
//	compare        用同一负载回放 xbcache、lru、ristretto 并按命中率排序
//
// 环境变量（也可写入当前目录的 .env 文件）:
//
//	XBCACHE_CONFIG        配置文件路径，等价于 serve --config
//	XBCACHE_LOG_LEVEL     覆盖配置文件中的日志级别
//	XBCACHE_METRICS_ADDR  HTTP 监听地址，等价于 serve --metrics-addr
//
// 退出码:
//
//	0: 成功（serve 收到终止信号正常退出也视为成功）
//	1: 运行失败
//	2: 参数错误
//
// 示例:
//
//	xbcachectl serve --config /etc/xbcache.yaml --metrics-addr :9464
//	xbcachectl simulate --config /etc/xbcache.yaml --ops 200000
//	xbcachectl compare --keys 50000 --ops 500000 --entries 1000 --skew 1.05
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags "-X main.Version=..." 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// usageError 表示参数错误，映射到退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func createApp(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "xbcachectl",
		Usage:   "有界缓存服务与淘汰策略比较工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:  stdout,
		Commands: []*cli.Command{
			createServeCommand(),
			createSimulateCommand(stdout),
			createCompareCommand(stdout),
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，由 run 统一映射退出码。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

// run 执行命令并返回退出码。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// .env 不存在是常态
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "加载 .env 失败: %v\n", err)
		return 1
	}

	app := createApp(stdout)
	app.ErrWriter = stderr
	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// setupSignalHandler 第一次信号取消 ctx，第二次信号强制退出。
// serve 通过 xrun 自行处理信号，这里只负责 simulate/compare 的中断。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
