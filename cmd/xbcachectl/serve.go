package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xcachekit/pkg/config/xconf"
	"github.com/omeyang/xcachekit/pkg/lifecycle/xrun"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
	"github.com/omeyang/xcachekit/pkg/storage/xbcache"
	"github.com/omeyang/xcachekit/pkg/util/xpressure"
)

const (
	defaultAddr     = ":9464"
	defaultReport   = "@every 1m"
	shutdownTimeout = 5 * time.Second
)

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "运行缓存服务",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（yaml/json），为空时使用默认配置",
				Sources: cli.EnvVars("XBCACHE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "HTTP 监听地址（指标与缓存接口）",
				Value:   defaultAddr,
				Sources: cli.EnvVars("XBCACHE_METRICS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "覆盖配置文件中的日志级别",
				Sources: cli.EnvVars("XBCACHE_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "统计报告的 cron 表达式，空字符串禁用",
				Value: defaultReport,
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "监视配置文件并热更新阈值与日志级别",
				Value: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := serveOptions{
				configPath: cmd.String("config"),
				addr:       cmd.String("metrics-addr"),
				logLevel:   cmd.String("log-level"),
				report:     cmd.String("report"),
				watch:      cmd.Bool("watch"),
			}
			return runServe(ctx, opts, cmd.Root().ErrWriter)
		},
	}
}

type serveOptions struct {
	configPath string
	addr       string
	logLevel   string
	report     string
	watch      bool
}

// service 持有 serve 的全部组件。
type service struct {
	logger   xlog.LoggerWithLevel
	closeLog func() error
	// levelPinned 为 true 时日志级别来自命令行，热更新不覆盖。
	levelPinned bool

	caches   map[string]*valueCache
	names    []string
	monitor  *xpressure.Monitor
	registry *prometheus.Registry
	server   *http.Server
	reporter *cron.Cron
	watcher  *xconf.Watcher

	unregisterGauges func() error
}

func runServe(ctx context.Context, opts serveOptions, logOut io.Writer) error {
	svc, err := newService(opts, logOut)
	if err != nil {
		return err
	}
	defer func() { _ = svc.close() }()

	// 未显式注入日志器的组件使用全局 Logger
	prev := xlog.Default()
	xlog.SetDefault(svc.logger)
	defer xlog.SetDefault(prev)

	svc.logger.Info(ctx, "xbcachectl serving",
		slog.String("addr", opts.addr), slog.Int("caches", len(svc.names)))
	err = xrun.RunWithOptions(ctx,
		[]xrun.Option{xrun.WithName("xbcachectl"), xrun.WithLogger(svc.logger)},
		svc.services()...)
	if errors.Is(err, xrun.ErrSignal) {
		return nil
	}
	return err
}

func newService(opts serveOptions, logOut io.Writer) (_ *service, err error) {
	file := xconf.DefaultFile()
	if opts.configPath != "" {
		if file, err = xconf.Load(opts.configPath); err != nil {
			return nil, err
		}
	}

	logger, closeLog, err := buildLogger(file.Log, opts.logLevel, logOut)
	if err != nil {
		return nil, usagef("日志配置无效: %v", err)
	}
	s := &service{
		logger:      logger,
		closeLog:    closeLog,
		levelPinned: opts.logLevel != "",
		caches:      make(map[string]*valueCache),
		names:       file.CacheNames(),
	}
	defer func() {
		if err != nil {
			_ = s.close()
		}
	}()

	if err = s.initCaches(file); err != nil {
		return nil, err
	}
	if err = s.initMonitor(file.Pressure); err != nil {
		return nil, err
	}
	if err = s.initMetrics(); err != nil {
		return nil, err
	}
	if err = s.initReporter(opts.report); err != nil {
		return nil, err
	}
	if opts.watch && opts.configPath != "" {
		if s.watcher, err = xconf.Watch(opts.configPath, s.reload); err != nil {
			return nil, err
		}
	}

	s.server = &http.Server{
		Addr:              opts.addr,
		Handler:           newServer(s.caches, s.names, logger).handler(s.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *service) initCaches(file *xconf.File) error {
	cfgs, err := file.CacheConfigs()
	if err != nil {
		return err
	}
	recorder, err := xmetrics.NewOTelCacheRecorder()
	if err != nil {
		return fmt.Errorf("create cache recorder: %w", err)
	}
	observer, err := xmetrics.NewOTelObserver()
	if err != nil {
		return fmt.Errorf("create observer: %w", err)
	}
	for _, name := range s.names {
		c, err := xbcache.New[string, json.RawMessage](cfgs[name],
			xbcache.WithName[string, json.RawMessage](name),
			xbcache.WithLogger[string, json.RawMessage](s.logger),
			xbcache.WithRecorder[string, json.RawMessage](recorder),
			xbcache.WithObserver[string, json.RawMessage](observer),
		)
		if err != nil {
			return fmt.Errorf("create cache %s: %w", name, err)
		}
		s.caches[name] = c
	}
	return nil
}

// newSampler 按配置选择采样源。runtime 源既没有 GOMEMLIMIT 也没有
// fallback_limit_bytes 时无法计算比例，启动时告警一次并改用主机内存。
func newSampler(ctx context.Context, p xconf.PressureSection, logger xlog.Logger) xpressure.Sampler {
	if p.Source == xconf.SourceHost {
		return xpressure.NewHostSampler()
	}
	rs := xpressure.NewRuntimeSampler(p.FallbackLimitBytes)
	if rs.HasLimit() {
		return rs
	}
	logger.Warn(ctx, "runtime memory limit unknown, sampling host memory instead",
		slog.String("hint", "set GOMEMLIMIT or pressure.fallback_limit_bytes"))
	return xpressure.NewHostSampler()
}

func (s *service) initMonitor(p xconf.PressureSection) error {
	sampler := newSampler(context.Background(), p, s.logger)
	m, err := xpressure.NewMonitor(sampler,
		xpressure.WithThreshold(p.Threshold),
		xpressure.WithInterval(p.Interval),
		xpressure.WithCooldown(p.Cooldown),
		xpressure.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}
	for _, name := range s.names {
		m.Register(s.caches[name])
	}
	s.monitor = m
	return nil
}

func (s *service) sources() []xmetrics.Source {
	out := make([]xmetrics.Source, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.caches[name].MetricsSource())
	}
	return out
}

// initMetrics 同时导出到 Prometheus 注册表和 OTel 全局 MeterProvider。
func (s *service) initMetrics() error {
	sources := s.sources()
	collector, err := xmetrics.NewCollector(xmetrics.DefaultNamespace, sources...)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.registry = reg

	if len(sources) == 0 {
		return nil
	}
	unregister, err := xmetrics.RegisterGauges(sources)
	if err != nil {
		return err
	}
	s.unregisterGauges = unregister
	return nil
}

func (s *service) initReporter(spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, s.report); err != nil {
		return usagef("无效的 --report 表达式 %q: %v", spec, err)
	}
	s.reporter = c
	return nil
}

// report 输出每个缓存的统计。
func (s *service) report() {
	ctx := context.Background()
	for _, name := range s.names {
		st := s.caches[name].Stats()
		s.logger.Info(ctx, "cache stats",
			xlog.Cache(name),
			xlog.Count(int64(st.Entries)),
			xlog.Bytes(st.SizeBytes),
			slog.Float64("hit_rate", st.HitRate),
			slog.Uint64("evictions", st.Evictions),
			slog.Uint64("expirations", st.Expirations),
			slog.Uint64("aggressive_runs", st.AggressiveRuns),
		)
	}
}

// reload 应用配置文件变更。缓存容量在创建时固定，只热更新压力阈值和日志级别。
func (s *service) reload(file *xconf.File, err error) {
	ctx := context.Background()
	if err != nil {
		s.logger.Warn(ctx, "config reload failed, keeping previous settings", xlog.Err(err))
		return
	}
	if err := s.monitor.SetThreshold(file.Pressure.Threshold); err != nil {
		s.logger.Warn(ctx, "pressure threshold not applied", xlog.Err(err))
	}
	if !s.levelPinned {
		s.logger.SetLevel(file.Log.Level)
	}
	s.logger.Info(ctx, "config reloaded")
}

func (s *service) services() []func(context.Context) error {
	svcs := []func(context.Context) error{
		xrun.HTTPServer(s.server, shutdownTimeout),
		s.monitor.Run,
	}
	if s.reporter != nil {
		svcs = append(svcs, xrun.Cron(s.reporter))
	}
	if s.watcher != nil {
		svcs = append(svcs, s.watcher.Run)
	}
	return svcs
}

// close 释放全部资源，可重复调用。
func (s *service) close() error {
	var errs []error
	if s.watcher != nil {
		errs = append(errs, s.watcher.Stop())
	}
	if s.unregisterGauges != nil {
		errs = append(errs, s.unregisterGauges())
		s.unregisterGauges = nil
	}
	for _, c := range s.caches {
		c.Close()
	}
	if s.closeLog != nil {
		errs = append(errs, s.closeLog())
	}
	return errors.Join(errs...)
}
