package main

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xcachekit/internal/policysim"
	"github.com/omeyang/xcachekit/pkg/config/xconf"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xbcache"
)

// workloadFlags 返回 simulate 与 compare 共用的负载参数。
func workloadFlags() []cli.Flag {
	def := policysim.DefaultWorkload()
	return []cli.Flag{
		&cli.IntFlag{Name: "keys", Usage: "键空间大小", Value: def.Keys},
		&cli.IntFlag{Name: "ops", Usage: "请求总数", Value: def.Requests},
		&cli.FloatFlag{Name: "skew", Usage: "Zipf 参数，必须大于 1", Value: def.Skew},
		&cli.FloatFlag{Name: "high-share", Usage: "高优先级键比例", Value: def.HighShare},
		&cli.IntFlag{Name: "value-size", Usage: "值字节数", Value: def.ValueSize},
		&cli.Uint64Flag{Name: "seed", Usage: "随机种子", Value: def.Seed},
	}
}

func workloadFrom(cmd *cli.Command) (policysim.Workload, error) {
	w := policysim.DefaultWorkload()
	w.Keys = cmd.Int("keys")
	w.Requests = cmd.Int("ops")
	w.Skew = cmd.Float("skew")
	w.HighShare = cmd.Float("high-share")
	w.ValueSize = cmd.Int("value-size")
	w.Seed = cmd.Uint64("seed")
	if cmd.IsSet("entries") {
		w.Capacity = cmd.Int("entries")
	}
	if cmd.IsSet("step") {
		w.Step = cmd.Duration("step")
	}
	if err := w.Validate(); err != nil {
		return policysim.Workload{}, usagef("%v", err)
	}
	return w, nil
}

// ---------------------------------------------------------------------------
// simulate
// ---------------------------------------------------------------------------

func createSimulateCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "对配置文件中的每个缓存回放同一条 Zipf 负载并输出统计",
		Flags: append(workloadFlags(), &cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "配置文件路径，为空时使用 default/financial/ui 三个预置缓存",
			Sources: cli.EnvVars("XBCACHE_CONFIG"),
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w, err := workloadFrom(cmd)
			if err != nil {
				return err
			}
			file, err := simulationFile(cmd.String("config"))
			if err != nil {
				return err
			}
			stats, err := simulate(ctx, file, w)
			if err != nil {
				return err
			}
			return printStats(stdout, w, stats)
		},
	}
}

// simulationFile 加载配置；未指定时为每个预置配置各建一个缓存。
func simulationFile(path string) (*xconf.File, error) {
	if path != "" {
		return xconf.Load(path)
	}
	f := xconf.DefaultFile()
	f.Caches = map[string]xconf.CacheSection{
		xconf.PresetDefault:   {Preset: xconf.PresetDefault},
		xconf.PresetFinancial: {Preset: xconf.PresetFinancial},
		xconf.PresetUI:        {Preset: xconf.PresetUI},
	}
	return f, nil
}

// simulate 按名称顺序回放每个缓存，未命中时写入。
func simulate(ctx context.Context, file *xconf.File, w policysim.Workload) ([]xbcache.Stats, error) {
	cfgs, err := file.CacheConfigs()
	if err != nil {
		return nil, err
	}
	seq := w.Sequence()
	value, err := json.Marshal(strings.Repeat("x", w.ValueSize))
	if err != nil {
		return nil, err
	}

	names := file.CacheNames()
	out := make([]xbcache.Stats, 0, len(names))
	for _, name := range names {
		c, err := xbcache.New[string, json.RawMessage](cfgs[name],
			xbcache.WithName[string, json.RawMessage](name),
			xbcache.WithLogger[string, json.RawMessage](xlog.Discard()),
		)
		if err != nil {
			return nil, fmt.Errorf("create cache %s: %w", name, err)
		}
		for i, k := range seq {
			if i%1024 == 0 && ctx.Err() != nil {
				c.Close()
				return nil, ctx.Err()
			}
			key := strconv.FormatUint(k, 10)
			if _, ok := c.Get(key); !ok {
				c.Set(key, value)
			}
		}
		out = append(out, c.Stats())
		c.Close()
	}
	return out, nil
}

func printStats(out io.Writer, w policysim.Workload, stats []xbcache.Stats) error {
	fmt.Fprintf(out, "keys=%d ops=%d skew=%.2f seed=%d\n", w.Keys, w.Requests, w.Skew, w.Seed)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CACHE\tENTRIES\tBYTES\tHIT RATE\tEVICTIONS\tREJECTIONS")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d/%d\t%d/%d\t%.4f\t%d\t%d\n",
			s.Name, s.Entries, s.MaxEntries, s.SizeBytes, s.MaxSizeBytes, s.HitRate, s.Evictions, s.Rejections)
	}
	return tw.Flush()
}

// ---------------------------------------------------------------------------
// compare
// ---------------------------------------------------------------------------

func createCompareCommand(stdout io.Writer) *cli.Command {
	def := policysim.DefaultWorkload()
	flags := append(workloadFlags(),
		&cli.IntFlag{Name: "entries", Usage: "每个策略的条目容量", Value: def.Capacity},
		&cli.DurationFlag{Name: "step", Usage: "相邻请求的模拟时间间隔", Value: def.Step},
		&cli.StringSliceFlag{Name: "policy", Usage: "只比较指定策略（可重复），默认全部"},
	)
	return &cli.Command{
		Name:  "compare",
		Usage: "用同一负载回放 xbcache、lru 与 ristretto，按命中率从高到低输出",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w, err := workloadFrom(cmd)
			if err != nil {
				return err
			}
			policies := cmd.StringSlice("policy")
			if len(policies) == 0 {
				policies = policysim.Policies()
			}
			for _, p := range policies {
				if !slices.Contains(policysim.Policies(), p) {
					return usagef("未知策略 %q", p)
				}
			}
			results, err := policysim.RunPolicies(ctx, w, policies...)
			if err != nil {
				return err
			}
			slices.SortStableFunc(results, func(a, b policysim.Result) int {
				return cmp.Compare(b.HitRatio(), a.HitRatio())
			})
			return printResults(stdout, w, results)
		},
	}
}

func printResults(out io.Writer, w policysim.Workload, results []policysim.Result) error {
	fmt.Fprintf(out, "keys=%d ops=%d entries=%d skew=%.2f seed=%d\n",
		w.Keys, w.Requests, w.Capacity, w.Skew, w.Seed)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tHIT RATIO\tHITS\tMISSES\tEVICTIONS\tELAPSED")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.4f\t%d\t%d\t%d\t%s\n",
			r.Policy, r.HitRatio(), r.Hits, r.Misses, r.Evictions, r.Elapsed.Round(time.Microsecond))
	}
	return tw.Flush()
}
