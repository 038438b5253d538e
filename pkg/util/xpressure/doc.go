// Package xpressure 采样内存占用，超过阈值时对注册的缓存执行激进清理。
//
// 缓存本身不采样内存，只暴露 AggressiveCleanup 钩子；xpressure 是调用这个钩子的一方：
//
//	mon, err := xpressure.NewMonitor(xpressure.NewRuntimeSampler(512<<20),
//	    xpressure.WithThreshold(0.8))
//	mon.Register(financial, ui)
//	g.Go(mon.Run)
//
// 采样源：
//   - RuntimeSampler：Go 堆对象字节数 / debug.SetMemoryLimit 设置的软上限
//   - HostSampler：主机内存 used / total（gopsutil）
//
// 两次触发之间至少间隔 cooldown，避免一次压力尖峰连续清空缓存。
package xpressure
