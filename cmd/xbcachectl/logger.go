package main

import (
	"io"

	"github.com/omeyang/xcachekit/pkg/config/xconf"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

// buildLogger 按配置段构建日志器。levelOverride 非空时覆盖 sec.Level。
// sec.File 非空时写入按大小轮转的文件，否则写入 w。
func buildLogger(sec xconf.LogSection, levelOverride string, w io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetOutput(w).
		SetLevel(sec.Level).
		SetFormat(sec.Format)
	if levelOverride != "" {
		b = b.SetLevelString(levelOverride)
	}
	if sec.File != "" {
		b = b.SetRotation(sec.File, xlog.WithMaxBackups(5))
	}
	return b.Build()
}
