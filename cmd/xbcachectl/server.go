package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xbcache"
)

// maxBodyBytes 是单次写入请求体的上限。
const maxBodyBytes = 4 << 20

// valueCache 是 serve 使用的缓存类型。值按原始 JSON 保存，大小即字节长度。
type valueCache = xbcache.Cache[string, json.RawMessage]

// server 提供缓存的 HTTP 接口：
//
//	GET    /caches                        全部缓存统计
//	GET    /caches/{cache}/entries/{key}  读取
//	PUT    /caches/{cache}/entries/{key}  写入，?ttl=30s&priority=high
//	DELETE /caches/{cache}/entries/{key}  删除
//	POST   /caches/{cache}/cleanup        激进清理
//	POST   /caches/{cache}/optimize       清除过期条目
//	GET    /metrics                       Prometheus 指标
//	GET    /healthz
type server struct {
	caches map[string]*valueCache
	names  []string
	logger xlog.Logger
}

func newServer(caches map[string]*valueCache, names []string, logger xlog.Logger) *server {
	return &server{caches: caches, names: names, logger: logger}
}

func (s *server) handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /caches", s.handleStats)
	mux.HandleFunc("GET /caches/{cache}/entries/{key}", s.withCache(s.handleGet))
	mux.HandleFunc("PUT /caches/{cache}/entries/{key}", s.withCache(s.handlePut))
	mux.HandleFunc("DELETE /caches/{cache}/entries/{key}", s.withCache(s.handleDelete))
	mux.HandleFunc("POST /caches/{cache}/cleanup", s.withCache(s.handleCleanup))
	mux.HandleFunc("POST /caches/{cache}/optimize", s.withCache(s.handleOptimize))
	return mux
}

func (s *server) withCache(fn func(http.ResponseWriter, *http.Request, *valueCache)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.caches[r.PathValue("cache")]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("unknown cache %q", r.PathValue("cache")))
			return
		}
		fn(w, r, c)
	}
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := make([]xbcache.Stats, 0, len(s.names))
	for _, name := range s.names {
		stats = append(stats, s.caches[name].Stats())
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request, c *valueCache) {
	v, ok := c.Get(r.PathValue("key"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(v)
}

func (s *server) handlePut(w http.ResponseWriter, r *http.Request, c *valueCache) {
	opts, err := setOptionsFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, errors.New("body is not valid JSON"))
		return
	}

	// 并发写入时拒绝计数可能来自其他请求，只用于给出提示。
	rejected := c.Stats().Rejections
	c.Set(r.PathValue("key"), json.RawMessage(body), opts...)
	if c.Stats().Rejections > rejected {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("value exceeds per-entry limit"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request, c *valueCache) {
	if !c.Delete(r.PathValue("key")) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCleanup(w http.ResponseWriter, r *http.Request, c *valueCache) {
	n := c.AggressiveCleanup()
	s.logger.Info(r.Context(), "manual aggressive cleanup", xlog.Cache(c.Name()), xlog.Count(int64(n)))
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *server) handleOptimize(w http.ResponseWriter, _ *http.Request, c *valueCache) {
	writeJSON(w, http.StatusOK, map[string]int{"removed": c.Optimize()})
}

// setOptionsFrom 解析 ttl 与 priority 查询参数。
func setOptionsFrom(r *http.Request) ([]xbcache.SetOption, error) {
	var opts []xbcache.SetOption
	q := r.URL.Query()
	if raw := q.Get("ttl"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid ttl %q", raw)
		}
		opts = append(opts, xbcache.WithTTL(ttl))
	}
	p, ok := xbcache.ParsePriority(q.Get("priority"))
	if !ok {
		return nil, fmt.Errorf("invalid priority %q", q.Get("priority"))
	}
	return append(opts, xbcache.WithPriority(p)), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
