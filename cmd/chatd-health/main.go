package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// Sidecar health probe. /live reports the sidecar itself; /health and
// /healthz relay the main server's /healthz so deployment probes see a
// 503 while it is down, compacting or restarting.
func main() {
	addr := flag.String("addr", ":8081", "listen address for health sidecar")
	target := flag.String("target", "http://127.0.0.1:8080/healthz", "main server health endpoint to probe")
	timeout := flag.Duration("timeout", 2*time.Second, "upstream probe timeout")
	ver := flag.String("version", "dev", "version string to return")
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}

	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/live":
			ctx.Response.Header.Set("Content-Type", "application/json")
			ctx.SetStatusCode(fasthttp.StatusOK)
			_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"ok\",\"version\":%q}", *ver))
		case "/health", "/healthz":
			status, body := probe(client, *target, *timeout)
			ctx.Response.Header.Set("Content-Type", "application/json")
			ctx.SetStatusCode(status)
			_, _ = ctx.WriteString(body)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	fmt.Printf("health sidecar listening on %s, probing %s\n", *addr, *target)
	srv := &fasthttp.Server{
		Handler:            h,
		Name:               "chatd-health",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("health server exit: %v\n", err)
	}
}

// probe relays the upstream health check, collapsing transport errors
// into a 503.
func probe(c *fasthttp.Client, target string, timeout time.Duration) (int, string) {
	code, _, err := c.GetTimeout(nil, target, timeout)
	if err != nil {
		return fasthttp.StatusServiceUnavailable, fmt.Sprintf("{\"status\":\"unreachable\",\"error\":%q}", err.Error())
	}
	if code != fasthttp.StatusOK {
		return fasthttp.StatusServiceUnavailable, fmt.Sprintf("{\"status\":\"degraded\",\"upstream_status\":%d}", code)
	}
	return fasthttp.StatusOK, "{\"status\":\"ok\"}"
}
