// numclient hammers a uniqnum server and checks that every number it gets back is new.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"uniqnum/internal/core/handler"
	"uniqnum/internal/shared/logger"
	"uniqnum/internal/shared/types"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "server address")
	total := flag.Int("n", 100, "number of requests")
	concurrency := flag.Int("c", 1, "concurrent connections")
	timeout := flag.Duration("timeout", 5*time.Second, "per-connection deadline")
	level := flag.String("log", "info", "log level")
	flag.Parse()

	if err := logger.Init(types.LogConf{Level: *level}); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	var (
		mu     sync.Mutex
		seen   = make(map[string]bool, *total)
		dups   int
		failed int
	)

	var g errgroup.Group
	g.SetLimit(*concurrency)
	for i := 0; i < *total; i++ {
		g.Go(func() error {
			n, err := fetch(*addr, *timeout)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// The server closes a second concurrent connection from the same host without a reply.
				failed++
				logger.Debug().Err(err).Msg("Request got no number")
				return nil
			}
			key := n.String()
			if seen[key] {
				dups++
				logger.Error().Str("number", key).Msg("Duplicate number received")
			}
			seen[key] = true
			return nil
		})
	}
	_ = g.Wait()

	logger.Info().
		Int("requests", *total).
		Int("unique", len(seen)).
		Int("failed", failed).
		Int("duplicates", dups).
		Msg("Run complete")
	if dups > 0 {
		os.Exit(1)
	}
}

func fetch(addr string, timeout time.Duration) (*big.Int, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.ContentLength != int64(len(body)) {
		return nil, fmt.Errorf("content-length %d does not match body length %d", resp.ContentLength, len(body))
	}
	return handler.ParseNumber(body)
}
