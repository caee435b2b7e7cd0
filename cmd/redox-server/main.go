// Command redox-server runs a Redox keyspace over TCP: flag parsing,
// startup logging, and EADDRINUSE bind retry live here as thin shell
// concerns around the engine in the root and protocol/persistence/server
// packages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rsms/go-log"
	"golang.org/x/sync/errgroup"

	"github.com/rsms/redox"
	"github.com/rsms/redox/metrics"
	"github.com/rsms/redox/persistence"
	"github.com/rsms/redox/protocol"
	"github.com/rsms/redox/server"
)

var (
	opt_port         int
	opt_password     string
	opt_dataFile     string
	opt_saveInterval int
	opt_metricsAddr  string
	opt_verbose      bool
	opt_debug        bool
)

func main() {
	flag.IntVar(&opt_port, "port", 2001, "TCP port to bind")
	flag.StringVar(&opt_password, "password", "", "If set, gate commands behind AUTH")
	flag.StringVar(&opt_dataFile, "data-file", "", "If set, enable snapshot persistence at this path")
	flag.IntVar(&opt_saveInterval, "save-interval", 60, "Persistence save interval, in seconds")
	flag.StringVar(&opt_metricsAddr, "metrics-addr", "", "If set, serve /healthz and /metrics on this address")
	flag.BoolVar(&opt_verbose, "v", false, "Verbose logging")
	flag.BoolVar(&opt_debug, "debug", false, "Debug logging (implies -v)")
	flag.Parse()

	if opt_debug {
		log.RootLogger.Level = log.LevelDebug
	} else if opt_verbose {
		log.RootLogger.Level = log.LevelInfo
	} else {
		log.RootLogger.Level = log.LevelWarn
	}
	log.RootLogger.SetWriter(os.Stderr)
	log.RootLogger.EnableFeatures(log.FSync)
	log.RootLogger.DisableFeatures(log.FTime | log.FPrefixInfo)

	snap := persistence.NewSnapshot(opt_dataFile)
	data, expiry := snap.Load()

	ks := redox.NewKeyspace(snap)
	ks.LoadSnapshot(data, expiry)

	sched, err := persistence.NewScheduler(ks, snap, time.Duration(opt_saveInterval)*time.Second, time.Minute)
	if err != nil {
		log.Abortf("scheduler: %s", err)
	}
	defer sched.Shutdown()

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(ks))
	counters := metrics.NewCounters(reg)

	srv := &server.Server{
		Keyspace: ks,
		Password: opt_password,
		OnAccept: counters.ConnectionAccepted,
		OnCommand: func(op protocol.Op) {
			counters.CommandDispatched(op.String())
		},
	}

	addr := "127.0.0.1:" + strconv.Itoa(opt_port)
	ln, err := bindWithRetry(addr, 10)
	if err != nil {
		log.Abortf("bind: %s", err)
	}

	var httpSrv *http.Server
	if opt_metricsAddr != "" {
		router := metrics.NewRouter(reg, func() bool { return true })
		httpSrv = &http.Server{Addr: opt_metricsAddr, Handler: router}
	}

	// The line-protocol accept loop and the optional metrics HTTP server
	// run as sibling goroutines under one errgroup: the first failure in
	// either (other than the clean shutdowns triggered below) is returned
	// from Wait, and Wait never returns before both have actually stopped
	// accepting connections. A failure in one does not stop the other.
	var g errgroup.Group
	g.Go(func() error {
		if err := srv.ServeListener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if httpSrv != nil {
		g.Go(func() error {
			log.Info("metrics: listening on %s", opt_metricsAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("server: shutting down")
		srv.Close()
		if httpSrv != nil {
			httpSrv.Shutdown(context.Background())
		}
	}()

	if err := g.Wait(); err != nil {
		log.Abortf("%s", err)
	}
}

// bindWithRetry binds addr, and on EADDRINUSE moves on to successive
// ports, trying at most maxTries ports in all (addr's own included) and
// returning the first listener that succeeds.
func bindWithRetry(addr string, maxTries int) (net.Listener, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxTries; i++ {
		candidate := net.JoinHostPort(host, strconv.Itoa(port+i))
		ln, err := net.Listen("tcp", candidate)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		log.Warn("server: %s in use, trying next port", candidate)
	}
	return nil, fmt.Errorf("no free port found starting at %s after %d tries", addr, maxTries)
}
