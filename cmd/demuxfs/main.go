/*
NAME
  main.go - demuxfs entry point.

DESCRIPTION
  Parses flags, constructs a logger, config, metrics registry, and input
  backend, then runs the parser driver (pkg/demux) until interrupted.

  The filesystem binding that would expose pkg/tree.Tree to user
  applications (e.g. a FUSE mount) is an external collaborator per
  spec.md's scope and is not started here; this binary is useful on its
  own for metrics/diagnostics against a live or recorded multiplex, and as
  the process a binding package would be layered onto.

AUTHORS
  AusOcean demuxfs contributors.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Command demuxfs runs the MPEG-2 transport stream parser described by
// spec.md, populating an in-memory tree from a configured input backend.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ausocean/demuxfs/pkg/config"
	"github.com/ausocean/demuxfs/pkg/demux"
	dlog "github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/metrics"
	alog "github.com/ausocean/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logging related constants, following cmd/looper's and cmd/rv's shape.
const (
	logMaxSize   = 100 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
)

func main() {
	var (
		backendFlag = flag.String("backend", "file", "input backend to use (currently only \"file\" is built in)")
		inputFlag   = flag.String("input", "", "path to a TS file or FIFO, used by the \"file\" backend")
		parsePES    = flag.Bool("parse_pes", true, "reassemble PES packets and expose elementary streams")
		standard    = flag.String("standard", "DVB", "digital TV standard: SBTVD, ISDB, DVB, or ATSC")
		tmpDir      = flag.String("tmpdir", "", "scratch directory; watched for a report_mask sidecar file")
		reportFlag  = flag.Uint("report", uint(config.ReportAll), "diagnostics bitmask (1=CRC, 2=continuity, 0xff=all)")
		frequency   = flag.Uint("frequency", 0, "tuner frequency in Hz, for tuner-backed backends")
		mountPoint  = flag.String("mount", "", "filesystem path a (external) binding will expose the tree under")
		logPath     = flag.String("logpath", "/var/log/demuxfs/demuxfs.log", "log file path")
		logLevel    = flag.Int("loglevel", int(alog.Info), "log verbosity (0=Debug .. 4=Fatal)")
		metricsAddr = flag.String("metrics_addr", ":9091", "address to serve /metrics on; empty disables it")
	)
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	al := alog.New(int8(*logLevel), io.MultiWriter(fileLog, os.Stderr), false)
	log := ausoceanLogAdapter{al}

	std, err := parseStandard(*standard)
	if err != nil {
		log.Log(dlog.Error, "bad -standard value", "err", err)
		os.Exit(config.ExitBadOption)
	}

	cfg := config.Config{
		Backend:    *backendFlag,
		ParsePES:   *parsePES,
		Standard:   std,
		TmpDir:     *tmpDir,
		Report:     config.ReportMask(*reportFlag),
		Frequency:  uint32(*frequency),
		MountPoint: *mountPoint,
	}

	var reportWatcher *config.ReportWatcher
	if cfg.TmpDir != "" {
		rw, err := config.NewReportWatcher(cfg.TmpDir, cfg.Report)
		if err != nil {
			log.Log(dlog.Warning, "could not start report mask watcher", "err", err)
		} else {
			reportWatcher = rw
		}
	}

	promReg := prometheus.NewRegistry()
	m := metrics.NewRegistry(promReg)
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, promReg, log)
	}

	be, err := newBackend(*backendFlag, *inputFlag)
	if err != nil {
		log.Log(dlog.Error, "could not construct backend", "backend", *backendFlag, "err", err)
		os.Exit(config.ExitBadOption)
	}

	d, err := demux.NewDriver(cfg, be, log, m)
	if err != nil {
		log.Log(dlog.Error, "could not construct driver", "err", err)
		os.Exit(config.ExitBadOption)
	}
	if reportWatcher != nil {
		d.SetReportWatcher(reportWatcher)
	}

	errc, err := d.Start()
	if err != nil {
		log.Log(dlog.Error, "could not start driver", "err", err)
		os.Exit(config.ExitBackendFailed)
	}
	log.Log(dlog.Info, "demuxfs running", "backend", *backendFlag, "standard", cfg.Standard.String())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigc:
		log.Log(dlog.Info, "signal received, stopping", "signal", sig.String())
		d.Stop()
	case err := <-errc:
		if err != nil {
			log.Log(dlog.Error, "driver stopped with error", "err", err)
			os.Exit(config.ExitBackendFailed)
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log dlog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Log(dlog.Error, "metrics server exited", "addr", addr, "err", err)
	}
}

func parseStandard(s string) (config.Standard, error) {
	switch s {
	case "SBTVD":
		return config.StandardSBTVD, nil
	case "ISDB":
		return config.StandardISDB, nil
	case "DVB":
		return config.StandardDVB, nil
	case "ATSC":
		return config.StandardATSC, nil
	default:
		return config.StandardUnset, fmt.Errorf("unrecognised standard %q", s)
	}
}
