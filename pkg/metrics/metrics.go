/*
NAME
  metrics.go - diagnostic counters for the demuxfs parser core.

DESCRIPTION
  Exposes the diagnostics selected by the configuration's report bitmask
  (CRC errors, continuity errors) plus a few counters for the DSM-CC
  carousel engine, as Prometheus metrics. The report bitmask still governs
  whether the corresponding log line is emitted (see pkg/config); the
  counters here are incremented unconditionally so operational dashboards
  stay accurate even when logging is quiet.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package metrics provides Prometheus instrumentation for the demuxfs
// parser core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the counters the parser core updates as it runs.
type Registry struct {
	CrcMismatches      prometheus.Counter
	ContinuityBreaks   *prometheus.CounterVec
	SectionResets      *prometheus.CounterVec
	CarouselOrphans    prometheus.Counter
	TableVersions      *prometheus.CounterVec
	MalformedPackets   prometheus.Counter
}

// NewRegistry creates a Registry and registers its collectors with reg.
// Passing a fresh prometheus.NewRegistry() keeps demuxfs instrumentation
// isolated from the default global registry.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CrcMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "demuxfs",
			Name:      "crc_mismatches_total",
			Help:      "Number of PSI sections dropped due to CRC-32 mismatch.",
		}),
		ContinuityBreaks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "demuxfs",
			Name:      "continuity_breaks_total",
			Help:      "Number of continuity_counter gaps observed, by PID.",
		}, []string{"pid"}),
		SectionResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "demuxfs",
			Name:      "section_buffer_resets_total",
			Help:      "Number of per-PID section buffer resets, by PID.",
		}, []string{"pid"}),
		CarouselOrphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "demuxfs",
			Name:      "carousel_orphans_total",
			Help:      "Number of DSM-CC bindings discarded as unresolvable orphans.",
		}),
		TableVersions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "demuxfs",
			Name:      "table_versions_installed_total",
			Help:      "Number of PSI table versions installed, by table name.",
		}, []string{"table"}),
		MalformedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "demuxfs",
			Name:      "malformed_packets_total",
			Help:      "Number of TS packets dropped for sync/adaptation-length errors.",
		}),
	}
	reg.MustRegister(
		r.CrcMismatches,
		r.ContinuityBreaks,
		r.SectionResets,
		r.CarouselOrphans,
		r.TableVersions,
		r.MalformedPackets,
	)
	return r
}
