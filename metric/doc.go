// Package metric provides Prometheus-based metrics collection and an HTTP
// server for Parcely pipeline monitoring and observability.
//
// The package offers a centralized metrics registry managing both core
// pipeline metrics (service status, sample processing, queue depth, realtime
// subscriber counts) and custom component-specific metrics. It includes an
// HTTP server exposing metrics in Prometheus format.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: pipeline-level metrics automatically registered (Metrics type)
//  2. Component Registry: extensible registration for component-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: metrics endpoint with health check (Server type)
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//
//	core := registry.CoreMetrics()
//	core.RecordServiceStatus("telemetry-processor", 2)
//	core.RecordSampleProcessed("telemetry-processor", "accepted")
//	core.RecordQueueDepth(17)
//
// Components register their own metrics under a service name; duplicate
// registrations are rejected with a classified error so a wiring mistake
// surfaces at startup rather than as silently shared counters.
package metric
