// Package observability provides OpenTelemetry tracing and Prometheus
// RED metrics for the discovery service.
//
// # Tracing and OTel metrics
//
// Initialize the provider at application startup:
//
//	p, err := observability.New(ctx, &observability.Config{
//		ServiceName:  "incentive-discovery",
//		OTLPEndpoint: "otel-collector:4317",
//		SampleRate:   0.1,
//		Enabled:      true,
//	})
//	defer p.Shutdown(ctx)
//
// Track an operation end to end:
//
//	ctx, done := p.TrackOperation(ctx, "discovery.route")
//	defer func() { done(err) }()
//
// # Prometheus RED metrics
//
// Register metrics once at startup and expose the scrape endpoint:
//
//	m := observability.NewMetrics(prometheus.DefaultRegisterer)
//	http.Handle("/metrics", m.Handler())
//	m.ObserveRequest("/incentives/discover", "POST", "202", elapsed)
package observability
