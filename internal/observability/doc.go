// Package observability builds the process logger and the Prometheus
// collectors shared by the HTTP layer.
//
// Loggers are plain *zap.Logger values handed to every constructor. Metrics
// live on a private registry so tests can build as many instances as they
// need.
package observability
