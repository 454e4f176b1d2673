/*
Package observability exports conversation metrics to Prometheus.

Metrics are fed by lifecycle hooks: attach Metrics.Hooks to the assistant and
serve Handler on /metrics.
*/
package observability
