/*
Package observability exposes editor activity as Prometheus metrics.

Metrics are fed through domain.EditorHooks, so any Editor can be instrumented
with stepgraph.WithHooks(metrics.Hooks()). Each Metrics owns its registry;
nothing is registered globally.
*/
package observability
