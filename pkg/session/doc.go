/*
Package session hosts many concurrent editing sessions over one document store.

Each session owns a stepgraph.Editor. Operations on a session are serialized by
a reference-counted mutex, and saves may additionally hold a distributed lock on
the flow name so replicas sharing a store do not interleave writes.
*/
package session
