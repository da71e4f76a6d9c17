/*
Package ports defines the driven ports (interfaces) for the flow editor.

These interfaces decouple the editing core from external implementations,
allowing the editor to work with various document stores and rendering surfaces.

# Key Interfaces

  - DocumentStore: Loads and saves FlowDocuments (e.g., Memory, File, Redis, Loam).
  - Surface: Receives CanvasCommands emitted by the editor (e.g., an SSE stream).
  - DistributedLocker: Provides distributed locking around save round trips.
*/
package ports
