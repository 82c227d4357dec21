/*
Package ports defines the driven ports (interfaces) of langrun.

These interfaces decouple flow preparation from the engine that executes the
flow, from where sessions are persisted, and from where named flows, presets
and variables come from.

# Key Interfaces

  - Executor: runs a prepared flow (e.g. a Langflow server, or a dry run).
  - FlowLoader: resolves named flows (e.g. a directory of exports).
  - SessionStore: persists session records.
  - DistributedLocker: coordinates session access across replicas.
  - VariableStore: resolves variable-backed template fields.
  - PresetStore: serves named Tweaks mappings.
*/
package ports
