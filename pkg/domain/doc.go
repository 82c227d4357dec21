/*
Package domain contains the core models shared by every langrun component.

It describes the Langflow flow document, the Tweaks Mapping applied to it, the
run request/response pair exchanged with an execution engine, and the session
record kept for conversational runs. The package is free of I/O so adapters can
depend on it without pulling in transports or storage.

# Key Entities

  - Flow: a decoded flow document. Unknown fields are preserved verbatim.
  - Node: a view over one component instance of the flow graph.
  - Tweaks: per-node field overrides (node id or display name -> field -> value).
  - RunInput / RunResponse: what is forwarded to, and returned by, an Executor.
  - Session: the exchanges recorded for a non-empty session identifier.
*/
package domain
