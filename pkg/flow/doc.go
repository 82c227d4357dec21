/*
Package flow decodes Langflow flow documents and answers questions about them.

It accepts the export format ({"id", "name", "data": {"nodes", "edges"}}) as well
as bare graphs, in JSON or YAML. Decoded documents keep every field, including the
ones langrun never reads, so a flow can be tweaked and handed to an engine
without loss.
*/
package flow
