/*
Package session serialises access to persisted run sessions.

Runs that share a session id are recorded one after the other: the Manager
holds a reference-counted in-process mutex per session and, when configured,
a distributed lock so that replicas behind a load balancer do not interleave
their read-modify-write cycles.
*/
package session
