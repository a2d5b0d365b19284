// Package dag provides the dependency-graph bookkeeping for the scheduler:
// id-keyed vertices with disjoint upstream/downstream neighbor sets, edge
// resolution for dependencies declared before their target is registered,
// and a depth-first upstream traversal that detects cycles.
//
// The graph is not internally synchronized. The scheduler owns a graph and
// serializes all access under its own lock.
package dag
