// Package dag holds a small directed acyclic graph used to order
// interdependent computations. Nodes are string IDs; an edge from A to B
// means B depends on A. Besides cycle detection it produces a deterministic
// topological order in which ties are broken by insertion order, so the same
// declarations always evaluate in the same sequence.
package dag
