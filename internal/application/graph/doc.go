// Package graph lays out the dependency graph of a Powers contract's
// mandates.
//
// Mandates reference each other through their needFulfilled and
// needNotFulfilled conditions. The package builds the adjacency lists from
// those references, places every mandate on a grid of rows and columns so
// that dependency chains read left to right, finds the connected component
// of a selected mandate, and renders the result as flow nodes and edges or
// as a Mermaid flowchart.
//
// The input graph is not guaranteed to be acyclic. Every traversal carries a
// visiting set and treats a re-entered node as a leaf, so layout always
// terminates and never fails.
package graph
