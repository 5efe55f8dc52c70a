// Package layout serves mandate graph views backed by a persistent,
// per-contract position cache.
//
// Computing a view reads the cache through ports.LayoutStore and hands it
// to the graph package. Position and viewport updates from interactive
// dragging are coalesced per contract address by a Debouncer and written
// once the updates settle.
package layout
