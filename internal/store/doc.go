// Package store provides bounded in-memory history with pub/sub for keepwarm.
//
// This package is internal to keepwarm and holds the ping history of a
// service. It implements a fixed-capacity FIFO buffer and a
// publish-subscribe pattern for real-time updates to connected dashboard
// clients.
//
// The main component is [History], a generic buffer that keeps at most
// its capacity of entries in insertion order. When the buffer is full,
// the oldest entry is dropped before the newest is appended.
//
// History is designed for concurrent access with proper synchronization.
// Readers always receive copies, never references into the buffer.
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the writer).
package store
