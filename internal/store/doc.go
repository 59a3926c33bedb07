// Package store keeps the latest state of every tracked job in memory and
// fans updates out to subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [JobRecord]: Storage representation of a tracked job
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the pollers).
package store
