// Package store owns every write to the delivery tables.
//
// State transitions are expressed as single conditional UPDATE statements;
// the affected-row count is the race signal. Two actors moving the same row
// concurrently resolve deterministically: exactly one update matches its
// guard, the other observes zero rows and walks away.
package store
