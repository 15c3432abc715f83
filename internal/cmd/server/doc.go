// Package serverrun boots the delivery worker: configuration, logging,
// runtime wiring, and signal-aware shutdown.
package serverrun
