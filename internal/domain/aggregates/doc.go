// Package aggregates defines the write boundaries of the structural core.
//
// Each aggregate owns one mutable structure (taxonomy closure, route tree,
// blueprint embeds) and must enforce its invariants inside a single transaction.
// Contracts here carry no persistence or transport details.
package aggregates
