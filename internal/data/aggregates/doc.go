// Package aggregates implements the structural write boundaries: the taxonomy
// closure table, the route tree and blueprint embeds.
//
// Each write composes table repos from internal/data/repos inside one
// transaction, locks the rows its invariant depends on, and maps failures to
// domain aggregate error codes.
package aggregates
