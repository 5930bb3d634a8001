// Package errs defines custom error types and utilities.
//
// Its purpose is to give every failure of a cart click a consistent
// shape: field errors for a request that never left the page,
// HTTPError for a reply the cart endpoint rejected.
package errs
