// Package postgres implements the store, catalog and ledger contracts on
// PostgreSQL. Schema changes live in embedded goose migrations; driver
// errors are translated into store sentinels so callers never see pgconn
// types.
package postgres
