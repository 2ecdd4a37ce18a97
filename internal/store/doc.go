// Package store declares the persistence contracts for applications,
// generation tasks, generated documents and matching scores, along with the
// sentinel errors every implementation maps its driver failures onto.
package store
