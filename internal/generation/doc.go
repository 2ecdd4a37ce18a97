// Package generation defines the provider-neutral boundary to LLM backends:
// the provider capability table, a uniform error taxonomy, and a Dispatcher
// that validates provider/model pairs before any network call and retries
// transient failures with bounded exponential backoff.
package generation
