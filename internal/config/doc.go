// Package config loads server, database, auth, provider, task and credit
// settings from an optional YAML file and BEWERBUNG_* environment variables,
// then validates the result before anything else starts.
package config
