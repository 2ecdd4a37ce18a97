// Package api exposes the generation, matching score, credit and template
// administration operations over HTTP. Handlers stay thin: they decode and
// validate input, call a service and map its errors onto status codes.
package api
