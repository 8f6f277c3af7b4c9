// Package songapi provides clients for the song generation backend: an HTTP
// client for the real service and an in-process stub used for local
// development and tests.
package songapi
