// Package component defines the lifecycle contract shared by pbkit's
// long-running parts (the realtime engine, the test server) and a
// registry that starts them in order and stops them in reverse.
package component
