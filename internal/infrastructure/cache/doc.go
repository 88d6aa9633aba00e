// Package cache holds the short-lived shared state of the service: the
// in-flight claims of VAT validations and the stored plan feature rows.
// Both come in a process-local flavour and a Redis flavour; Open picks one
// from configuration.
package cache
