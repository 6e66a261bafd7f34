// Package startup owns process bring-up: environment configuration,
// the startup banner and system information log, and the structured
// log helpers used while the daemon starts and shuts down.
package startup
