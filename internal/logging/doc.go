// Package logging is the daemon's leveled logger. Levels are debug,
// info, warn, and error, selected once per process from the LOG_LEVEL
// environment variable (DEBUG=1 forces debug). Fatal logs and exits.
//
// Output goes through the standard library logger, one line per
// message, prefixed with the upper-cased level.
package logging
