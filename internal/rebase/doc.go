// Package rebase repairs stored absolute paths after a watched folder
// moves, for example when a volume remounts at a different point. Every
// path rooted under the old location is rewritten in one transaction.
package rebase
