// Package mediatypes centralizes file classification for the scanner:
// which extensions count as indexable footage, which are subtitle
// sidecars, and their MIME types.
package mediatypes
