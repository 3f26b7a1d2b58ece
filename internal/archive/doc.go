// Package archive builds and reads the zip archives that carry packaged
// firmware releases.
package archive
