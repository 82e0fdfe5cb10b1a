// Package plugins hosts rule plugin subpackages. Plugins depend only on the
// internal/core facade so they stay decoupled from the domain package and
// the storage backends.
package plugins
