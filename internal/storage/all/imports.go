// Package all wires the built-in storage backends into the storage
// factory. It exists purely for side effects: a blank import runs each
// backend's init, which registers its factory.
//
//	_ "irpfetl/internal/storage/all" // enable postgres + sqlite
package all

import (
	_ "irpfetl/internal/storage/postgres"
	_ "irpfetl/internal/storage/sqlite"
)
