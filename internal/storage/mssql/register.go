package mssql

import "serpcarousel/internal/storage"

func init() {
	// registers the backend factory
	storage.Register("mssql", New)
}
