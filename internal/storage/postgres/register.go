package postgres

import "serpcarousel/internal/storage"

func init() {
	// registers the backend factory
	storage.Register("postgres", New)
}
