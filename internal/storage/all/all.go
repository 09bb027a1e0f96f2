// Package all registers every storage backend via blank imports.
//
// Commands that select a backend from config import this package once
// instead of tracking individual backends.
package all

import (
	_ "serpcarousel/internal/storage/mssql"
	_ "serpcarousel/internal/storage/postgres"
	_ "serpcarousel/internal/storage/sqlite"
)
