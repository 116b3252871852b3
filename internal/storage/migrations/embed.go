package migrations

import "embed"

// files holds one directory of numbered .sql files per dialect.
//
//go:embed postgres/*.sql clickhouse/*.sql
var files embed.FS
