// Package appfs embeds files needed at runtime (database migrations).
package appfs

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
