// Package appfs embeds the files the binaries need at run time: database migrations, templates,
// static assets and the default fixtures.
package appfs

import "embed"

//go:embed migrations/*.sql templates templates/email/_base.* assets fixtures
var FS embed.FS
