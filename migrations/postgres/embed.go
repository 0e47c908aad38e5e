// Package migrations embeds SQL migration files.
package migrations

import "embed"

// SignerFS contains the migrations for the postgres signer store.
//
//go:embed signer/*.sql
var SignerFS embed.FS

// SignerDir is the directory within SignerFS where migrations live.
const SignerDir = "signer"
