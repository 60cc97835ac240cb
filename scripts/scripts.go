// Package scripts embeds the Risor front-end scripts shipped with the
// binary. Scripts live under frontend/, one per language.
package scripts

import "embed"

//go:embed frontend/*.risor
var FS embed.FS
