// Package web embeds the demo application's HTML templates.
package web

import "embed"

//go:embed templates
var Templates embed.FS
