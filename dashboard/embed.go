// Package dashboard embeds the job dashboard served by the local gateway.
//
// The page lists tracked Pianista jobs and keeps them current through the
// gateway's Server-Sent Events stream. It is compiled into the binary, so
// `pianista serve` needs no asset files on disk.
package dashboard

import "embed"

// Assets holds the dashboard files:
//
//	assets/
//	  index.html    - job table with inline CSS and JavaScript
//
// The server substitutes {{.Title}} in index.html before serving it.
//
//go:embed assets/*
var Assets embed.FS
