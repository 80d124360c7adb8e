package rescuepost

import "embed"

// EmbeddedAssets contains static assets shipped with the app:
// dashboard.js and style.css.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
