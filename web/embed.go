package web

import "embed"

// Content holds the embedded pointing dashboard (index.html, app.js,
// styles.css), served at the admin API root.
//
//go:embed index.html app.js styles.css
var Content embed.FS
