// Package dashboard provides the embedded web assets for the state inspector.
//
// The inspector page is compiled into the binary so the CLI ships as a single
// file. It is served by the inspector package at "/".
package dashboard

import "embed"

// Assets is an embedded filesystem containing the inspector page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - inspector page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
