// Package web embeds the page templates and static assets.
package web

import "embed"

// TemplatesFS holds the html/template sources parsed at startup.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and script served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
