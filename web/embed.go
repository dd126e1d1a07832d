package web

import "embed"

// TemplatesFS holds the dashboard layout and its HTMX partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the chart wiring script.
//
//go:embed static/*
var StaticFS embed.FS
