// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package imagerelay

import (
	"html/template"
	"net/http"
)

type optionDoc struct {
	Name        string
	Description string
}

var optionDocs = []optionDoc{
	{optWidth, "Resize image width (1-10000 pixels)"},
	{optHeight, "Resize image height (1-10000 pixels)"},
	{optSize, "Resize both width and height to the same value (1-10000 pixels)"},
	{optQuality, "Output quality (1-100, default 80)"},
	{optFormat, "Output format: png, jpeg or webp (default: the source format)"},
	{optRounded, "Round the corners, as a percentage of half the shorter side (0-100)"},
	{optOptimize, "Optimize the image and return a webp image unless a format is given"},
}

var usageTemplate = template.Must(template.New("usage").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>imagerelay</title>
<style>
body { font-family: system-ui, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 2rem; }
code { background: #eee; padding: 0.2rem 0.4rem; border-radius: 4px; }
</style>
</head>
<body>
<h1>imagerelay</h1>
<p>Transforms remote images on the fly.</p>

<h2>Usage</h2>
<p><code>GET /{url-encoded image URL}?optimize=true</code></p>
<p>At least one option must be given. Images are cached, so repeated requests are cheap.</p>

<h2>Options</h2>
{{range .}}<div><code>{{.Name}}</code> - {{.Description}}</div>
{{end}}
</body>
</html>
`))

// serveUsage writes an HTML page describing the available options.
func serveUsage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	usageTemplate.Execute(w, optionDocs)
}
