// Package pages holds the server-rendered HTML pages of the catalog. The API
// is JSON; HTML is only produced for browser-facing errors such as a
// missing upload.
package pages

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

const errorStyle = `body{font-family:system-ui,sans-serif;background:#f7f7f8;color:#1f2933;` +
	`display:flex;min-height:100vh;align-items:center;justify-content:center;margin:0}` +
	`main{text-align:center}h1{font-size:4rem;margin:0;color:#9aa5b1}p{margin:.5rem 0 0}`

// ErrorPage renders a minimal error document for the given status code.
// message is escaped; callers pass client-safe messages only.
func ErrorPage(code int, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := http.StatusText(code)
		if title == "" {
			title = "Error"
		}
		_, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
				`<meta name="viewport" content="width=device-width, initial-scale=1">`+
				`<title>%d %s</title><style>%s</style></head>`+
				`<body><main><h1>%d</h1><h2>%s</h2><p>%s</p></main></body></html>`,
			code, templ.EscapeString(title), errorStyle,
			code, templ.EscapeString(title), templ.EscapeString(message),
		)
		return err
	})
}
