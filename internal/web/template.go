package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/conveyor-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"deg": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Conveyor Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.clear { color: green; font-weight: bold; }
.obstructed { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Conveyor Sensor</h1>

<h2>Box Counter</h2>
<table>
<tr><th>Total detected</th><td id="box-count"><strong>{{.BoxCount}}</strong></td></tr>
<tr><th>Proximity</th><td id="proximity" class="{{if eq .Proximity.String "CLEAR"}}clear{{else}}obstructed{{end}}">{{.Proximity}}</td></tr>
</table>

<h2>Angle Sensor</h2>
<table>
<tr><th>Sensor</th><td id="angle-sensor" class="{{if .AngleConnected}}connected{{else}}disconnected{{end}}">{{if .AngleConnected}}connected{{else}}not connected{{end}}</td></tr>
{{if .Angle.Valid}}<tr><th>Angle</th><td id="angle-raw">{{.Angle.Angle}} (raw {{.Angle.Raw}})</td></tr>
<tr><th>Degrees</th><td id="angle-deg">{{deg .Angle.Degrees}}&deg;</td></tr>{{else}}<tr><th>Angle</th><td>no reading yet</td></tr>{{end}}
</table>

<h2>Node</h2>
<table>
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
<tr><th>Network</th><td>{{.Connectivity}}{{if .Address}} ({{.Address}}){{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
</table>

<p>Refreshes every 2 seconds. <a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("render status page: %v", err)
	}
}
