package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/train-diorama/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Train Diorama</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.active { color: green; font-weight: bold; }
.idle { color: #888; }
.errors { color: red; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Train Diorama</h1>

<h2>Inputs</h2>
<table>
<tr><th>Name</th><th>Kind</th><th>State</th><th>On</th><th>Off</th><th>Errors</th></tr>
{{range .Inputs}}<tr>
<td>{{.Name}}</td>
<td>{{index $.Kinds .Name}}</td>
<td class="{{if .Active}}active{{else}}idle{{end}}">{{if .Active}}ACTIVE{{else}}idle{{end}}</td>
<td>{{.Counts.Activations}}</td>
<td>{{.Counts.Deactivations}}</td>
<td{{if or .Counts.DispatchErrors .Counts.ReadErrors}} class="errors"{{end}}>{{.Counts.DispatchErrors}} / {{.Counts.ReadErrors}}</td>
</tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Outbox</th><td>{{.MQTTBuffered}}</td></tr>
{{range $topic, $n := .MQTTDropped}}<tr><th>Dropped</th><td class="errors">{{$topic}}: {{$n}}</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Ticks</th><td>{{.Ticks}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	kinds := make(map[string]string, len(snap.Config.Inputs))
	for _, in := range snap.Config.Inputs {
		kinds[in.Name] = in.Kind
	}
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Kinds  map[string]string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Kinds:    kinds,
	}
	return indexTmpl.Execute(w, data)
}
