package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/dht-node/internal/status"
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
	"onoff": status.LEDString,
	"utc": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>DHT11 Node</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on, .ok { color: green; font-weight: bold; }
.off { color: #888; }
.waiting { color: orange; }
.lost, .disconnected { color: red; }
.connected { color: green; }
button { font-family: monospace; margin-right: 0.5em; }
</style>
</head>
<body>
<h1>DHT11 Node</h1>

<h2>Sensor</h2>
<table>
<tr><th>State</th><td class="{{if eq .SensorState "OK"}}ok{{else if eq .SensorState "LOST"}}lost{{else}}waiting{{end}}">{{.SensorState}}</td></tr>
{{if .Reading}}<tr><th>Temperature</th><td>{{printf "%.1f" .Reading.Temperature}} &deg;C</td></tr>
<tr><th>Humidity</th><td>{{printf "%.1f" .Reading.Humidity}} %RH</td></tr>
<tr><th>Read at</th><td>{{utc .ReadAt}}</td></tr>{{end}}
{{if .LastError}}<tr><th>Last error</th><td>{{.LastError.Kind}}: {{.LastError.Message}} ({{utc .LastError.At}})</td></tr>{{end}}
<tr><th>Pin</th><td>{{.Config.Pin}} ({{.Config.Backend}})</td></tr>
</table>

<h2>LED</h2>
<table>
<tr><th>State</th><td id="led-state" class="{{if .LED}}on{{else}}off{{end}}">{{onoff .LED}}</td></tr>
</table>
<p>
<button data-cmd="ON">On</button><button data-cmd="OFF">Off</button><button data-cmd="TOGGLE">Toggle</button>
</p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Read Counts</h2>
<table>
<tr><th>Readings</th><td>{{.Counts.Readings}}</td></tr>
<tr><th>Failures</th><td>{{.Counts.Failures}}</td></tr>
<tr><th>Timeout</th><td>{{.Counts.Timeout}}</td></tr>
<tr><th>Checksum</th><td>{{.Counts.Checksum}}</td></tr>
<tr><th>Range</th><td>{{.Counts.Range}}</td></tr>
<tr><th>Line</th><td>{{.Counts.Line}}</td></tr>
<tr><th>Sensor lost</th><td>{{.Counts.Lost}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{utc .StartTime}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Attempts</th><td>{{.Config.Attempts}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var el = document.getElementById("led-state");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function(ev) {
    var m = /^LED:(ON|OFF)$/.exec(ev.data);
    if (m) {
      el.textContent = m[1];
      el.className = m[1] === "ON" ? "on" : "off";
    }
  };
  document.querySelectorAll("button[data-cmd]").forEach(function(b) {
    b.onclick = function() { ws.send(b.dataset.cmd); };
  });
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime      time.Duration
		SensorState string
	}{
		Snapshot:    snap,
		Uptime:      snap.Uptime(),
		SensorState: snap.SensorState(),
	}
	return indexTmpl.Execute(w, data)
}
