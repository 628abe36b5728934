package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/keypad-sensor/internal/keypad"
	"github.com/sweeney/keypad-sensor/internal/status"
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
	"stopwatch": formatStopwatch,
	"keyLabel": func(snap status.Snapshot, k keypad.Key) string {
		if k == keypad.NoKey {
			return "none"
		}
		if name := snap.KeyName(k); name != "" {
			return fmt.Sprintf("%d (%s)", k, name)
		}
		return fmt.Sprintf("%d", k)
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(indexHTML))

// formatStopwatch renders d as m:ss.cc.
func formatStopwatch(d time.Duration) string {
	cs := d.Milliseconds() / 10
	return fmt.Sprintf("%d:%02d.%02d", cs/6000, (cs/100)%60, cs%100)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Keypad Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: green; font-weight: bold; }
.long { color: darkorange; font-weight: bold; }
.inactive { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Keypad Sensor{{if .Live}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Keypad</h2>
<table>
<tr><th>Key</th><td id="key" class="{{if eq .KeyStatus.String "ACTIVE"}}active{{else if eq .KeyStatus.String "LONG"}}long{{else}}inactive{{end}}">{{keyLabel .Snapshot .Key}}</td></tr>
<tr><th>State</th><td id="key-status">{{.KeyStatus}}</td></tr>
<tr><th>Last event</th><td id="last-event">{{if .Last}}{{.Last.Kind}} {{keyLabel .Snapshot .Last.Key}}{{if .Last.Action}} &rarr; {{.Last.Action}}{{end}}{{else}}none{{end}}</td></tr>
<tr><th>Read errors</th><td>{{.ReadErrors}}</td></tr>
</table>

<h2>Stopwatch</h2>
<table>
<tr><th>State</th><td id="sw-state">{{if .Stopwatch.Running}}running{{else}}stopped{{end}}</td></tr>
<tr><th>Time</th><td>{{stopwatch .Stopwatch.Current}}</td></tr>
<tr><th>Lap</th><td>{{inc .Stopwatch.Lap}}</td></tr>
{{range $i, $l := .Stopwatch.Laps}}{{if $l}}<tr><th>Lap {{inc $i}}</th><td>{{stopwatch $l}}</td></tr>
{{end}}{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>PRESSED</th><td>{{.Counts.Pressed}}</td></tr>
<tr><th>RELEASED</th><td>{{.Counts.Released}}</td></tr>
<tr><th>LONG_PRESSED</th><td>{{.Counts.LongPressed}}</td></tr>
<tr><th>LONG_RELEASED</th><td>{{.Counts.LongReleased}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>ADC</th><td>{{.Config.ADC}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Check interval</th><td>{{.Config.CheckIntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Live}}
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var keyEl = document.getElementById("key");
  var lastEl = document.getElementById("last-event");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function label(ev) {
    return ev.name ? ev.key + " (" + ev.name + ")" : String(ev.key);
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(m) {
      try {
        var msg = JSON.parse(m.data);
        if (msg.type !== "key_event") return;
        var ev = msg.data;
        lastEl.textContent = ev.event + " " + label(ev) + (ev.action ? " → " + ev.action : "");
        if (ev.event === "PRESSED" || ev.event === "LONG_PRESSED") {
          keyEl.textContent = label(ev);
          keyEl.className = ev.event === "PRESSED" ? "active" : "long";
        } else {
          keyEl.textContent = "none";
          keyEl.className = "inactive";
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, live bool) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Live   bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Live:     live,
	}
	indexTmpl.Execute(w, data)
}
