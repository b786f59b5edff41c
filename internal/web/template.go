package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/crate-controller/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"stateClass": func(s string) string {
		switch s {
		case "OPENING", "CLOSING":
			return "moving"
		case "IDLE", "OPEN", "CLOSED":
			return "rest"
		}
		return "unknown"
	},
	"label": func(path string) string {
		return strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", " ")
	},
	"isQuery": func(path string) bool {
		return strings.HasSuffix(path, "/get")
	},
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Crate Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
button { font-family: monospace; margin: 2px; padding: 6px 10px; }
.moving { color: orange; font-weight: bold; }
.rest { color: green; font-weight: bold; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Crate Controller{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Variant</th><td>{{.Config.Variant}}</td></tr>
<tr><th>Crate</th><td id="crate-state" class="{{stateClass (printf "%s" .State)}}">{{stateOrUnknown (printf "%s" .State)}}</td></tr>
<tr><th>Move remaining</th><td>{{if .Remaining}}{{.Remaining}}{{else}}-{{end}}</td></tr>
<tr><th>Lock</th><td>{{if .Locked}}LOCKED{{else}}UNLOCKED{{end}}</td></tr>
<tr><th>Reset</th><td>{{if .ResetPressed}}PRESSED{{else}}NOT PRESSED{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Last event</th><td id="last-event">{{with .LastEvent}}{{.Type}} ({{.Source}}{{if .Reason}}: {{.Reason}}{{end}}){{else}}-{{end}}</td></tr>
</table>

<h2>Relays</h2>
<table>
<tr><th>Forward</th><td class="{{onOff .Relays.Forward}}">{{onOff .Relays.Forward}}</td></tr>
<tr><th>Reverse</th><td class="{{onOff .Relays.Reverse}}">{{onOff .Relays.Reverse}}</td></tr>
<tr><th>Drawer lock</th><td class="{{onOff .Relays.DrawerLock}}">{{onOff .Relays.DrawerLock}}</td></tr>
<tr><th>Spare</th><td class="{{onOff .Relays.Spare}}">{{onOff .Relays.Spare}}</td></tr>
</table>

<h2>Commands</h2>
<p>{{range .Paths}}<button data-path="{{.}}"{{if isQuery .}} class="query"{{end}}>{{label .}}</button>{{end}}</p>
<p id="reply"></p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Opens</th><td>{{.Counts.Opens}}</td></tr>
<tr><th>Closes</th><td>{{.Counts.Closes}}</td></tr>
<tr><th>Stops</th><td>{{.Counts.Stops}}</td></tr>
<tr><th>Denials</th><td>{{.Counts.Denials}}</td></tr>
<tr><th>Timeouts</th><td>{{.Counts.Timeouts}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Move timeout</th><td>{{.Config.MoveTimeoutMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var reply = document.getElementById("reply");
  document.querySelectorAll("button[data-path]").forEach(function(b) {
    b.addEventListener("click", function() {
      var path = b.getAttribute("data-path");
      fetch(path).then(function(r) { return r.text(); }).then(function(text) {
        reply.textContent = path + ": " + (text.trim() || "ok");
        if (!b.classList.contains("query")) { setTimeout(function() { location.reload(); }, 500); }
      }).catch(function(e) { reply.textContent = path + ": " + e; });
    });
  });
})();
</script>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "escape/crate/events";
  var dot = document.getElementById("live-dot");
  var stateEl = document.getElementById("crate-state");
  var lastEl = document.getElementById("last-event");

  function setState(state) {
    stateEl.textContent = state;
    stateEl.className = (state === "OPENING" || state === "CLOSING") ? "moving" : "rest";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.crate) {
        setState(msg.crate.state);
        lastEl.textContent = msg.crate.event + " (" + msg.crate.source + (msg.crate.reason ? ": " + msg.crate.reason : "") + ")";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, paths []string) {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Remaining time.Duration
		Paths     []string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Remaining: snap.DeadlineRemaining().Truncate(100 * time.Millisecond),
		Paths:     paths,
	}
	indexTmpl.Execute(w, data)
}
