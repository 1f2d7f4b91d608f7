package web

import (
	"fmt"
	"html/template"
	"io"
	"time"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"bytes":  humanBytes,
	"orNone": orNone,
}).Parse(indexHTML))

func formatUptime(d time.Duration) string {
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
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func humanBytes(v any) string {
	var n float64
	switch x := v.(type) {
	case uint64:
		n = float64(x)
	case int64:
		n = float64(x)
	case int:
		n = float64(x)
	default:
		return fmt.Sprint(v)
	}
	units := []string{"B", "KiB", "MiB", "GiB", "TiB"}
	i := 0
	for n >= 1024 && i < len(units)-1 {
		n /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f %s", n, units[i])
	}
	return fmt.Sprintf("%.1f %s", n, units[i])
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.Hostname}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>{{.Config.Hostname}}<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Unit</h2>
<table>
<tr><th>Serial number</th><td>{{orNone .SerialNumber}}</td></tr>
<tr><th>Indoor</th><td id="ist">-</td></tr>
<tr><th>Outdoor</th><td id="aussen">-</td></tr>
<tr><th>Setpoint</th><td id="soll">-</td></tr>
<tr><th>Power</th><td id="on">-</td></tr>
<tr><th>Last status</th><td>{{if .LastStatusAt.IsZero}}never{{else}}{{.LastStatusAt.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Interface</th><td>{{.Network.Interface}} ({{if .Network.Up}}up{{else}}down{{end}})</td></tr>
<tr><th>SSID</th><td>{{orNone .Network.SSID}}</td></tr>
<tr><th>RSSI</th><td>{{.Network.RSSI}} dBm</td></tr>
<tr><th>IP</th><td>{{orNone .Network.IP}}</td></tr>
<tr><th>Mask</th><td>{{orNone .Network.Mask}}</td></tr>
<tr><th>Gateway</th><td>{{orNone .Network.Gateway}}</td></tr>
<tr><th>MAC</th><td>{{orNone .Network.MAC}}</td></tr>
</table>

<h2>Counters</h2>
<table>
<tr><th>Status published</th><td>{{.Counts.StatusPublished}}</td></tr>
<tr><th>Status dropped</th><td>{{.Counts.StatusDropped}}</td></tr>
<tr><th>Commands forwarded</th><td>{{.Counts.CommandsForwarded}}</td></tr>
<tr><th>Commands rejected</th><td>{{.Counts.CommandsRejected}}</td></tr>
<tr><th>Reconnects</th><td>{{.Counts.Reconnects}}</td></tr>
<tr><th>Polls</th><td>{{.Counts.Polls}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Version</th><td>{{.Config.Version}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>CPU</th><td>{{orNone .System.CPUModel}} ({{.System.CPUCores}} cores, {{printf "%.0f" .System.CPUMHz}} MHz)</td></tr>
<tr><th>Go</th><td>{{.System.GoVersion}} {{.System.OS}}/{{.System.Arch}}</td></tr>
<tr><th>Kernel</th><td>{{orNone .System.Kernel}}</td></tr>
<tr><th>Heap</th><td>{{bytes .System.HeapAlloc}} of {{bytes .System.HeapSys}} ({{printf "%.1f" .System.HeapFragmentation}}% fragmented)</td></tr>
<tr><th>Goroutines</th><td>{{.System.Goroutines}}</td></tr>
<tr><th>Memory</th><td>{{bytes .System.MemAvailable}} free of {{bytes .System.MemTotal}}</td></tr>
<tr><th>Binary</th><td>{{bytes .System.BinarySize}}</td></tr>
<tr><th>Disk</th><td>{{bytes .System.DiskFree}} free of {{bytes .System.DiskTotal}} ({{.Config.DataDir}})</td></tr>
<tr><th>Serial port</th><td>{{.Config.SerialPort}}</td></tr>
</table>

<p><a href="/status.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function set(id, v) {
    document.getElementById(id).textContent = v;
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var st = JSON.parse(ev.data)[0];
        set("ist", st.ist.toFixed(1) + " °C");
        set("aussen", st.aussen.toFixed(1) + " °C");
        set("soll", st.conf.soll + " °C");
        set("on", st.conf.on ? "on" : "off");
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, p page) error {
	return indexTmpl.Execute(w, p)
}
