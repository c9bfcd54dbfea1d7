package grafana

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Summarize renders a dashboard document as the context block given to the
// model. A document without a title yields only the UID line.
func Summarize(doc []byte) string {
	dash := gjson.GetBytes(doc, "dashboard")
	uid := orDefault(dash.Get("uid"), "None")

	if !dash.Get("title").Exists() {
		return "Dashboard UID: " + uid
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dashboard Title: %s\n", orDefault(dash.Get("title"), "Unknown"))
	fmt.Fprintf(&b, "Description: %s\n", orDefault(dash.Get("description"), "No description"))
	fmt.Fprintf(&b, "Dashboard ID: %s\n", orDefault(dash.Get("id"), "None"))
	fmt.Fprintf(&b, "Dashboard UID: %s\n", uid)
	b.WriteString("\nPanels in this dashboard:\n")

	dash.Get("panels").ForEach(func(_, panel gjson.Result) bool {
		fmt.Fprintf(&b, "\n- Panel: %s\n", orDefault(panel.Get("title"), "Untitled"))
		fmt.Fprintf(&b, "Type: %s\n", orDefault(panel.Get("type"), "Unknown"))
		fmt.Fprintf(&b, "Description: %s\n", orDefault(panel.Get("description"), "No description"))
		fmt.Fprintf(&b, "Query: %s\n", orDefault(panel.Get("targets.0.expr"), "No query"))
		return true
	})
	return strings.TrimRight(b.String(), "\n")
}

func orDefault(r gjson.Result, def string) string {
	if !r.Exists() || r.Type == gjson.Null {
		return def
	}
	return r.String()
}
