package service

import (
	"fmt"
	"path/filepath"
	"text/template"
)

type launchd struct{}

func (launchd) unitPath() string {
	return filepath.Join(homeDir(), "Library", "LaunchAgents", label+".plist")
}

func (launchd) render(u unit) (string, error) { return renderTemplate(plistTemplate, u) }
func (l launchd) load() error                 { return run("launchctl", "load", l.unitPath()) }
func (l launchd) unload() error               { return run("launchctl", "unload", l.unitPath()) }
func (launchd) start() error                  { return run("launchctl", "start", label) }
func (launchd) stop() error                   { return run("launchctl", "stop", label) }

func (launchd) status() error {
	if err := attached("launchctl", "list", label); err != nil {
		fmt.Println("service is not loaded")
	}
	return nil
}

func (l launchd) logs() error {
	u := newUnit(l, "")
	return attached("tail", "-f", u.StdoutLog, u.StderrLog)
}

var plistTemplate = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinPath}}</string>
		<string>serve</string>
	</array>
	<key>WorkingDirectory</key>
	<string>{{.WorkDir}}</string>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>{{.StdoutLog}}</string>
	<key>StandardErrorPath</key>
	<string>{{.StderrLog}}</string>
</dict>
</plist>
`))
