package service

import (
	"fmt"
	"path/filepath"
	"text/template"
)

type systemd struct{}

func (systemd) unitPath() string {
	return filepath.Join(homeDir(), ".config", "systemd", "user", name+".service")
}

func (systemd) render(u unit) (string, error) { return renderTemplate(unitTemplate, u) }

func (systemd) load() error {
	if err := run("systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return run("systemctl", "--user", "enable", "--now", name+".service")
}

func (systemd) unload() error {
	return run("systemctl", "--user", "disable", "--now", name+".service")
}

func (systemd) start() error { return run("systemctl", "--user", "start", name+".service") }
func (systemd) stop() error  { return run("systemctl", "--user", "stop", name+".service") }

func (systemd) status() error {
	if err := attached("systemctl", "--user", "status", "--no-pager", name+".service"); err != nil {
		fmt.Println("service is not running")
	}
	return nil
}

func (systemd) logs() error {
	return attached("journalctl", "--user", "-f", "-u", name+".service")
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=Grafana dashboard assistant bridge
After=network-online.target

[Service]
ExecStart={{.BinPath}} serve
WorkingDirectory={{.WorkDir}}
Restart=always
RestartSec=5

[Install]
WantedBy=default.target
`))
