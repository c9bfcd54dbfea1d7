// Package service installs dashbridge as a per-user background service:
// a launchd agent on macOS, a systemd user unit elsewhere.
package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/joho/godotenv"

	"github.com/chris/dashbridge/config"
)

const (
	name    = "dashbridge"
	label   = "com.dashbridge.server"
	binDest = "/usr/local/bin/dashbridge"
)

// backend is the init-system specific half of the installer.
type backend interface {
	unitPath() string
	render(u unit) (string, error)
	load() error
	unload() error
	start() error
	stop() error
	status() error
	logs() error
}

type unit struct {
	Label     string
	Name      string
	BinPath   string
	WorkDir   string
	StdoutLog string
	StderrLog string
}

func current() backend {
	if runtime.GOOS == "darwin" {
		return launchd{}
	}
	return systemd{}
}

func homeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// Install copies the binary to /usr/local/bin, seeds ~/.dashbridge/config
// from .env if needed, writes the service definition and loads it.
func Install() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}

	input, err := os.ReadFile(exe)
	if err != nil {
		return fmt.Errorf("reading binary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(binDest), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(binDest), err)
	}
	if err := os.WriteFile(binDest, input, 0755); err != nil {
		return fmt.Errorf("copying binary to %s: %w", binDest, err)
	}
	fmt.Printf("installed binary to %s\n", binDest)

	seeded, err := seedConfig(".env", config.ConfigFile())
	if err != nil {
		return err
	}
	if seeded {
		fmt.Printf("seeded config from .env -> %s\n", config.ConfigFile())
	} else {
		fmt.Printf("using config at %s\n", config.ConfigFile())
	}

	b := current()
	def, err := b.render(newUnit(b, resolveWorkDir(config.ConfigFile())))
	if err != nil {
		return fmt.Errorf("generating service definition: %w", err)
	}

	if _, err := os.Stat(b.unitPath()); err == nil {
		_ = b.unload()
	}
	if err := os.MkdirAll(filepath.Dir(b.unitPath()), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(b.unitPath()), err)
	}
	if err := os.WriteFile(b.unitPath(), []byte(def), 0644); err != nil {
		return fmt.Errorf("writing service definition: %w", err)
	}
	fmt.Printf("wrote %s\n", b.unitPath())

	if err := b.load(); err != nil {
		return fmt.Errorf("loading service: %w", err)
	}
	fmt.Println("service loaded and will start on login")
	return nil
}

func newUnit(b backend, workDir string) unit {
	logDir := filepath.Join(homeDir(), "Library", "Logs")
	if _, ok := b.(systemd); ok {
		logDir = config.ConfigDir()
	}
	return unit{
		Label:     label,
		Name:      name,
		BinPath:   binDest,
		WorkDir:   workDir,
		StdoutLog: filepath.Join(logDir, name+"-stdout.log"),
		StderrLog: filepath.Join(logDir, name+"-stderr.log"),
	}
}

// seedConfig copies envFile to configFile when configFile does not exist.
func seedConfig(envFile, configFile string) (bool, error) {
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		return false, nil
	}
	data, err := os.ReadFile(envFile)
	if err != nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
		return false, fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return false, fmt.Errorf("writing config: %w", err)
	}
	return true, nil
}

// resolveWorkDir picks the service working directory. A relative
// DATABASE_PATH is resolved against the directory install ran from.
func resolveWorkDir(configFile string) string {
	envVars, _ := godotenv.Read(configFile)
	if dbPath, ok := envVars["DATABASE_PATH"]; ok && !filepath.IsAbs(dbPath) {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return filepath.Dir(configFile)
}

// Uninstall unloads and removes the service definition and the binary.
func Uninstall() error {
	b := current()
	if _, err := os.Stat(b.unitPath()); err == nil {
		if err := b.unload(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: unload failed: %v\n", err)
		}
		if err := os.Remove(b.unitPath()); err != nil {
			return fmt.Errorf("removing service definition: %w", err)
		}
		fmt.Printf("removed %s\n", b.unitPath())
	} else {
		fmt.Println("service definition not found, skipping")
	}

	if _, err := os.Stat(binDest); err == nil {
		if err := os.Remove(binDest); err != nil {
			return fmt.Errorf("removing binary: %w", err)
		}
		fmt.Printf("removed %s\n", binDest)
	} else {
		fmt.Println("binary not found in /usr/local/bin, skipping")
	}

	fmt.Println("uninstalled")
	return nil
}

func Start() error  { return current().start() }
func Stop() error   { return current().stop() }
func Status() error { return current().status() }
func Logs() error   { return current().logs() }

func Restart() error {
	_ = Stop()
	return Start()
}

func run(bin string, args ...string) error {
	cmd := exec.Command(bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %s", bin, strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return nil
}

func attached(bin string, args ...string) error {
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func renderTemplate(t *template.Template, u unit) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, u); err != nil {
		return "", err
	}
	return buf.String(), nil
}
