// Package autostart launches the health manager at login on each desktop platform
package autostart

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
)

const (
	appName        = "health-manager"
	appDisplayName = "Health Manager"

	runKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

	osLinux   = "linux"
	osWindows = "windows"
	osDarwin  = "darwin"
)

// ErrUnsupported is returned on platforms without an autostart mechanism
var ErrUnsupported = errors.New("autostart not supported on this platform")

// Launcher installs and removes the login entry. The zero value is not
// usable; call New.
type Launcher struct {
	goos      string
	configDir string
	homeDir   string
	execPath  func() (string, error)
	run       func(name string, args ...string) error
}

// New returns a launcher for the running platform
func New() *Launcher {
	home, _ := os.UserHomeDir()
	return &Launcher{
		goos:      runtime.GOOS,
		configDir: xdg.ConfigHome,
		homeDir:   home,
		execPath:  os.Executable,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run() //nolint:gosec // fixed commands, arguments from os.Executable
		},
	}
}

// IsEnabled checks if auto-start is enabled
func (l *Launcher) IsEnabled() (bool, error) {
	switch l.goos {
	case osLinux, osDarwin:
		_, err := os.Stat(l.entryPath())
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	case osWindows:
		return l.run("reg", "query", runKey, "/v", appName) == nil, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupported, l.goos)
	}
}

// Set enables or disables auto-start
func (l *Launcher) Set(enabled bool) error {
	if enabled {
		return l.Enable()
	}
	return l.Disable()
}

// Enable installs the login entry for the current executable
func (l *Launcher) Enable() error {
	execPath, err := l.execPath()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	switch l.goos {
	case osLinux:
		return l.writeEntry(desktopEntry(execPath))
	case osDarwin:
		return l.writeEntry(launchAgent(execPath))
	case osWindows:
		return l.run("reg", "add", runKey, "/v", appName, "/t", "REG_SZ", "/d", execPath, "/f")
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, l.goos)
	}
}

// Disable removes the login entry. Removing a missing entry is not an error.
func (l *Launcher) Disable() error {
	switch l.goos {
	case osLinux:
		return removeIfExists(l.entryPath())
	case osDarwin:
		// The agent may not be loaded
		_ = l.run("launchctl", "unload", l.entryPath())
		return removeIfExists(l.entryPath())
	case osWindows:
		err := l.run("reg", "delete", runKey, "/v", appName, "/f")
		if err != nil && strings.Contains(err.Error(), "not exist") {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, l.goos)
	}
}

// entryPath is the XDG autostart file on Linux and the LaunchAgent on macOS
func (l *Launcher) entryPath() string {
	if l.goos == osDarwin {
		return filepath.Join(l.homeDir, "Library", "LaunchAgents", "com."+appName+".plist")
	}
	return filepath.Join(l.configDir, "autostart", appName+".desktop")
}

func (l *Launcher) writeEntry(content string) error {
	path := l.entryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func desktopEntry(execPath string) string {
	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Exec=%s
Icon=%s
Comment=Personal health measurements dashboard
Categories=Utility;
Terminal=false
StartupNotify=false
X-GNOME-Autostart-enabled=true
`, appDisplayName, execPath, appName)
}

func launchAgent(execPath string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.%s</string>
    <key>ProgramArguments</key>
    <array>
        <string>%s</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`, appName, execPath)
}
