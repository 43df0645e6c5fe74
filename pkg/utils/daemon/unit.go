package daemon

import (
	"os"
	"path/filepath"
	"strings"
)

const unitName = "battrem.service"

const unitTemplate = `[Unit]
Description=Battery charge reminder
Documentation=https://github.com/charlie0129/battrem
After=graphical-session.target

[Service]
Type=simple
ExecStart=/path/to/battrem daemon
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// unitPath is where the user unit lives, normally
// ~/.config/systemd/user/battrem.service.
func unitPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "systemd", "user", unitName), nil
}

// renderUnit fills the template with the executable and extra daemon flags.
func renderUnit(exePath string, daemonArgs []string) string {
	execStart := exePath + " daemon"
	if len(daemonArgs) > 0 {
		execStart += " " + strings.Join(daemonArgs, " ")
	}
	return strings.ReplaceAll(unitTemplate, "/path/to/battrem daemon", execStart)
}
