// Package notifier delivers desktop notifications through the stride-tray
// companion app. The tray writes a lockfile with its webhook port, PID, and a
// shared secret; we validate the process is really stride-tray before posting
// to it. When the tray is not running, notifications are dropped with a log
// line, never an error surfaced to the streak path.
package notifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/stride-app/stride/internal/constants"
	"github.com/stride-app/stride/internal/logger"
	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/streak"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

// SettingsReader is the slice of the storage provider the notifier needs to
// honor the notifications toggle at delivery time.
type SettingsReader interface {
	GetSettings() (models.Settings, error)
}

type Notifier struct {
	settings SettingsReader
}

type WebhookPayload struct {
	Text       string `json:"text"`
	DurationMs uint32 `json:"duration_ms"`
}

func New(settings SettingsReader) *Notifier {
	return &Notifier{settings: settings}
}

// enabled consults the notifications toggle. An unreadable settings store
// drops the notification rather than overriding a possible opt-out.
func (n *Notifier) enabled() bool {
	if n.settings == nil {
		return true
	}
	settings, err := n.settings.GetSettings()
	if err != nil {
		logger.Debug("Could not read notification setting", "error", err)
		return false
	}
	return settings.NotificationsEnabled
}

// Events returns streak event hooks that deliver through the tray. Hooks
// never propagate delivery failures; a missing tray is an expected state,
// and a disabled notifications setting suppresses delivery entirely.
func (n *Notifier) Events() streak.Events {
	deliver := func(text string) {
		if !n.enabled() {
			return
		}
		if err := n.Notify(text); err != nil {
			logger.Debug("Notification dropped", "reason", err)
		}
	}
	return streak.Events{
		GoalMet: func(day string) {
			deliver("Daily step goal met. Nice work!")
		},
		StreakMilestone: func(days int) {
			deliver(fmt.Sprintf("%d day streak! Keep it going.", days))
		},
		StreakBroken: func() {
			deliver("Your streak has ended. A new one starts with your next goal.")
		},
		ShieldAutoDeployed: func(day string) {
			deliver(fmt.Sprintf("A shield covered %s. Your streak is safe.", day))
		},
		ShieldLow: func(remaining int) {
			if remaining == 0 {
				deliver("That was your last shield. The bank is empty.")
				return
			}
			deliver(fmt.Sprintf("Shields running low: %d left.", remaining))
		},
	}
}

func (n *Notifier) Notify(text string) error {
	trayConfigPath, err := GetTrayAppConfigDir()
	if err != nil {
		return err
	}

	port, secret, err := findAndValidateTrayProcess(filepath.Join(trayConfigPath, constants.NotifierLockfileName))
	if err != nil {
		return err
	}

	payload := WebhookPayload{
		Text:       text,
		DurationMs: constants.NotificationDurationMs,
	}

	return sendNotification(port, secret, payload)
}

// GetTrayAppConfigDir resolves the tray app's config directory. The tray's
// settings.json may point the lockfile at a custom location.
func GetTrayAppConfigDir() (string, error) {
	base, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	trayDir := filepath.Join(base, constants.TrayAppIdentifier)

	if override := lockfileDirOverride(trayDir); override != "" {
		return override, nil
	}
	return trayDir, nil
}

func lockfileDirOverride(trayDir string) string {
	data, err := os.ReadFile(filepath.Join(trayDir, "settings.json"))
	if err != nil {
		return ""
	}
	var store struct {
		Settings struct {
			LockfileDir *string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if json.Unmarshal(data, &store) != nil || store.Settings.LockfileDir == nil {
		return ""
	}
	return *store.Settings.LockfileDir
}

// trayEndpoint is the parsed "port|pid|secret" lockfile the tray writes.
type trayEndpoint struct {
	port   string
	pid    int
	secret string
}

func parseLockfile(content string) (trayEndpoint, error) {
	parts := strings.Split(strings.TrimSpace(content), "|")
	if len(parts) != 3 {
		return trayEndpoint{}, errors.New("lockfile is malformed")
	}

	ep := trayEndpoint{port: parts[0], secret: parts[2]}
	portNum, err := strconv.Atoi(ep.port)
	if err != nil || portNum < 1 || portNum > 65535 {
		return trayEndpoint{}, fmt.Errorf("invalid port in lockfile: %q", ep.port)
	}
	if ep.pid, err = strconv.Atoi(parts[1]); err != nil {
		return trayEndpoint{}, fmt.Errorf("invalid pid in lockfile: %q", parts[1])
	}
	if ep.secret == "" {
		return trayEndpoint{}, errors.New("empty secret in lockfile")
	}
	return ep, nil
}

// findAndValidateTrayProcess reads the lockfile and confirms the recorded PID
// is a live process whose executable looks like the tray app. A stale
// lockfile from a crashed tray must not make us post the secret to whatever
// process now owns that port.
func findAndValidateTrayProcess(lockfilePath string) (string, string, error) {
	content, err := os.ReadFile(lockfilePath)
	if err != nil {
		return "", "", errors.New(constants.TrayAppIdentifier + " is not running")
	}

	ep, err := parseLockfile(string(content))
	if err != nil {
		return "", "", err
	}

	proc, err := findProcessFunc(ep.pid)
	if err != nil || proc == nil {
		return "", "", errors.New(constants.TrayAppIdentifier + " process not running")
	}
	if !strings.HasPrefix(proc.Executable(), constants.TrayAppIdentifier) {
		return "", "", fmt.Errorf("process with PID %d is not %s (is %s)", ep.pid, constants.TrayAppIdentifier, proc.Executable())
	}

	return ep.port, ep.secret, nil
}

func sendNotification(port string, secret string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, "http://127.0.0.1:"+port, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Stride-Secret", secret)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("tray rejected notification with status %d: %s", res.StatusCode, string(msg))
	}
	return nil
}
