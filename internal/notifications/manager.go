// Package notifications handles desktop alerts for out-of-range measurements
package notifications

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/health-manager/internal/models"
	"github.com/mrcode/health-manager/internal/tray"
)

const appName = "Health Manager"

// NotifyFunc delivers one desktop notification
type NotifyFunc func(title, message string) error

type alertKey struct {
	name   string
	status string
}

// Manager checks new measurements against the user's thresholds
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[alertKey]time.Time
	notify        NotifyFunc
	now           func() time.Time
	log           *slog.Logger
	mu            sync.Mutex
}

// NewManager creates a notification manager that sends through beeep
func NewManager(settings *models.Settings, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[alertKey]time.Time),
		notify:        func(title, message string) error { return beeep.Notify(title, message, "") },
		now:           time.Now,
		log:           log,
	}
}

// SetNotifier replaces the delivery function
func (m *Manager) SetNotifier(fn NotifyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// CheckAndNotify classifies the newest row of each measurement in rows and
// alerts for those outside their thresholds. It returns the number of
// notifications sent.
func (m *Manager) CheckAndNotify(rows models.Table) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings := m.settings.Clone()
	if !settings.EnableAlerts {
		return 0, nil
	}

	var (
		sent int
		errs []error
	)
	for _, name := range rows.Names() {
		row, _ := rows.Latest(name)
		status := settings.Status(name, row.Value)
		if status == "" {
			continue
		}
		if status == models.StatusNormal {
			// Back in range: the next excursion alerts immediately
			m.clearLocked(name)
			continue
		}

		key := alertKey{name: name, status: status}
		if lastTime, ok := m.lastAlertTime[key]; ok {
			if settings.RepeatAlertMinutes <= 0 {
				continue
			}
			if m.now().Sub(lastTime) < time.Duration(settings.RepeatAlertMinutes)*time.Minute {
				continue
			}
		}

		title, message := formatNotification(row, status)
		if err := m.notify(title, message); err != nil {
			m.log.Warn("Notification failed", "measurement", name, "status", status, "error", err)
			errs = append(errs, fmt.Errorf("notify %s: %w", name, err))
			continue
		}
		m.lastAlertTime[key] = m.now()
		sent++
	}
	return sent, errors.Join(errs...)
}

// Pending lists the measurement/status pairs currently throttled
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.lastAlertTime))
	for k := range m.lastAlertTime {
		out = append(out, k.name+"/"+k.status)
	}
	sort.Strings(out)
	return out
}

// formatNotification creates the notification title and message
func formatNotification(row models.Measurement, status string) (string, string) {
	value := tray.Label(row)

	var title, message string
	switch status {
	case models.StatusUrgentLow:
		title = fmt.Sprintf("URGENT LOW %s", row.Name)
		message = fmt.Sprintf("%s is critically low: %s", row.Name, value)
	case models.StatusLow:
		title = fmt.Sprintf("Low %s", row.Name)
		message = fmt.Sprintf("%s is low: %s", row.Name, value)
	case models.StatusUrgentHigh:
		title = fmt.Sprintf("URGENT HIGH %s", row.Name)
		message = fmt.Sprintf("%s is critically high: %s", row.Name, value)
	case models.StatusHigh:
		title = fmt.Sprintf("High %s", row.Name)
		message = fmt.Sprintf("%s is high: %s", row.Name, value)
	}
	return title, message
}

// ClearAlertState clears the alert state for one measurement or, with an
// empty name, for all of them
func (m *Manager) ClearAlertState(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		m.lastAlertTime = make(map[alertKey]time.Time)
		return
	}
	m.clearLocked(name)
}

func (m *Manager) clearLocked(name string) {
	for k := range m.lastAlertTime {
		if k.name == name {
			delete(m.lastAlertTime, k)
		}
	}
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	m.mu.Lock()
	notify := m.notify
	m.mu.Unlock()
	return notify(appName, "Test notification - alerts are working!")
}
