package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Status values returned by Settings.Status
const (
	StatusUrgentLow  = "urgent_low"
	StatusLow        = "low"
	StatusNormal     = "normal"
	StatusHigh       = "high"
	StatusUrgentHigh = "urgent_high"
)

// SettingsFileName is the per-user settings file inside the user's data directory
const SettingsFileName = "settings.json"

// Threshold bounds a measurement for alerting. A zero bound is disabled.
type Threshold struct {
	UrgentLow  float64 `json:"urgentLow"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	UrgentHigh float64 `json:"urgentHigh"`
}

// Settings contains the per-user settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Body settings
	Height float64 `json:"height"` // Inches, used for BMI

	// Alert settings
	EnableAlerts       bool                 `json:"enableAlerts"`
	RepeatAlertMinutes int                  `json:"repeatAlertMinutes"` // 0 = no repeat
	Thresholds         map[string]Threshold `json:"thresholds"`

	// Dashboard settings
	Selection         []string `json:"selection"`         // Measurements shown by default
	DefaultRange      string   `json:"defaultRange"`      // Range preset name
	ShowMovingAverage bool     `json:"showMovingAverage"` // 1M moving average overlay
	TrayMeasurement   string   `json:"trayMeasurement"`   // Measurement shown in the tray

	// Nightscout import
	NightscoutURL string `json:"nightscoutUrl"`
	APISecret     string `json:"apiSecret"` // Plain API secret (will be hashed)
	APIToken      string `json:"apiToken"`  // Token-based auth
	UseToken      bool   `json:"useToken"`  // Use token instead of secret

	// System settings
	AutoStart bool `json:"autoStart"`
}

// DefaultSettings returns settings with default values.
// Height is left unset so the user is asked for it before the first entry.
func DefaultSettings() *Settings {
	return &Settings{
		Height: 0,

		EnableAlerts:       true,
		RepeatAlertMinutes: 60,
		Thresholds: map[string]Threshold{
			"Glucose":   {UrgentLow: 55, Low: 70, High: 180, UrgentHigh: 250},
			"Ketone":    {High: 3.0, UrgentHigh: 5.0},
			"Systolic":  {UrgentLow: 80, Low: 90, High: 140, UrgentHigh: 180},
			"Diastolic": {UrgentLow: 40, Low: 60, High: 90, UrgentHigh: 120},
			"Pulse":     {UrgentLow: 40, Low: 50, High: 100, UrgentHigh: 130},
		},

		Selection:         []string{"Weight", "Cholesterol", "Triglycerides", "HDL", "LDL", "Glucose"},
		DefaultRange:      "6 Months",
		ShowMovingAverage: false,
		TrayMeasurement:   "Weight",

		AutoStart: false,
	}
}

// SettingsPath returns the settings file for a user data directory
func SettingsPath(userDir string) string {
	return filepath.Join(userDir, SettingsFileName)
}

// Load loads settings from path. A missing file leaves the defaults in place.
func (s *Settings) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the app data dir
	if err != nil {
		if os.IsNotExist(err) {
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return err
	}

	return nil
}

// Save saves settings to path
func (s *Settings) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex.
// Maps and slices are copied so the two values never share storage.
// The caller must hold the necessary locks on s and other
func (s *Settings) copySettingsFields(other *Settings) {
	s.Height = other.Height
	s.EnableAlerts = other.EnableAlerts
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.Thresholds = make(map[string]Threshold, len(other.Thresholds))
	for name, th := range other.Thresholds {
		s.Thresholds[name] = th
	}
	s.Selection = append([]string(nil), other.Selection...)
	s.DefaultRange = other.DefaultRange
	s.ShowMovingAverage = other.ShowMovingAverage
	s.TrayMeasurement = other.TrayMeasurement
	s.NightscoutURL = other.NightscoutURL
	s.APISecret = other.APISecret
	s.APIToken = other.APIToken
	s.UseToken = other.UseToken
	s.AutoStart = other.AutoStart
}

// IsConfigured returns true once the height needed for BMI is known
func (s *Settings) IsConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Height > 0
}

// HeightInches returns the configured height
func (s *Settings) HeightInches() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Height
}

// NightscoutConfigured returns true if a Nightscout server is set
func (s *Settings) NightscoutConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.NightscoutURL != ""
}

// Status classifies a value against the threshold configured for name.
// It returns "" when no threshold exists for the measurement.
func (s *Settings) Status(name string, value float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	th, ok := s.Thresholds[name]
	if !ok {
		return ""
	}

	switch {
	case th.UrgentLow > 0 && value <= th.UrgentLow:
		return StatusUrgentLow
	case th.Low > 0 && value <= th.Low:
		return StatusLow
	case th.UrgentHigh > 0 && value >= th.UrgentHigh:
		return StatusUrgentHigh
	case th.High > 0 && value >= th.High:
		return StatusHigh
	default:
		return StatusNormal
	}
}
