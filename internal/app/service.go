// Package app is the health manager service bound to the desktop window and
// shared with the command line tool
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mrcode/health-manager/internal/auth"
	"github.com/mrcode/health-manager/internal/autostart"
	"github.com/mrcode/health-manager/internal/config"
	"github.com/mrcode/health-manager/internal/entry"
	"github.com/mrcode/health-manager/internal/models"
	"github.com/mrcode/health-manager/internal/nightscout"
	"github.com/mrcode/health-manager/internal/notifications"
	"github.com/mrcode/health-manager/internal/store"
	"github.com/mrcode/health-manager/internal/tray"
)

// Events emitted to the frontend
const (
	EventEntryAdded   = "entry:added"
	EventEntryError   = "entry:error"
	EventDataReloaded = "data:reloaded"
)

var (
	// ErrNotLoggedIn is returned by every data operation before Login
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrNotConfigured is returned by AddEntry until the user's height is saved
	ErrNotConfigured = errors.New("settings not configured: save your height before adding entries")
	// ErrNoSettings is returned by SaveSettings for a nil payload
	ErrNoSettings = errors.New("no settings given")
	// ErrNightscoutNotConfigured is returned by ImportNightscout without a server URL
	ErrNightscoutNotConfigured = errors.New("nightscout URL not configured")
)

// EmitFunc delivers an event to the frontend
type EmitFunc func(name string, data any)

// TrayView is the system tray entry showing the pinned measurement
type TrayView interface {
	SetLabel(label string)
	SetIcon(icon []byte)
	SetTooltip(tooltip string)
}

// Autostarter toggles launch at login
type Autostarter interface {
	Set(enabled bool) error
}

// HealthService holds the logged-in user's store, settings and cached table
type HealthService struct {
	cfg           *config.Config
	log           *slog.Logger
	creds         *auth.FileCredentials
	sessions      *auth.Sessions
	notifyManager *notifications.Manager
	iconGen       *tray.IconGenerator
	launcher      Autostarter
	now           func() time.Time

	mu       sync.RWMutex
	session  *auth.Session
	settings *models.Settings
	store    store.Store
	watcher  *store.Watcher
	table    models.Table
	ctx      context.Context
	cancel   context.CancelFunc

	emit EmitFunc
	tray TrayView
}

// NewHealthService creates the service. No user is logged in yet.
func NewHealthService(cfg *config.Config, log *slog.Logger) *HealthService {
	if log == nil {
		log = slog.Default()
	}
	creds := auth.NewFileCredentials(filepath.Join(cfg.DataDir, auth.UsersFileName), cfg.BcryptCost)
	settings := models.DefaultSettings()

	ctx, cancel := context.WithCancel(context.Background())
	return &HealthService{
		cfg:           cfg,
		log:           log,
		creds:         creds,
		sessions:      auth.NewSessions(creds),
		notifyManager: notifications.NewManager(settings, log),
		iconGen:       tray.NewIconGenerator(),
		launcher:      autostart.New(),
		now:           time.Now,
		settings:      settings,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetEmitter sets the event sink
func (s *HealthService) SetEmitter(emit EmitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = emit
}

// SetTray sets the tray entry and draws the current state on it
func (s *HealthService) SetTray(t TrayView) {
	s.mu.Lock()
	s.tray = t
	s.mu.Unlock()

	s.updateTray()
}

// SetAutostarter replaces the launch-at-login toggle applied by SaveSettings
func (s *HealthService) SetAutostarter(a Autostarter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launcher = a
}

// Startup binds the service lifetime to ctx
func (s *HealthService) Startup(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.Info("Health service started", "dataDir", s.cfg.DataDir, "backend", s.cfg.Storage.Backend)
}

// Shutdown logs out and releases the store
func (s *HealthService) Shutdown() error {
	err := s.Logout()
	if errors.Is(err, ErrNotLoggedIn) {
		err = nil
	}
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	return err
}

func (s *HealthService) emitEvent(name string, data any) {
	s.mu.RLock()
	emit := s.emit
	s.mu.RUnlock()

	if emit != nil {
		emit(name, data)
	}
}

// UserInfo describes the logged-in user
type UserInfo struct {
	Email      string    `json:"email"`
	Since      time.Time `json:"since"`
	Configured bool      `json:"configured"`
}

// SignUp registers a user and provisions their data directory with an
// empty measurement table and default settings
func (s *HealthService) SignUp(email, password, confirm string) error {
	if err := s.creds.SignUp(email, password, confirm); err != nil {
		return err
	}

	email = auth.NormalizeEmail(email)
	dir := store.UserDir(s.cfg.DataDir, email)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}

	st, err := store.Open(s.context(), s.cfg.StoreOptions(), email, s.log)
	if err != nil {
		return fmt.Errorf("provision store: %w", err)
	}
	if err := st.Close(); err != nil {
		s.log.Warn("Closing store", "error", err)
	}

	path := models.SettingsPath(dir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := models.DefaultSettings().Save(path); err != nil {
			return fmt.Errorf("save default settings: %w", err)
		}
	}

	s.log.Info("User signed up", "email", email)
	return nil
}

// Login verifies the credentials and opens the user's data. Any previous
// session is closed first.
func (s *HealthService) Login(email, password string) (*UserInfo, error) {
	sess, err := s.sessions.Login(email, password)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidateEmail(sess.Email); err != nil {
		return nil, err
	}

	if err := s.Logout(); err != nil && !errors.Is(err, ErrNotLoggedIn) {
		s.log.Warn("Closing previous session", "error", err)
	}

	ctx := s.context()
	dir := store.UserDir(s.cfg.DataDir, sess.Email)
	settings := models.DefaultSettings()
	if err := settings.Load(models.SettingsPath(dir)); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	st, err := store.Open(ctx, s.cfg.StoreOptions(), sess.Email, s.log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	table, err := st.Load(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load measurements: %w", err)
	}

	s.mu.Lock()
	s.session = &sess
	s.settings = settings
	s.store = st
	s.table = table
	s.mu.Unlock()

	s.notifyManager.UpdateSettings(settings)
	s.notifyManager.ClearAlertState("")
	s.startWatcher(ctx, st)
	s.updateTray()

	s.log.Info("User logged in", "email", sess.Email, "rows", len(table))
	return s.userInfo(), nil
}

// startWatcher reloads the table when a CSV store is edited outside the app
func (s *HealthService) startWatcher(ctx context.Context, st store.Store) {
	cs, ok := st.(*store.CSVStore)
	if !ok {
		return
	}

	w, err := store.NewWatcher(cs.Path(), store.DefaultDebounce, s.reload, s.log)
	if err != nil {
		s.log.Warn("File watcher unavailable", "error", err)
		return
	}
	if err := w.Start(ctx); err != nil {
		s.log.Warn("File watcher unavailable", "error", err)
		w.Stop()
		return
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
}

// reload re-reads the table after an external change
func (s *HealthService) reload() {
	s.mu.RLock()
	st := s.store
	s.mu.RUnlock()
	if st == nil {
		return
	}

	table, err := st.Load(s.context())
	if err != nil {
		s.log.Warn("Reloading measurements", "error", err)
		return
	}

	s.mu.Lock()
	if s.store != st {
		// Logged out or switched user meanwhile
		s.mu.Unlock()
		return
	}
	s.table = table
	s.mu.Unlock()

	s.updateTray()
	s.emitEvent(EventDataReloaded, len(table))
}

// Logout ends the session and closes the user's store
func (s *HealthService) Logout() error {
	s.mu.Lock()
	sess, st, w := s.session, s.store, s.watcher
	s.session, s.store, s.watcher, s.table = nil, nil, nil, nil
	s.settings = models.DefaultSettings()
	s.mu.Unlock()

	if sess == nil {
		return ErrNotLoggedIn
	}
	if w != nil {
		w.Stop()
	}
	_ = s.sessions.Logout(sess.Token)
	s.iconGen.ClearHistory()

	var err error
	if st != nil {
		err = st.Close()
	}
	s.log.Info("User logged out", "email", sess.Email)
	return err
}

// CurrentUser returns the logged-in user, or nil
func (s *HealthService) CurrentUser() *UserInfo {
	return s.userInfo()
}

func (s *HealthService) userInfo() *UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil
	}
	return &UserInfo{
		Email:      s.session.Email,
		Since:      s.session.Started,
		Configured: s.settings.IsConfigured(),
	}
}

// active returns the logged-in user's store and settings
func (s *HealthService) active() (store.Store, *models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil || s.store == nil {
		return nil, nil, ErrNotLoggedIn
	}
	return s.store, s.settings, nil
}

func (s *HealthService) snapshot() (models.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, ErrNotLoggedIn
	}
	return append(models.Table(nil), s.table...), nil
}

func (s *HealthService) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// EntryRequest is one submission from the entry form
type EntryRequest struct {
	RecordType string `json:"recordType"`
	Values     string `json:"values"`
	Note       string `json:"note"`
	Date       string `json:"date"` // optional, defaults to now
}

// EntryResult lists the rows an entry added
type EntryResult struct {
	Rows []models.Measurement `json:"rows"`
}

// AddEntry decodes and expands an entry and appends every resulting row.
// A rejected entry leaves the store untouched and emits entry:error.
func (s *HealthService) AddEntry(req EntryRequest) (*EntryResult, error) {
	st, settings, err := s.active()
	if err != nil {
		return nil, err
	}
	if !settings.IsConfigured() {
		return nil, ErrNotConfigured
	}

	ts := s.now()
	if req.Date != "" {
		if ts, err = parseTime(req.Date); err != nil {
			s.emitEvent(EventEntryError, err.Error())
			return nil, err
		}
	}

	engine := entry.NewEngine(settings.HeightInches())
	rows, err := engine.Process(entry.Entry{
		Time:       ts,
		RecordType: req.RecordType,
		Values:     req.Values,
		Note:       req.Note,
	})
	if err != nil {
		s.log.Info("Entry rejected", "recordType", req.RecordType, "error", err)
		s.emitEvent(EventEntryError, err.Error())
		return nil, err
	}

	if err := st.Append(s.context(), rows); err != nil {
		s.log.Error("Appending entry", "recordType", req.RecordType, "error", err)
		s.emitEvent(EventEntryError, err.Error())
		return nil, fmt.Errorf("save entry: %w", err)
	}

	s.mu.Lock()
	if s.store == st {
		s.table = append(s.table, rows...)
	}
	s.mu.Unlock()

	if _, err := s.notifyManager.CheckAndNotify(rows); err != nil {
		s.log.Warn("Sending alerts", "error", err)
	}
	s.updateTray()
	s.emitEvent(EventEntryAdded, rows)

	s.log.Info("Entry added", "recordType", req.RecordType, "rows", len(rows))
	return &EntryResult{Rows: rows}, nil
}

// entryLayouts are accepted for backdated entries, most specific first
var entryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range entryLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// GetSettings returns a copy of the logged-in user's settings
func (s *HealthService) GetSettings() (*models.Settings, error) {
	_, settings, err := s.active()
	if err != nil {
		return nil, err
	}
	return settings.Clone(), nil
}

// SaveSettings stores the user's settings and applies them
func (s *HealthService) SaveSettings(updated *models.Settings) error {
	_, settings, err := s.active()
	if err != nil {
		return err
	}
	if updated == nil {
		return ErrNoSettings
	}
	if updated.Height < 0 {
		return fmt.Errorf("height must be positive, got %v", updated.Height)
	}

	settings.Update(updated)

	s.mu.RLock()
	email, launcher := s.session.Email, s.launcher
	s.mu.RUnlock()
	if err := settings.Save(models.SettingsPath(store.UserDir(s.cfg.DataDir, email))); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.notifyManager.UpdateSettings(settings)
	if err := launcher.Set(settings.Clone().AutoStart); err != nil {
		s.log.Warn("Updating autostart", "error", err)
	}
	s.updateTray()
	return nil
}

// ImportNightscout pulls glucose readings from the configured Nightscout
// server into the store and returns how many rows were added
func (s *HealthService) ImportNightscout(ctx context.Context) (int, error) {
	st, settings, err := s.active()
	if err != nil {
		return 0, err
	}
	if !settings.NightscoutConfigured() {
		return 0, ErrNightscoutNotConfigured
	}

	cfg := settings.Clone()
	client := nightscout.NewClient(cfg.NightscoutURL, cfg.APISecret, cfg.APIToken, cfg.UseToken)
	n, err := nightscout.NewImporter(client, s.log).Import(ctx, st, time.Time{})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.reload()
	}
	return n, nil
}

// SendTestNotification sends a test notification
func (s *HealthService) SendTestNotification() error {
	return s.notifyManager.SendTestNotification()
}

// updateTray shows the newest value of the pinned measurement
func (s *HealthService) updateTray() {
	s.mu.RLock()
	t := s.tray
	table := s.table
	settings := s.settings
	loggedIn := s.session != nil
	s.mu.RUnlock()

	if t == nil {
		return
	}
	if !loggedIn {
		t.SetLabel("")
		t.SetTooltip("Health Manager - not logged in")
		t.SetIcon(s.iconGen.GenerateIcon("--", ""))
		return
	}

	name := settings.Clone().TrayMeasurement
	latest, ok := table.Latest(name)
	if !ok {
		t.SetLabel("")
		t.SetTooltip(fmt.Sprintf("Health Manager - no %s recorded", name))
		t.SetIcon(s.iconGen.GenerateIcon("--", ""))
		return
	}

	s.iconGen.SetHistory(table.History(name, 0))
	status := settings.Status(name, latest.Value)
	t.SetLabel(tray.Label(latest))
	t.SetTooltip(s.iconGen.Tooltip(latest, status, s.now()))
	t.SetIcon(s.iconGen.GenerateIcon(tray.FormatValue(latest.Value), status))
}
