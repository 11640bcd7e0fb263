// Package main is the entry point for the Health Manager desktop application
package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"github.com/mrcode/health-manager/internal/app"
	"github.com/mrcode/health-manager/internal/config"
	"github.com/mrcode/health-manager/internal/logging"
	"github.com/mrcode/health-manager/internal/tray"
)

//go:embed all:frontend/dist
var assets embed.FS

// desktopService ties the health service to the wails lifecycle
type desktopService struct {
	*app.HealthService
}

func (d *desktopService) ServiceStartup(ctx context.Context, _ application.ServiceOptions) error {
	d.Startup(ctx)
	return nil
}

func (d *desktopService) ServiceShutdown() error {
	return d.Shutdown()
}

// systemTray adapts the wails tray to app.TrayView
type systemTray struct {
	tray *application.SystemTray
}

func (s systemTray) SetLabel(label string)     { s.tray.SetLabel(label) }
func (s systemTray) SetIcon(icon []byte)       { s.tray.SetIcon(icon) }
func (s systemTray) SetTooltip(tooltip string) { s.tray.SetTooltip(tooltip) }

func main() {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "health-manager: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	svc := app.NewHealthService(cfg, log)

	desktop := application.New(application.Options{
		Name:        "Health Manager",
		Description: "Personal health measurements dashboard",
		Logger:      log,
		Services: []application.Service{
			application.NewService(&desktopService{svc}),
		},
		Assets: application.AssetOptions{
			Handler: application.AssetFileServerFS(assets),
		},
		Mac: application.MacOptions{
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	window := desktop.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:            "Health Manager",
		Width:            cfg.Window.Width,
		Height:           cfg.Window.Height,
		MinWidth:         cfg.Window.MinWidth,
		MinHeight:        cfg.Window.MinHeight,
		BackgroundColour: application.NewRGB(27, 38, 54),
		URL:              "/",
	})

	// Closing the window hides it; the app keeps running in the tray
	window.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		window.Hide()
		e.Cancel()
	})

	show := func() {
		window.Show()
		window.Focus()
	}

	if tray.IsTraySupported() {
		menu := application.NewMenu()
		menu.Add("Open Dashboard").OnClick(func(*application.Context) { show() })
		menu.Add("Send Test Notification").OnClick(func(*application.Context) {
			if err := svc.SendTestNotification(); err != nil {
				log.Warn("Test notification failed", slog.Any("error", err))
			}
		})
		menu.AddSeparator()
		menu.Add("Quit").OnClick(func(*application.Context) { desktop.Quit() })

		systray := desktop.SystemTray.New()
		systray.SetMenu(menu)
		systray.OnClick(show)
		svc.SetTray(systemTray{tray: systray})
	}

	svc.SetEmitter(func(name string, data any) {
		desktop.Event.Emit(name, data)
	})

	if err := desktop.Run(); err != nil {
		log.Error("Application stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
