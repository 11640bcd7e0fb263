package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrcode/health-manager/internal/app"
	"github.com/mrcode/health-manager/internal/config"
	"github.com/mrcode/health-manager/internal/logging"
)

// Environment fallbacks for the account flags
const (
	envEmail    = "HEALTH_MANAGER_EMAIL"
	envPassword = "HEALTH_MANAGER_PASSWORD"
)

// cli holds the global flags and the hooks tests replace
type cli struct {
	configPath string
	email      string
	password   string
	verbose    bool

	launcher app.Autostarter
}

func newRootCmd() *cobra.Command {
	return (&cli{}).rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "healthctl",
		Short: "Record and chart personal health measurements",
		Long: `healthctl adds measurements to your health log and prints views of it.

Every command except "types" works on one account, given with --email and
--password or the HEALTH_MANAGER_EMAIL and HEALTH_MANAGER_PASSWORD variables.

Example:
  healthctl add Weight 182.4
  healthctl add "Systolic Diastolic Pulse" 120 80 62
  healthctl view --range "3 Months" --ma`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", config.DefaultPath(), "config file")
	flags.StringVar(&c.email, "email", "", "account email (default $"+envEmail+")")
	flags.StringVar(&c.password, "password", "", "account password (default $"+envPassword+")")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		c.signupCmd(),
		c.typesCmd(),
		c.addCmd(),
		c.viewCmd(),
		c.chartCmd(),
		c.importCmd(),
		c.settingsCmd(),
	)
	return root
}

func (c *cli) account() (email, password string, err error) {
	email, password = c.email, c.password
	if email == "" {
		email = os.Getenv(envEmail)
	}
	if password == "" {
		password = os.Getenv(envPassword)
	}
	if email == "" || password == "" {
		return "", "", errors.New("--email and --password are required")
	}
	return email, password, nil
}

// newService builds the service from the config file. Logs go to stderr and
// only warnings are shown unless --verbose is set.
func (c *cli) newService(stderr io.Writer) (*app.HealthService, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	svc := app.NewHealthService(cfg, logging.New(stderr, level, cfg.Log.Format))
	if c.launcher != nil {
		svc.SetAutostarter(c.launcher)
	}
	return svc, nil
}

// session logs in and returns the service with a release func
func (c *cli) session(cmd *cobra.Command) (*app.HealthService, func(), error) {
	email, password, err := c.account()
	if err != nil {
		return nil, nil, err
	}
	svc, err := c.newService(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	svc.Startup(cmd.Context())
	if _, err := svc.Login(email, password); err != nil {
		_ = svc.Shutdown()
		return nil, nil, fmt.Errorf("login: %w", err)
	}
	release := func() {
		if err := svc.Shutdown(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", err)
		}
	}
	return svc, release, nil
}
