package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrcode/health-manager/internal/app"
	"github.com/mrcode/health-manager/internal/chart"
	"github.com/mrcode/health-manager/internal/tray"
)

func (c *cli) signupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account and its data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password, err := c.account()
			if err != nil {
				return err
			}
			svc, err := c.newService(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := svc.SignUp(email, password, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up %s. Set your height with: healthctl settings set --height <inches>\n", email)
			return nil
		},
	}
}

func (c *cli) typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the record types and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.newService(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tFIELDS")
			for _, rt := range svc.RecordTypes() {
				fmt.Fprintf(w, "%s\t%s\n", rt.Name, strings.Join(rt.Fields, ", "))
			}
			return w.Flush()
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	var note, date string

	cmd := &cobra.Command{
		Use:   "add TYPE VALUE...",
		Short: "Record an entry",
		Long: `Record an entry of the given type. Values are given in the order listed
by "healthctl types" and may also be passed as one quoted argument.

A negative value on its own would be read as a flag: put flags first and end
them with "--", or quote all values together.

Example:
  healthctl add --note "after run" -- "GE CS10G Body Composition" 180 55 18 25 4 70 9 110 -5 -8 3 75 120 1700 135 20 40
  healthctl add "GE CS10G Body Composition" "180 55 18 25 4 70 9 110 -5 -8 3 75 120 1700 135 20 40"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, release, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer release()

			res, err := svc.AddEntry(app.EntryRequest{
				RecordType: args[0],
				Values:     strings.Join(args[1:], " "),
				Note:       note,
				Date:       date,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, m := range res.Rows {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.Time.Format("2006-01-02 15:04"), m.Name, tray.Label(m))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note stored with every row of the entry")
	cmd.Flags().StringVar(&date, "date", "", "entry time, e.g. 2024-03-01 or 2024-03-01T08:30 (default now)")
	return cmd
}

// viewFlags registers the flags shared by view and chart
func viewFlags(cmd *cobra.Command, req *app.ViewRequest) {
	f := cmd.Flags()
	f.StringSliceVar(&req.Names, "names", nil, "measurements to show (default: saved selection)")
	f.StringVar(&req.Range, "range", "", `range preset, e.g. "1 Month" or "All Time"`)
	f.StringVar(&req.Start, "start", "", "first day, YYYY-MM-DD")
	f.StringVar(&req.End, "end", "", "last day, YYYY-MM-DD")
	f.StringVar(&req.Aggregate, "aggregate", "mean", "daily aggregate: mean or sum")
	f.BoolVar(&req.ForwardFill, "ffill", false, "carry the last value over days without one")
	f.BoolVar(&req.MovingAverage, "ma", false, "add a one month moving average")
}

func (c *cli) viewCmd() *cobra.Command {
	var (
		req    app.ViewRequest
		asJSON bool
		preset string
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print measurements as a table, one row per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, release, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer release()

			if err := applyPreset(svc, &req, preset); err != nil {
				return err
			}

			if asJSON {
				resp, err := svc.GetView(req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}

			table, err := svc.GetTable(req)
			if err != nil {
				return err
			}
			if len(table.Rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No measurements in range")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, strings.Join(table.Columns, "\t")+"\t")
			for _, row := range table.Rows {
				fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
			}
			return w.Flush()
		},
	}
	viewFlags(cmd, &req)
	cmd.Flags().StringVar(&preset, "preset", "", `measurement preset, e.g. "Lipid Panel"`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the long-form series as JSON")
	return cmd
}

func (c *cli) chartCmd() *cobra.Command {
	var (
		req    app.ViewRequest
		preset string
		out    string
		opts   = chart.DefaultOptions()
	)

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render measurements as a PNG line chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, release, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer release()

			if err := applyPreset(svc, &req, preset); err != nil {
				return err
			}
			png, err := svc.ChartPNG(req, opts)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0640); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", out, len(png))
			return nil
		},
	}
	viewFlags(cmd, &req)
	cmd.Flags().StringVar(&preset, "preset", "", `measurement preset, e.g. "Lipid Panel"`)
	cmd.Flags().StringVarP(&out, "out", "o", "chart.png", "output file")
	cmd.Flags().IntVar(&opts.Width, "width", opts.Width, "image width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", opts.Height, "image height in pixels")
	return cmd
}

// applyPreset fills req.Names from a measurement preset
func applyPreset(svc *app.HealthService, req *app.ViewRequest, name string) error {
	if name == "" {
		return nil
	}
	if len(req.Names) > 0 {
		return fmt.Errorf("--preset and --names are mutually exclusive")
	}
	presets, err := svc.GetPresets()
	if err != nil {
		return err
	}
	for _, p := range presets.Measurements {
		if strings.EqualFold(p.Name, name) {
			req.Names = p.Measurements
			return nil
		}
	}
	return fmt.Errorf("unknown preset %q", name)
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import glucose readings from the configured Nightscout server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, release, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer release()

			n, err := svc.ImportNightscout(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d readings\n", n)
			return nil
		},
	}
}

func (c *cli) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change account settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, release, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer release()

			settings, err := svc.GetSettings()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), settings)
		},
	}

	var (
		height    string
		alerts    bool
		repeat    int
		selection []string
		rangeName string
		movingAvg bool
		trayName  string
		nsURL     string
		nsSecret  string
		nsToken   string
		autoStart bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the settings given as flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, release, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer release()

			settings, err := svc.GetSettings()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if !slices.ContainsFunc(settingFlags, f.Changed) {
				return fmt.Errorf("no settings given")
			}
			if f.Changed("height") {
				if settings.Height, err = parseHeight(height); err != nil {
					return err
				}
			}
			if f.Changed("alerts") {
				settings.EnableAlerts = alerts
			}
			if f.Changed("repeat") {
				settings.RepeatAlertMinutes = repeat
			}
			if f.Changed("selection") {
				settings.Selection = selection
			}
			if f.Changed("range") {
				settings.DefaultRange = rangeName
			}
			if f.Changed("ma") {
				settings.ShowMovingAverage = movingAvg
			}
			if f.Changed("tray") {
				settings.TrayMeasurement = trayName
			}
			if f.Changed("nightscout-url") {
				settings.NightscoutURL = nsURL
			}
			if f.Changed("nightscout-secret") {
				settings.APISecret = nsSecret
				settings.UseToken = false
			}
			if f.Changed("nightscout-token") {
				settings.APIToken = nsToken
				settings.UseToken = true
			}
			if f.Changed("autostart") {
				settings.AutoStart = autoStart
			}

			if err := svc.SaveSettings(settings); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings saved")
			return nil
		},
	}
	f := set.Flags()
	f.StringVar(&height, "height", "", `height in inches or feet'inches, e.g. 70 or 5'10`)
	f.BoolVar(&alerts, "alerts", true, "enable desktop alerts")
	f.IntVar(&repeat, "repeat", 60, "minutes between repeated alerts, 0 for once")
	f.StringSliceVar(&selection, "selection", nil, "measurements shown by default")
	f.StringVar(&rangeName, "range", "", "default range preset")
	f.BoolVar(&movingAvg, "ma", false, "show the moving average by default")
	f.StringVar(&trayName, "tray", "", "measurement shown in the tray")
	f.StringVar(&nsURL, "nightscout-url", "", "Nightscout server URL")
	f.StringVar(&nsSecret, "nightscout-secret", "", "Nightscout API secret")
	f.StringVar(&nsToken, "nightscout-token", "", "Nightscout access token")
	f.BoolVar(&autoStart, "autostart", false, "launch the desktop app at login")

	cmd.AddCommand(show, set)
	return cmd
}

// settingFlags are the flags of "settings set"
var settingFlags = []string{
	"height", "alerts", "repeat", "selection", "range", "ma", "tray",
	"nightscout-url", "nightscout-secret", "nightscout-token", "autostart",
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseHeight accepts inches or feet'inches, e.g. 70 or 5'10
func parseHeight(s string) (float64, error) {
	feet, inches, ok := strings.Cut(s, "'")
	if !ok {
		return strconv.ParseFloat(s, 64)
	}
	ft, err := strconv.Atoi(strings.TrimSpace(feet))
	if err != nil {
		return 0, fmt.Errorf("invalid height %q", s)
	}
	in := 0.0
	if inches = strings.Trim(strings.TrimSpace(inches), `"`); inches != "" {
		if in, err = strconv.ParseFloat(inches, 64); err != nil {
			return 0, fmt.Errorf("invalid height %q", s)
		}
	}
	return float64(ft)*12 + in, nil
}
