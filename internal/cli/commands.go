package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/toastit/internal/config"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/selector"
	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	goversion "go.hein.dev/go-version"
)

// Set at build time with -ldflags "-X".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// New returns the root command. Without a subcommand it starts the shell.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "toastit",
		Short:        base.Wrap80("Tasks, projects, events, notes and journals from the terminal."),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd)
		},
	}
	config.AddFlags(cmd.PersistentFlags())

	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addShell(topLevel)
	addWatch(topLevel)
	addCalendar(topLevel)
	addList(topLevel)
	addPurge(topLevel)
	addVersion(topLevel)
}

// withApp loads the configuration from the root flags, opens the app and
// runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	cfg, err := config.Load(rootFlags(cmd))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := NewApp(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return fn(ctx, a)
}

func rootFlags(cmd *cobra.Command) *pflag.FlagSet {
	return cmd.Root().PersistentFlags()
}

func runShell(cmd *cobra.Command) error {
	return withApp(cmd, func(ctx context.Context, a *App) error {
		printlnFn("toastit (type 'help' for commands)")
		return a.RunShell(ctx)
	})
}

func addShell(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell with reminders in the background.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd)
		},
	}
	topLevel.AddCommand(cmd)
}

func addWatch(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: base.Wrap80("Run the reminder scheduler in the foreground until interrupted."),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				return a.Watch(ctx)
			})
		},
	}
	topLevel.AddCommand(cmd)
}

// calendarItem is the JSON form of a calendar line.
type calendarItem struct {
	Kind  models.Kind `json:"kind"`
	ID    string      `json:"id"`
	Title string      `json:"title"`
	When  time.Time   `json:"when"`
}

func toItem(s models.Stub) calendarItem {
	return calendarItem{Kind: s.EntryKind(), ID: s.Key(), Title: s.Title(), When: s.When()}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addCalendar(topLevel *cobra.Command) {
	output := &base.OutputOptions{}

	cmd := &cobra.Command{
		Use:   "calendar [date]",
		Short: "Show what happens on a day.",
		Example: `
toastit calendar
toastit calendar tomorrow
toastit calendar 2024-05-01 --json
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withApp(cmd, func(ctx context.Context, a *App) error {
				if !output.JSON {
					return a.Calendar(ctx, args)
				}

				day := a.now()
				if len(args) > 0 {
					d, err := calendarDate(args[0], day)
					if err != nil {
						return err
					}
					day = d
				}
				items := []calendarItem{}
				if _, err := a.svc.Calendar.CalendarEvents(ctx, day, func(s models.Stub) string {
					items = append(items, toItem(s))
					return ""
				}); err != nil {
					return err
				}
				return writeJSON(a.out, items)
			})
			return output.HandleError(err)
		},
	}

	base.AddOutputArg(cmd, output)
	topLevel.AddCommand(cmd)
}

func addList(topLevel *cobra.Command) {
	output := &base.OutputOptions{}
	which := "active"

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List entries of one kind.",
		Example: `
toastit list tasks
toastit list notes --which=all --json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withApp(cmd, func(ctx context.Context, a *App) error {
				k, err := models.ParseKind(args[0])
				if err != nil {
					return err
				}
				stubs, err := a.modes[k].Stubs(ctx, which)
				if err != nil {
					return err
				}

				if output.JSON {
					items := make([]calendarItem, len(stubs))
					for i, s := range stubs {
						items[i] = toItem(s)
					}
					return writeJSON(a.out, items)
				}
				renderStubs(a.out, selector.New(stubs).Indexed(), a.now(), a.cfg.MaxPreviewLength)
				return nil
			})
			return output.HandleError(err)
		},
	}

	cmd.Flags().StringVar(&which, "which", "active", "Listing to show. One of 'active', 'all' or 'archived'.")
	base.AddOutputArg(cmd, output)
	topLevel.AddCommand(cmd)
}

func addPurge(topLevel *cobra.Command) {
	output := &base.OutputOptions{}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: base.Wrap80("Delete events that ended longer ago than the retention period."),
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := withApp(cmd, func(ctx context.Context, a *App) error {
				n, err := a.Purge(ctx)
				if err != nil {
					return err
				}
				if output.JSON {
					return writeJSON(a.out, map[string]int{"purged": n})
				}
				_, err = fmt.Fprintf(a.out, "purged %d events\n", n)
				return err
			})
			return output.HandleError(err)
		},
	}

	base.AddOutputArg(cmd, output)
	topLevel.AddCommand(cmd)
}

func addVersion(topLevel *cobra.Command) {
	shortened := false
	output := "json"
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Get toastit version.",
		Example: `
toastit version
`,
		Run: func(cmd *cobra.Command, _ []string) {
			resp := goversion.FuncWithOutput(shortened, version, commit, date, output)
			fmt.Fprint(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().BoolVarP(&shortened, "short", "s", false, "Print just the version number.")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format. One of 'yaml' or 'json'.")

	topLevel.AddCommand(cmd)
}
