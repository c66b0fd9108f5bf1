package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"choreline/internal/config"
	"choreline/internal/daemon"
	"choreline/internal/db"
	"choreline/internal/domain"
	"choreline/internal/engine"
	"choreline/internal/events"
	"choreline/internal/migrate"
	"choreline/internal/repo"
	"choreline/internal/server"
	chorelinesdk "choreline/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "chore",
	Short: "Choreline CLI",
	Long: `Choreline tracks household chores for a family.
- Persons own everything; templates stamp out recurring chores.
- Areas are standards of upkeep that flip positive/negative.
- Acts record things done, good or bad.
- ToDos are one-off items; Routines walk a person through ordered tasks.
- Transitions (wrong/right, pause, skip, complete, ...) publish events,
  and the daemon nudges whoever lets a routine sit too long.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CHORELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(personCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(valueCmd(domain.KindArea))
	rootCmd.AddCommand(valueCmd(domain.KindAct))
	rootCmd.AddCommand(stateCmd(domain.KindToDo))
	rootCmd.AddCommand(stateCmd(domain.KindRoutine))
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(daemonCmd())
}

func personCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "person", Short: "Manage persons"}

	var name, data string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			payload, err := parseJSONMap(data)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				person := domain.Person{Name: name, Data: payload}
				if err := e.Repo.InsertPerson(ctx, &person); err != nil {
					return err
				}
				return printJSON(person)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "person name")
	add.Flags().StringVar(&data, "data", "", "data JSON")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List persons",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListPersons(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name})
				}
				tw.Render()
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				person, err := e.Repo.GetPerson(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(person)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Repo.DeletePerson(ctx, id)
			})
		},
	})

	return cmd
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "template", Short: "Manage templates"}

	var name, kind, data string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || kind == "" {
				return fmt.Errorf("--name and --kind required")
			}
			payload, err := parseJSONMap(data)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				tmpl := domain.Template{Name: name, Kind: domain.Kind(kind), Data: payload}
				if err := e.Repo.InsertTemplate(ctx, &tmpl); err != nil {
					return err
				}
				return printJSON(tmpl)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "template name")
	add.Flags().StringVar(&kind, "kind", "", "template kind (area|act|todo|routine)")
	add.Flags().StringVar(&data, "data", "", "data JSON")
	cmd.AddCommand(add)

	var listKind string
	list := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListTemplates(ctx, domain.Kind(listKind))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Kind", "Name"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Kind, t.Name})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&listKind, "kind", "", "filter by kind")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Repo.DeleteTemplate(ctx, id)
			})
		},
	})

	return cmd
}

type createFlags struct {
	person     string
	personID   int64
	name       string
	status     string
	templateID int64
	template   string
	data       string
}

func (f *createFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.person, "person", "", "person name")
	cmd.Flags().Int64Var(&f.personID, "person-id", 0, "person id")
	cmd.Flags().StringVar(&f.name, "name", "", "entity name")
	cmd.Flags().StringVar(&f.status, "status", "", "initial status")
	cmd.Flags().Int64Var(&f.templateID, "template-id", 0, "template id")
	cmd.Flags().StringVar(&f.template, "template", "", "inline template JSON")
	cmd.Flags().StringVar(&f.data, "data", "", "data JSON")
}

func (f *createFlags) input() (engine.CreateInput, error) {
	tmpl, err := parseJSONMap(f.template)
	if err != nil {
		return engine.CreateInput{}, err
	}
	if f.template == "" {
		tmpl = nil
	}
	data, err := parseJSONMap(f.data)
	if err != nil {
		return engine.CreateInput{}, err
	}
	return engine.CreateInput{
		Person:     f.person,
		PersonID:   f.personID,
		Name:       f.name,
		Status:     f.status,
		TemplateID: f.templateID,
		Template:   tmpl,
		Data:       data,
	}, nil
}

type listFlags struct {
	personID int64
	status   string
	name     string
	since    int
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.personID, "person-id", 0, "filter by person id")
	cmd.Flags().StringVar(&f.status, "status", "", "filter by status")
	cmd.Flags().StringVar(&f.name, "name", "", "filter by name")
	cmd.Flags().IntVar(&f.since, "since", 0, "lookback window in days (-1 for all)")
}

func (f *listFlags) filter() repo.StatusFilter {
	return repo.StatusFilter{PersonID: f.personID, Status: f.status, Name: f.name, Since: f.since}
}

func valueCmd(kind domain.Kind) *cobra.Command {
	cmd := &cobra.Command{Use: string(kind), Short: fmt.Sprintf("Manage %ss", kind)}

	var cf createFlags
	create := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Create a %s", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := cf.input()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				v, err := e.CreateValue(ctx, kind, in)
				if err != nil {
					return err
				}
				return printJSON(v)
			})
		},
	}
	cf.register(create)
	cmd.AddCommand(create)

	var lf listFlags
	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListValues(ctx, kind, lf.filter(), e.Epoch())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Person", "Name", "Status", "Updated"})
				for _, v := range items {
					tw.AppendRow(table.Row{v.ID, v.PersonID, v.Name, v.Status, formatEpoch(v.Updated)})
				}
				tw.Render()
				return nil
			})
		},
	}
	lf.register(list)
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: fmt.Sprintf("Show a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				v, err := e.Repo.GetValue(ctx, kind, id)
				if err != nil {
					return err
				}
				return printJSON(v)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Repo.DeleteValue(ctx, kind, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "action <id> <wrong|right>",
		Short: fmt.Sprintf("Apply a transition to a %s", kind),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				updated, err := e.ValueAction(ctx, kind, id, args[1])
				if err != nil {
					return err
				}
				return printJSON(map[string]bool{"updated": updated})
			})
		},
	})

	return cmd
}

func stateCmd(kind domain.Kind) *cobra.Command {
	cmd := &cobra.Command{Use: string(kind), Short: fmt.Sprintf("Manage %ss", kind)}

	var cf createFlags
	create := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Create a %s", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := cf.input()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				s, err := e.CreateState(ctx, kind, in)
				if err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	}
	cf.register(create)
	cmd.AddCommand(create)

	var lf listFlags
	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListStates(ctx, kind, lf.filter(), e.Epoch())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Person", "Name", "Status", "Updated"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.PersonID, s.Name, s.Status, formatEpoch(s.Updated)})
				}
				tw.Render()
				return nil
			})
		},
	}
	lf.register(list)
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: fmt.Sprintf("Show a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				s, err := e.Repo.GetState(ctx, kind, id)
				if err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Repo.DeleteState(ctx, kind, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "action <id> <action>",
		Short: fmt.Sprintf("Apply a transition to a %s", kind),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				updated, err := e.StateAction(ctx, kind, id, args[1])
				if err != nil {
					return err
				}
				return printJSON(map[string]bool{"updated": updated})
			})
		},
	})

	if kind == domain.KindRoutine {
		cmd.AddCommand(&cobra.Command{
			Use:   "task <id> <task-id> <action>",
			Short: "Apply a transition to one task of a routine",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				taskID, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid task id %q", args[1])
				}
				return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
					updated, err := e.TaskAction(ctx, id, taskID, args[2])
					if err != nil {
						return err
					}
					return printJSON(map[string]bool{"updated": updated})
				})
			},
		})
	}

	if kind == domain.KindToDo {
		var person string
		remind := &cobra.Command{
			Use:   "remind",
			Short: "Remind all open todos of a person",
			RunE: func(cmd *cobra.Command, args []string) error {
				if person == "" {
					return fmt.Errorf("--person required")
				}
				return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
					updated, err := e.RemindTodos(ctx, map[string]any{"person": person})
					if err != nil {
						return err
					}
					return printJSON(map[string]bool{"updated": updated})
				})
			},
		}
		remind.Flags().StringVar(&person, "person", "", "person name")
		cmd.AddCommand(remind)
	}

	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := events.Tail(ctx, e.DB, n)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.AddCommand(tail)
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Listen = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := newEngine(conn, cfg)
			handler, err := server.New(server.Config{Engine: e, BasePath: cfg.Server.BasePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Listen, Handler: handler}
			go func() {
				<-ctx.Done()
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutCtx)
			}()
			fmt.Printf("Serving Choreline API on http://%s (OpenAPI at /openapi.json)\n", cfg.Server.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func daemonCmd() *cobra.Command {
	var api string
	var sleep int
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the reminder and expiry poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if api != "" {
				cfg.Daemon.API = api
			}
			if sleep > 0 {
				cfg.Daemon.Sleep = sleep
			}
			client := chorelinesdk.New(cfg.Daemon.API)
			client.Timeout = time.Duration(cfg.Daemon.Timeout) * time.Second
			d := &daemon.Daemon{
				Client: client,
				Sleep:  time.Duration(cfg.Daemon.Sleep) * time.Second,
				Log:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
			}
			if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&api, "api", "", "API base URL (overrides config)")
	cmd.Flags().IntVar(&sleep, "sleep", 0, "poll interval seconds (overrides config)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, newEngine(conn, cfg))
}

func newEngine(conn *sql.DB, cfg *config.Config) *engine.Engine {
	e := &engine.Engine{
		DB:     conn,
		Repo:   repo.Repo{DB: conn},
		Events: events.Writer{},
		Log:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
		Config: cfg,
	}
	if cfg.Redis.Addr != "" {
		e.Pub = events.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Channel)
	}
	return e
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseJSONMap(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return m, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func formatEpoch(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
