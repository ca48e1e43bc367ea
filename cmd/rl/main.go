package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
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
	"go.uber.org/zap"

	"reportline/internal/app"
	"reportline/internal/config"
	"reportline/internal/db"
	"reportline/internal/domain"
	"reportline/internal/migrate"
	"reportline/internal/repo"
	"reportline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "rl",
	Short: "Reportline CLI",
	Long: `Reportline reconciles activity reports against a desired-state document and
drives their approval workflow.
- Report: one activity report with its recipients, next steps, goals and objectives.
- Save: send the whole desired state; omitted collections stay as they are, empty ones are cleared.
- Approvers: each leaves approved or needs_action; the report status is derived from them.
- Workspace: the .reportline directory holding the SQLite database, plus reportline.yml.
- Event log: every change is recorded, view it with 'rl log tail'.`,
	SilenceUsage: true,
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
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("REPORTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides reportline.yml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(approverCmd())
	rootCmd.AddCommand(goalCmd())
	rootCmd.AddCommand(objectiveCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write reportline.yml and create the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				version, err := migrate.Version(ctx, rt.DB)
				if err != nil {
					return err
				}
				fmt.Printf("Initialized %s (schema version %d)\n", path, version)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing reportline.yml")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				version, err := migrate.Version(ctx, rt.DB)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int{"version": version})
				}
				fmt.Printf("Schema at version %d\n", version)
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Load directory data",
		Long:  "Users, grants and other entities are reference data the engine validates ids against.",
	}
	seed.AddCommand(seedUserCmd())
	seed.AddCommand(seedGrantCmd())
	seed.AddCommand(seedEntityCmd())
	return seed
}

func seedUserCmd() *cobra.Command {
	var u domain.User
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create or rename a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if u.ID <= 0 || u.Name == "" {
				return fmt.Errorf("--id and --name required")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Engine.Repo.UpsertUser(ctx, u); err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().Int64Var(&u.ID, "id", 0, "user id")
	cmd.Flags().StringVar(&u.Name, "name", "", "display name")
	return cmd
}

func seedGrantCmd() *cobra.Command {
	var g domain.Grant
	var region int64
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Create or update a grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.ID <= 0 || g.Name == "" {
				return fmt.Errorf("--id and --name required")
			}
			if region > 0 {
				g.RegionID = &region
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Engine.Repo.UpsertGrant(ctx, g); err != nil {
					return err
				}
				stored, err := rt.Engine.Repo.GetGrant(ctx, nil, g.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(stored)
			})
		},
	}
	cmd.Flags().Int64Var(&g.ID, "id", 0, "grant id")
	cmd.Flags().StringVar(&g.Name, "name", "", "grant number")
	cmd.Flags().StringVar(&g.RecipientName, "recipient", "", "recipient name")
	cmd.Flags().StringVar(&g.Status, "status", "Active", "grant status")
	cmd.Flags().Int64Var(&region, "region", 0, "region id")
	return cmd
}

func seedEntityCmd() *cobra.Command {
	var oe domain.OtherEntity
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Create or rename an other entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if oe.ID <= 0 || oe.Name == "" {
				return fmt.Errorf("--id and --name required")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Engine.Repo.UpsertOtherEntity(ctx, oe); err != nil {
					return err
				}
				return printJSONOrTable(oe)
			})
		},
	}
	cmd.Flags().Int64Var(&oe.ID, "id", 0, "entity id")
	cmd.Flags().StringVar(&oe.Name, "name", "", "entity name")
	return cmd
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Manage activity reports"}
	rep.AddCommand(reportSaveCmd())
	rep.AddCommand(reportShowCmd())
	rep.AddCommand(reportSubmitCmd())
	rep.AddCommand(reportDeleteCmd())
	return rep
}

func reportSaveCmd() *cobra.Command {
	var id int64
	var file string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Reconcile a report with a JSON desired-state document",
		Long:  "Reads the document from --file (or stdin with '-'). Without --id a new report is created.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPayload(file)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				view, err := rt.Engine.Save(ctx, id, p, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printReport(view)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "report id (omit to create)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "payload file, '-' for stdin")
	return cmd
}

func reportShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the canonical report view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				view, err := rt.Engine.GetReport(ctx, id)
				if err != nil {
					return err
				}
				return printReport(view)
			})
		},
	}
}

func goalCmd() *cobra.Command {
	goal := &cobra.Command{Use: "goal", Short: "Inspect goals"}
	goal.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a goal and whether an approved report protects it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				g, err := rt.Engine.Repo.GetGoal(ctx, nil, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(g)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Grant", "Name", "Status", "Created via", "On approved report"})
				tw.AppendRow(table.Row{g.ID, g.GrantID, g.Name, g.Status, g.CreatedVia, g.OnApprovedAR})
				tw.Render()
				return nil
			})
		},
	})
	return goal
}

func objectiveCmd() *cobra.Command {
	objective := &cobra.Command{Use: "objective", Short: "Inspect objectives"}
	objective.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show an objective and whether an approved report protects it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				o, err := rt.Engine.Repo.GetObjective(ctx, nil, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(o)
				}
				owner := "-"
				switch {
				case o.GoalID != nil:
					owner = fmt.Sprintf("goal %d", *o.GoalID)
				case o.OtherEntityID != nil:
					owner = fmt.Sprintf("entity %d", *o.OtherEntityID)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Owner", "Title", "Status", "Created via", "On approved report"})
				tw.AppendRow(table.Row{o.ID, owner, o.Title, o.Status, o.CreatedVia, o.OnApprovedAR})
				tw.Render()
				return nil
			})
		},
	})
	return objective
}

func reportSubmitCmd() *cobra.Command {
	var draft bool
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit a report for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status := domain.SubmissionSubmitted
			if draft {
				status = domain.SubmissionDraft
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				view, err := rt.Engine.SetSubmissionStatus(ctx, id, status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printReport(view)
			})
		},
	}
	cmd.Flags().BoolVar(&draft, "draft", false, "return the report to draft instead")
	return cmd
}

func reportDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft delete a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Engine.SoftDeleteReport(ctx, id, viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Printf("Report %d deleted\n", id)
				return nil
			})
		},
	}
}

func approverCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "approver", Short: "Approver decisions"}
	cmd.AddCommand(approverDecideCmd())
	return cmd
}

func approverDecideCmd() *cobra.Command {
	var reportID, userID int64
	var status, note string
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Record an approver's decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := domain.ApproverDecision{Status: domain.ApproverStatus(status)}
			if cmd.Flags().Changed("note") {
				d.Note = &note
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				a, err := rt.Engine.SetApproverDecision(ctx, reportID, userID, d, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().Int64Var(&reportID, "report", 0, "report id")
	cmd.Flags().Int64Var(&userID, "user", 0, "approver user id")
	cmd.Flags().StringVar(&status, "status", "", "approved or needs_action")
	cmd.Flags().StringVar(&note, "note", "", "review note")
	_ = cmd.MarkFlagRequired("report")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Everything the engine changed: saves, approver changes, status transitions and pruning.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				events, err := rt.Engine.Repo.LatestEvents(ctx, n, 0, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Report", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.ReportID, evt.EntityKind + ":" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&f.ReportID, "report", 0, "report id filter")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if addr == "" {
					addr = rt.Config.Server.Addr
				}
				if basePath == "" {
					basePath = rt.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{Engine: rt.Engine, BasePath: basePath, Logger: rt.Logger})
				if err != nil {
					return err
				}
				server.StartWebhookDispatcher(ctx, rt.Engine.Repo, rt.Config, rt.Logger)
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				rt.Logger.Info("serving", zap.String("addr", addr), zap.String("base_path", basePath))
				fmt.Fprintf(os.Stderr, "Serving Reportline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to server.base_path)")
	return cmd
}

// --- helpers ---

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := app.Open(ctx, viper.GetString("workspace"), app.Overrides{LogLevel: viper.GetString("log-level")})
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func readPayload(file string) (domain.ReportPayload, error) {
	var p domain.ReportPayload
	var (
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printReport(view domain.ReportView) error {
	if viper.GetBool("json") {
		return printJSON(view)
	}
	fmt.Printf("Report %d [%s] submission=%s recipients=%s\n", view.ID, view.CalculatedStatus, view.SubmissionStatus, view.ActivityRecipientType)
	if view.ApprovedAt != nil {
		fmt.Printf("Approved at %s\n", *view.ApprovedAt)
	}

	recipients := table.NewWriter()
	recipients.SetOutputMirror(os.Stdout)
	recipients.SetTitle("Recipients")
	recipients.AppendHeader(table.Row{"ID", "Name", "Type"})
	for _, r := range view.ActivityRecipients {
		recipients.AppendRow(table.Row{r.ID, r.Name, r.Type})
	}
	recipients.Render()

	work := table.NewWriter()
	work.SetOutputMirror(os.Stdout)
	work.SetTitle("Goals and objectives")
	work.AppendHeader(table.Row{"Goal", "Objective", "Status", "Topics"})
	for _, g := range view.GoalsAndObjectives {
		work.AppendRow(table.Row{fmt.Sprintf("%d %s", g.ID, g.Name), "", g.Status, ""})
		for i, o := range g.Objectives {
			connector := "├── "
			if i == len(g.Objectives)-1 {
				connector = "└── "
			}
			work.AppendRow(table.Row{"", connector + o.Title, o.Status, strings.Join(o.Topics, ", ")})
		}
	}
	for _, o := range view.ObjectivesWithoutGoals {
		work.AppendRow(table.Row{"-", o.Title, o.Status, strings.Join(o.Topics, ", ")})
	}
	work.Render()

	approvers := table.NewWriter()
	approvers.SetOutputMirror(os.Stdout)
	approvers.SetTitle("Approvers")
	approvers.AppendHeader(table.Row{"User", "Status", "Note"})
	for _, a := range view.Approvers {
		status, note := "pending", ""
		if a.Status != nil {
			status = string(*a.Status)
		}
		if a.Note != nil {
			note = *a.Note
		}
		approvers.AppendRow(table.Row{a.UserID, status, note})
	}
	approvers.Render()
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
