package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"govpulse/internal/app"
	"govpulse/internal/config"
	"govpulse/internal/repo"
	"govpulse/internal/server"
	"govpulse/internal/syncjob"
)

var rootCmd = &cobra.Command{
	Use:   "gp",
	Short: "GovPulse CLI",
	Long: `GovPulse reconciles work items from external trackers and helpdesks
into one canonical store and derives delivery analytics from it.
- Workspace: the .govpulse directory holding the database; govpulse.yml next to it configures sources.
- Sync: pulls items from a source, upserts them by external key and records one movement per status change.
- Movements: observed status transitions; backward ones are rollbacks and can carry a reviewer justification.
- Delivery points: a fixed complexity x risk score per item, rolled up per project and team.
- Escalations: derived from movements that cross an ownership level (triage, engineering, release).`,
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
	viper.SetEnvPrefix("GOVPULSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(movementCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(escalationCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var withScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.Server.Addr
				}
				if basePath == "" {
					basePath = a.Config.Server.BasePath
				}
				jwtSecret := os.Getenv("GOVPULSE_JWT_SECRET")
				if jwtSecret == "" {
					jwtSecret = a.Config.Server.JWTSecret
				}
				handler, err := server.New(server.Config{
					Reconcile:    a.Reconcile,
					Analytics:    a.Analytics,
					Orchestrator: a.Orchestrator,
					Jobs:         a.Jobs,
					BasePath:     basePath,
					Auth: server.AuthConfig{
						JWTSecret: jwtSecret,
						Tokens:    a.Config.Server.Tokens,
						Logger:    a.Logger,
					},
				})
				if err != nil {
					return err
				}
				runCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				if withScheduler {
					go a.Scheduler().Run(runCtx)
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-runCtx.Done()
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving GovPulse API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "run periodic syncs in the background")
	return cmd
}

func syncCmd() *cobra.Command {
	sync := &cobra.Command{Use: "sync", Short: "Run and inspect sync jobs"}
	sync.AddCommand(syncRunCmd())
	sync.AddCommand(syncStatusCmd())
	return sync
}

func syncRunCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync one source, or all configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if source == "" {
					if err := a.Orchestrator.SyncAll(ctx); err != nil {
						return err
					}
					return printJobs(a.Jobs.List())
				}
				jobID, err := a.Orchestrator.Start(ctx, source)
				if err != nil {
					return err
				}
				job := waitForJob(a.Jobs, jobID)
				if err := printJobs([]syncjob.Job{job}); err != nil {
					return err
				}
				if job.State == syncjob.StateFailed {
					return fmt.Errorf("sync failed: %s", job.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source name (empty syncs all)")
	return cmd
}

func waitForJob(jobs *syncjob.Registry, jobID string) syncjob.Job {
	for {
		job, ok := jobs.Get(jobID)
		if !ok {
			return syncjob.Job{ID: jobID, State: syncjob.StateFailed, Message: "job vanished"}
		}
		if job.State == syncjob.StateCompleted || job.State == syncjob.StateFailed {
			return job
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func syncStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync jobs from this process, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printJobs(a.Jobs.List())
			})
		},
	}
	return cmd
}

func printJobs(jobs []syncjob.Job) error {
	if viper.GetBool("json") {
		return printJSON(jobs)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Source", "State", "Progress", "Created", "Updated", "Skipped", "Message"})
	for _, j := range jobs {
		tw.AppendRow(table.Row{j.ID, j.Source, j.State, fmt.Sprintf("%d%%", j.Progress), j.Report.Created, j.Report.Updated, len(j.Report.Failures), j.Message})
	}
	tw.Render()
	return nil
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{Use: "item", Short: "Inspect work items"}
	item.AddCommand(itemListCmd())
	item.AddCommand(itemShowCmd())
	item.AddCommand(itemMovementsCmd())
	return item
}

func itemListCmd() *cobra.Command {
	var f repo.WorkItemFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if f.Limit == 0 {
					f.Limit = 100
				}
				items, err := a.Reconcile.Repo.ListWorkItems(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Key", "Kind", "Title", "Status", "Priority", "Points"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.ExternalKey, w.Kind, w.Title, w.Status, w.Priority, w.DeliveryPoints})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id filter")
	cmd.Flags().StringVar(&f.Source, "source", "", "source filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Kind, "kind", "", "kind filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee-id", "", "assignee filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 100, "max rows")
	return cmd
}

func itemShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				w, err := a.Reconcile.Repo.GetWorkItem(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	return cmd
}

func itemMovementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movements <id>",
		Short: "Show the movement history of one work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				movements, err := a.Reconcile.Repo.ListMovements(ctx, repo.MovementFilters{WorkItemID: args[0]})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(movements)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "From", "To", "Rollback", "Actor", "Occurred"})
				for _, m := range movements {
					tw.AppendRow(table.Row{m.ID, m.FromStatus, m.ToStatus, m.IsRollback, m.Actor, m.OccurredAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func movementCmd() *cobra.Command {
	mv := &cobra.Command{Use: "movement", Short: "Inspect and annotate movements"}
	mv.AddCommand(movementListCmd())
	mv.AddCommand(movementJustifyCmd())
	return mv
}

func movementListCmd() *cobra.Command {
	var rollbackOnly bool
	var after string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List movements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				movements, err := a.Reconcile.Repo.ListMovements(ctx, repo.MovementFilters{
					RollbackOnly:  rollbackOnly,
					OccurredAfter: after,
					Limit:         limit,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(movements)
			})
		},
	}
	cmd.Flags().BoolVar(&rollbackOnly, "rollbacks", false, "only rollback movements")
	cmd.Flags().StringVar(&after, "after", "", "only movements at or after this RFC3339 time")
	cmd.Flags().IntVar(&limit, "limit", 100, "max rows")
	return cmd
}

func movementJustifyCmd() *cobra.Command {
	var justification string
	cmd := &cobra.Command{
		Use:   "justify <id>",
		Short: "Attach a reviewer justification to a movement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(justification) == "" {
				return fmt.Errorf("--justification is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m, err := a.Reconcile.AttachJustification(ctx, args[0], justification, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&justification, "justification", "", "justification text")
	_ = cmd.MarkFlagRequired("justification")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Inspect projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectRecalcCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	var teamID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects with cached aggregations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				projects, err := a.Reconcile.Repo.ListProjects(ctx, teamID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(projects)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Key", "Name", "Items", "Done", "Points", "Points done"})
				for _, p := range projects {
					tw.AppendRow(table.Row{p.ID, p.Key, p.Name, p.Aggregation.TotalItems, p.Aggregation.CompletedItems, p.Aggregation.TotalPoints, p.Aggregation.CompletedPoints})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "team id filter")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Reconcile.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectRecalcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recalc <id>",
		Short: "Recompute a project aggregation from its work items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Reconcile.RecalculateProject(ctx, args[0]); err != nil {
					return err
				}
				p, err := a.Reconcile.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func teamCmd() *cobra.Command {
	team := &cobra.Command{Use: "team", Short: "Inspect teams"}
	team.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				teams, err := a.Reconcile.Repo.ListTeams(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(teams)
			})
		},
	})
	return team
}

func analyticsCmd() *cobra.Command {
	an := &cobra.Command{Use: "analytics", Short: "Derived reports over the canonical store"}
	an.AddCommand(analyticsTeamsCmd())
	an.AddCommand(analyticsRollbacksCmd())
	an.AddCommand(analyticsSLACmd())
	an.AddCommand(analyticsTrendsCmd())
	return an
}

func analyticsTeamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Team performance rollup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				perf, err := a.Analytics.TeamPerformance(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(perf)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Team", "Projects", "Items", "Done", "Points", "Points done", "Rate"})
				for _, tp := range perf {
					tw.AppendRow(table.Row{tp.TeamName, tp.Projects, tp.TotalItems, tp.CompletedItems, tp.TotalPoints, tp.CompletedPoints, fmt.Sprintf("%.0f%%", tp.CompletionRate*100)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func analyticsRollbacksCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "rollbacks",
		Short: "Rollback statistics over a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				since := time.Now().UTC().AddDate(0, 0, -days)
				stats, err := a.Analytics.RollbackStats(ctx, since)
				if err != nil {
					return err
				}
				return printJSONOrTable(stats)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "window size in days")
	return cmd
}

func analyticsSLACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "SLA compliance report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Analytics.SLAReport(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				fmt.Printf("Total %d, breached %d, at risk %d, compliance %.1f%%\n", report.Total, report.Breached, report.AtRisk, report.ComplianceRate)
				if len(report.Items) == 0 {
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Key", "Title", "Priority", "Status", "Due", "Breached", "At risk"})
				for _, it := range report.Items {
					tw.AppendRow(table.Row{it.ExternalKey, it.Title, it.Priority, it.Status, it.DueAt, it.Breached, it.AtRisk})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func analyticsTrendsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Daily movement trend series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				to := time.Now().UTC()
				series, err := a.Analytics.Trend(ctx, to.AddDate(0, 0, -(days-1)), to)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(series)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Day", "Movements", "Rollbacks", "Points delivered"})
				for _, p := range series {
					tw.AppendRow(table.Row{p.Bucket, p.Movements, p.Rollbacks, p.PointsDelivered})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 14, "window size in days")
	return cmd
}

func escalationCmd() *cobra.Command {
	esc := &cobra.Command{Use: "escalation", Short: "Manage ownership-level escalations"}
	esc.AddCommand(escalationListCmd())
	esc.AddCommand(escalationSyncCmd())
	esc.AddCommand(escalationResolveCmd())
	return esc
}

func escalationListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List escalations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				escalations, err := a.Reconcile.Repo.ListEscalations(ctx, repo.EscalationFilters{Status: status, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(escalations)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Item", "From", "To", "Status", "Created"})
				for _, e := range escalations {
					tw.AppendRow(table.Row{e.ID, e.WorkItemID, e.FromLevel, e.ToLevel, e.Status, e.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (pending, resolved, dismissed)")
	cmd.Flags().IntVar(&limit, "limit", 100, "max rows")
	return cmd
}

func escalationSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Derive escalations from movement history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				created, err := a.Reconcile.SyncEscalations(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%d new escalation(s)\n", created)
				return nil
			})
		},
	}
	return cmd
}

func escalationResolveCmd() *cobra.Command {
	var status, resolution string
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve or dismiss a pending escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				esc, err := a.Reconcile.ResolveEscalation(ctx, args[0], status, resolution, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(esc)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "resolved", "resolved or dismissed")
	cmd.Flags().StringVar(&resolution, "resolution", "", "resolution note")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default govpulse.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Event log"}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, projectID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Reconcile.Repo.LatestEvents(ctx, n, projectID, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&projectID, "project", "", "project id filter")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
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
