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

	"taskdeck/internal/app"
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/logger"
	"taskdeck/internal/repo"
	"taskdeck/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Taskdeck CLI",
	Long: `Taskdeck tracks a team's tasks from a local workspace.
Tasks move todo -> in progress -> completed, carry subtasks and a
per-task activity log, and go through a trash (soft delete) before
anything is removed for good. The dashboard sums the board up.`,
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
	viper.SetEnvPrefix("TASKDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "acting user id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(serveCmd())
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks flow todo -> in progress -> completed. Deleting sends a task to the trash; restore brings it back; purge removes it permanently.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskStageCmd())
	task.AddCommand(taskSubtaskCmd())
	task.AddCommand(taskDuplicateCmd())
	task.AddCommand(taskActivityCmd())
	task.AddCommand(taskTrashCmd())
	task.AddCommand(taskRestoreCmd())
	task.AddCommand(taskPurgeCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var assignees []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.Assignees = assignees
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Stage, "stage", "", "stage (todo, in progress, completed)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (low, normal, high, urgent)")
	cmd.Flags().StringArrayVar(&assignees, "assignee", []string{}, "assignee user id (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var stage, priority, assignee string
	var trashed bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				filters := repo.TaskFilters{
					Stage:      stage,
					Priority:   priority,
					AssigneeID: assignee,
					Limit:      limit,
				}
				if trashed {
					t := true
					filters.Trashed = &t
				}
				tasks, err := e.ListTasks(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Stage", "Priority", "Assignees", "Subtasks"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Stage, t.Priority, strings.Join(t.Assignees, ","), len(t.SubTasks)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "filter by stage")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by assignee user id")
	cmd.Flags().BoolVar(&trashed, "trashed", false, "show trashed tasks instead")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func taskShowCmd() *cobra.Command {
	var includeTrashed bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with subtasks and activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, args[0], includeTrashed)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().BoolVar(&includeTrashed, "include-trashed", false, "show even if trashed")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, priority string
	var assignees []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update title, description, priority or assignees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("assignee") {
				opts.Assignees = &assignees
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (low, normal, high, urgent)")
	cmd.Flags().StringArrayVar(&assignees, "assignee", []string{}, "replace assignees (repeatable)")
	return cmd
}

func taskStageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage <id> <stage>",
		Short: "Move a task to a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ChangeStage(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskSubtaskCmd() *cobra.Command {
	var opts engine.SubTaskOptions
	cmd := &cobra.Command{
		Use:   "subtask <task-id>",
		Short: "Attach a subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Date == "" {
				opts.Date = time.Now().UTC().Format(time.RFC3339)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateSubTask(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "subtask title")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "subtask tag")
	cmd.Flags().StringVar(&opts.Date, "date", "", "due date (RFC 3339, defaults to now)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func taskDuplicateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Duplicate a task with its subtasks and assignees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.DuplicateTask(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskActivityCmd() *cobra.Command {
	var actType, text string
	cmd := &cobra.Command{
		Use:   "activity <task-id>",
		Short: "Post a progress report on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.PostActivity(ctx, args[0], actType, text, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&actType, "type", domain.ActivityCommented, "activity type")
	cmd.Flags().StringVar(&text, "text", "", "activity text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func taskTrashCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "trash [id]",
		Short: "Move a task (or every task with --all) to the trash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := engine.ActionDelete
			id := ""
			if all {
				action = engine.ActionDeleteAll
			} else if len(args) == 1 {
				id = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.TrashOrRestore(ctx, id, action)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "trash every non-trashed task")
	return cmd
}

func taskRestoreCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "restore [id]",
		Short: "Restore a task (or every trashed task with --all)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := engine.ActionRestore
			id := ""
			if all {
				action = engine.ActionRestoreAll
			} else if len(args) == 1 {
				id = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.TrashOrRestore(ctx, id, action)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "restore every trashed task")
	return cmd
}

func taskPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge <id>",
		Short: "Permanently delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.PurgeTask(ctx, args[0])
			})
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userAddCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userEnableCmd())
	user.AddCommand(userDisableCmd())
	return user
}

func userAddCmd() *cobra.Command {
	var opts engine.UserCreateOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Title, "title", "", "job title")
	cmd.Flags().StringVar(&opts.Role, "role", "", "role")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().BoolVar(&opts.IsAdmin, "admin", false, "grant admin")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Title", "Admin", "Active"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Title, u.IsAdmin, u.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userEnableCmd() *cobra.Command {
	return userActiveCmd("enable", true)
}

func userDisableCmd() *cobra.Command {
	return userActiveCmd("disable", false)
}

func userActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetUserActive(ctx, args[0], active)
			})
		},
	}
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyRevokeCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var user, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, plaintext, err := e.CreateAPIKey(ctx, user, name)
				if err != nil {
					return err
				}
				fmt.Printf("key id: %s\napi key: %s\n", key.ID, plaintext)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id the key acts as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, user)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "User", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.UserID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "filter by user id")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RevokeAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Dashboard(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Total tasks: %d (created last week: %d)\n", s.Total, s.LastWeek)
				fmt.Println("By stage:")
				for _, stage := range domain.Stages {
					fmt.Printf("  %s: %d\n", stage, s.ByStage[stage])
				}
				fmt.Println("By priority:")
				for _, prio := range domain.Priorities {
					fmt.Printf("  %s: %d\n", prio, s.ByPriority[prio])
				}
				if len(s.Recent) > 0 {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"ID", "Title", "Stage", "Updated"})
					for _, t := range s.Recent {
						tw.AppendRow(table.Row{t.ID, t.Title, t.Stage, t.UpdatedAt})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, e, err := app.Open(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			if u, seeded, err := app.EnsureAdmin(cmd.Context(), e, viper.GetString("actor-id")); err != nil {
				return err
			} else if seeded {
				fmt.Printf("Seeded admin user %s (%s)\n", u.Name, u.ID)
			}
			log, err := logger.New(e.Config.Logging.Development)
			if err != nil {
				return err
			}
			defer log.Sync()
			secret := e.Config.Auth.JWTSecret
			if secret == "" {
				secret = os.Getenv("TASKDECK_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("jwt secret required: set auth.jwt_secret in taskdeck.yml or TASKDECK_JWT_SECRET")
			}
			if addr == "" {
				addr = e.Config.Server.Addr
			}
			if basePath == "" {
				basePath = e.Config.Server.BasePath
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Logger:   log,
				Auth: server.AuthConfig{
					JWTSecret:     secret,
					TokenTTL:      time.Duration(e.Config.TokenTTLMinutesOrDefault()) * time.Minute,
					AllowDevLogin: e.Config.Auth.DevLogin,
					Logger:        log,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Taskdeck API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	conn, e, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, _, err := app.EnsureAdmin(ctx, e, viper.GetString("actor-id")); err != nil {
		return err
	}
	return fn(ctx, e)
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
