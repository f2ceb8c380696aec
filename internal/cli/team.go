package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/CrewClaw/CrewClaw/internal/config"
	"github.com/CrewClaw/CrewClaw/internal/store"
	"github.com/CrewClaw/CrewClaw/internal/team"
)

var teamFile string

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Run a coordinated team against a task list",
	Run:   runTeamCmd,
}

func init() {
	teamCmd.Flags().StringVarP(&teamFile, "file", "f", "", "Team definition JSON (teammates + tasks)")
}

func runTeamCmd(cmd *cobra.Command, args []string) {
	if teamFile == "" {
		fmt.Println("Error: --file is required")
		os.Exit(1)
	}

	printHeader("👥 CrewClaw Team")

	data, err := os.ReadFile(teamFile)
	if err != nil {
		fmt.Printf("Team file error: %v\n", err)
		os.Exit(1)
	}
	var teamCfg team.CoordinatorConfig
	if err := json.Unmarshal(data, &teamCfg); err != nil {
		fmt.Printf("Team file parse error: %v\n", err)
		os.Exit(1)
	}
	if teamCfg.TeamName == "" {
		teamCfg.TeamName = "default"
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	rt, err := buildRuntime(cfg, teamCfg.TeamName)
	if err != nil {
		fmt.Printf("Setup error: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	coord, err := team.NewCoordinator(teamCfg, team.CoordinatorDeps{
		Provider: rt.provider,
		Registry: rt.registry,
		Rules:    rt.rules,
		Hooks:    rt.hooks,
		WorkDir:  cfg.Paths.Workspace,
		Observer: func(msg team.TeamMessage) {
			if rt.store != nil {
				rt.store.RecordMessage(store.MessageRecord{
					MessageID: msg.ID,
					Team:      teamCfg.TeamName,
					Sender:    msg.From,
					Recipient: msg.To,
					Type:      string(msg.Type),
					Content:   msg.Content,
					Timestamp: msg.Timestamp,
				})
			}
			if rt.trace != nil {
				rt.trace.AuditMessage(msg, string(msg.Type))
			}
		},
	})
	if err != nil {
		fmt.Printf("Team setup error: %v\n", err)
		os.Exit(1)
	}

	if rt.store != nil {
		if err := rt.store.SaveTeam(teamCfg.TeamName, teamCfg); err != nil {
			fmt.Printf("Warning: could not persist team descriptor: %v\n", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down team...")
		coord.Shutdown()
		cancel()
	}()

	runErr := coord.Run(ctx)

	fmt.Println()
	for _, task := range coord.Queue().List() {
		mark := color.RedString("✗")
		if task.Status == team.TaskCompleted {
			mark = color.GreenString("✓")
		}
		fmt.Printf("%s %s", mark, task.Title)
		if task.Assignee != "" {
			fmt.Printf(" (%s)", task.Assignee)
		}
		fmt.Println()
		if rt.store != nil {
			rt.store.UpsertTask(taskRecord(teamCfg.TeamName, task))
		}
	}

	if runErr != nil {
		fmt.Printf("\nTeam run finished with errors: %v\n", runErr)
		os.Exit(1)
	}
	if coord.AllComplete() {
		fmt.Println("\nAll tasks complete.")
	}
}

func taskRecord(teamName string, task team.TaskItem) store.TaskRecord {
	rec := store.TaskRecord{
		TaskID:      task.ID,
		Team:        teamName,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Assignee:    task.Assignee,
		Result:      task.Result,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if !task.CompletedAt.IsZero() {
		completed := task.CompletedAt
		rec.CompletedAt = &completed
	}
	return rec
}
