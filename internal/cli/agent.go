package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CrewClaw/CrewClaw/internal/agent"
	"github.com/CrewClaw/CrewClaw/internal/config"
	"github.com/CrewClaw/CrewClaw/internal/conversation"
	"github.com/CrewClaw/CrewClaw/internal/dispatch"
	"github.com/CrewClaw/CrewClaw/internal/policy"
)

var (
	agentMessage string
	agentSession string
	agentMode    string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a single agent on one prompt",
	Run:   runAgentCmd,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Message to send to the agent")
	agentCmd.Flags().StringVarP(&agentSession, "session", "s", "cli-default", "Session key for the transcript")
	agentCmd.Flags().StringVarP(&agentMode, "permission-mode", "p", "", "Permission mode (default, acceptEdits, plan, dontAsk, bypass)")
}

func runAgentCmd(cmd *cobra.Command, args []string) {
	if agentMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}

	printHeader("🤖 CrewClaw Agent")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if agentMode != "" {
		cfg.Policy.Mode = agentMode
	}

	rt, err := buildRuntime(cfg, "solo")
	if err != nil {
		fmt.Printf("Setup error: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	engine := policy.NewEngine(rt.mode, rt.rules)
	disp := dispatch.New(dispatch.Options{
		Registry: rt.registry,
		Policy:   engine,
		Hooks:    rt.hooks,
		AskUser:  askOnTerminal,
		WorkDir:  cfg.Paths.Workspace,
	})

	prompt := agent.BuildSystemPrompt(agent.PromptOptions{
		WorkDir:  cfg.Paths.Workspace,
		Registry: rt.registry,
	})
	state := conversation.New(prompt)
	state.SetCompactThreshold(cfg.Model.CompactThreshold)

	loop := agent.NewLoop(agent.LoopOptions{
		Provider:    rt.provider,
		Dispatcher:  disp,
		State:       state,
		Hooks:       rt.hooks,
		Transcripts: conversation.NewTranscripts(cfg.Paths.SessionDir),
		SessionKey:  agentSession,
		Model:       cfg.Model.Name,
		MaxTurns:    cfg.Model.MaxTurns,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	})

	res, err := loop.Run(context.Background(), agentMessage)
	loop.End()
	if err != nil {
		fmt.Printf("Run error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println(res.FinalContent)
	fmt.Printf("\n(%d turn(s), %d tokens)\n", res.Turns, res.TotalTokens)
}

// askOnTerminal prompts the operator for a permission decision.
func askOnTerminal(ctx context.Context, question string) (string, error) {
	fmt.Printf("\n%s\n[y]es once / [a]lways / [n]o: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}
