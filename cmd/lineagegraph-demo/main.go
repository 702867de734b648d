// Command lineagegraph-demo is a thin smoke-test binary exercising the
// engine end to end: open a store, create a session, add a prompt and a
// response, run a query, and print a metrics snapshot. It is explicitly
// NOT the out-of-scope "CLI front-end" collaborator from spec.md §1/§6
// (which would wrap request validation, auth, and a full command
// surface) — it plays the same role the teacher's cmd/bd-examples plays
// for beads: a minimal runnable demonstration, not a product surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/lineagegraph/internal/agentdemo"
	"github.com/steveyegge/lineagegraph/internal/config"
	"github.com/steveyegge/lineagegraph/internal/engine"
	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/graph"
)

var (
	storePath string
	verbose   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lineagegraph-demo",
		Short: "Exercise the lineagegraph engine end to end",
	}
	root.PersistentFlags().StringVar(&storePath, "path", "./lineagegraph-demo-data", "store directory")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable structured debug logging")
	root.AddCommand(newChatCmd())
	return root
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Run a single simulated chat turn and print engine stats",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		log = l
	}

	cfg := config.Default()
	cfg.Path = storePath

	publisher := eventbus.NewInMemoryPublisher()
	e, err := engine.Open(ctx, engine.Options{
		Config:     cfg,
		Publishers: []eventbus.Publisher{publisher},
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer e.Close()

	session, err := e.CreateSession(ctx, map[string]string{"source": "lineagegraph-demo"}, nil)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	promptContent, responseContent, usage, model := cannedTurn()
	if live, turn, genErr := tryGenerateLiveTurn(ctx); genErr != nil {
		fmt.Fprintf(os.Stderr, "agentdemo: falling back to canned turn: %v\n", genErr)
	} else if live {
		responseContent = turn.Content
		usage = graph.NewTokenUsage(int(turn.PromptTokens), int(turn.CompletionTokens))
		model = "claude-3-5-haiku-latest"
	}

	promptID, err := e.AddPrompt(ctx, session.ID, promptContent, graph.PromptMetadata{Model: model})
	if err != nil {
		return fmt.Errorf("add prompt: %w", err)
	}

	responseID, err := e.AddResponse(ctx, promptID, responseContent, usage, graph.ResponseMetadata{Model: model})
	if err != nil {
		return fmt.Errorf("add response: %w", err)
	}

	toolID, err := e.AddToolInvocation(ctx, responseID, "web_search", map[string]any{"q": "rust"}, false, nil)
	if err != nil {
		return fmt.Errorf("add tool invocation: %w", err)
	}
	if err := e.UpdateToolInvocation(ctx, toolID, true, map[string]any{"n": 2}, "", 150); err != nil {
		return fmt.Errorf("update tool invocation: %w", err)
	}

	nodes, err := e.Query().Session(session.ID).Execute(ctx)
	if err != nil {
		return fmt.Errorf("query session nodes: %w", err)
	}

	stats, err := e.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Printf("session %s: %d nodes, %d edges, %d bytes on disk\n",
		session.ID, stats.NodeCount, stats.EdgeCount, stats.StorageBytes)
	fmt.Printf("query().session(...).execute() returned %d nodes\n", len(nodes))
	fmt.Printf("events recorded: %d\n", len(publisher.Events()))

	metricsSnapshot := e.Metrics()
	fmt.Printf("metrics: prompts_submitted=%d responses_generated=%d tools_invoked=%d queries_executed=%d\n",
		metricsSnapshot.PromptsSubmitted, metricsSnapshot.ResponsesGenerated,
		metricsSnapshot.ToolsInvoked, metricsSnapshot.QueriesExecuted)

	return e.Flush(ctx)
}

// cannedTurn is the fallback prompt/response pair used when no
// ANTHROPIC_API_KEY is configured.
func cannedTurn() (prompt, response string, usage graph.TokenUsage, model string) {
	return "hi", "hello", graph.NewTokenUsage(5, 3), "demo-model"
}

// tryGenerateLiveTurn asks the Anthropic API for a real assistant reply.
// The bool return is false (with a nil error) when ANTHROPIC_API_KEY isn't
// set, which the caller treats as "use the canned turn" rather than a
// failure.
func tryGenerateLiveTurn(ctx context.Context) (bool, agentdemo.Turn, error) {
	client, err := agentdemo.NewClient()
	if err != nil {
		if errors.Is(err, agentdemo.ErrAPIKeyRequired) {
			return false, agentdemo.Turn{}, nil
		}
		return false, agentdemo.Turn{}, err
	}

	turn, err := client.GenerateTurn(ctx, "the lineagegraph demo binary", "a terse backend engineer")
	if err != nil {
		return false, agentdemo.Turn{}, err
	}
	return true, turn, nil
}
