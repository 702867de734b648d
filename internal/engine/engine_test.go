package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/lineagegraph/internal/config"
	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

func openTestEngine(t *testing.T, publishers ...eventbus.Publisher) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Path = t.TempDir()
	e, err := Open(context.Background(), Options{Config: cfg, Publishers: publishers})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// TestChatTurnCreatesFullLineage covers spec.md §8's S1 scenario: a
// session, a prompt, a response, and the HasResponse edge between them,
// queryable back out via GetSessionNodes.
func TestChatTurnCreatesFullLineage(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	session, err := e.CreateSession(ctx, map[string]string{"client": "test"}, nil)
	require.NoError(t, err)

	promptID, err := e.AddPrompt(ctx, session.ID, "hello", graph.PromptMetadata{Model: "m"})
	require.NoError(t, err)

	responseID, err := e.AddResponse(ctx, promptID, "hi back", graph.NewTokenUsage(2, 3), graph.ResponseMetadata{Model: "m"})
	require.NoError(t, err)

	nodes, err := e.GetSessionNodes(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, promptID, nodes[0].NodeID())
	assert.Equal(t, responseID, nodes[1].NodeID())

	edges, err := e.GetOutgoingEdges(ctx, promptID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, graph.EdgeHasResponse, edges[0].Type)
	assert.Equal(t, responseID, edges[0].To)
}

// TestSecondPromptChainsFollowsEdge covers invariant 2: a session's second
// prompt follows the prior node via a Follows edge.
func TestSecondPromptChainsFollowsEdge(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	session, err := e.CreateSession(ctx, nil, nil)
	require.NoError(t, err)

	first, err := e.AddPrompt(ctx, session.ID, "first", graph.PromptMetadata{})
	require.NoError(t, err)
	second, err := e.AddPrompt(ctx, session.ID, "second", graph.PromptMetadata{})
	require.NoError(t, err)

	edges, err := e.GetOutgoingEdges(ctx, first)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, graph.EdgeFollows, edges[0].Type)
	assert.Equal(t, second, edges[0].To)
}

func TestAddPromptRejectsEmptyContent(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)
	session, err := e.CreateSession(ctx, nil, nil)
	require.NoError(t, err)

	_, err = e.AddPrompt(ctx, session.ID, "", graph.PromptMetadata{})
	require.Error(t, err)
	assert.True(t, xerrors.OfKind(err, xerrors.InvalidArgument))
}

func TestAddPromptRejectsUnknownSession(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)
	_, err := e.AddPrompt(ctx, ids.NewSessionID(), "hi", graph.PromptMetadata{})
	require.Error(t, err)
	assert.True(t, xerrors.OfKind(err, xerrors.NotFound))
}

// TestTemplateInheritanceDepthGuard covers spec.md §9's invariant: a child
// template's depth must stay below graph.MaxInheritanceDepth.
func TestTemplateInheritanceDepthGuard(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	rootID, err := e.CreateTemplate(ctx, NewTemplateInput{Name: "root", Body: "{{x}}"})
	require.NoError(t, err)

	current := rootID
	for i := 1; i < graph.MaxInheritanceDepth; i++ {
		childID, err := e.CreateTemplateFromParent(ctx, NewTemplateInput{Name: "child", Body: "{{x}}"}, current, nil, "patch")
		require.NoError(t, err)
		current = childID
	}

	// current is now at depth MaxInheritanceDepth-1; one more child would
	// reach MaxInheritanceDepth and must be rejected.
	_, err = e.CreateTemplateFromParent(ctx, NewTemplateInput{Name: "over", Body: "{{x}}"}, current, nil, "patch")
	require.Error(t, err)
	assert.True(t, xerrors.OfKind(err, xerrors.InvalidArgument))
}

// TestLinkPromptToTemplateBumpsUsageAndEmitsEvent covers spec.md §8's S2
// scenario together with template-usage tracking.
func TestLinkPromptToTemplateBumpsUsageAndEmitsEvent(t *testing.T) {
	ctx := context.Background()
	pub := eventbus.NewInMemoryPublisher()
	e := openTestEngine(t, pub)

	tplID, err := e.CreateTemplate(ctx, NewTemplateInput{
		Name: "greeting",
		Body: "Hello {{name}}",
		Variables: []graph.VariableSpec{{Name: "name", Required: true}},
	})
	require.NoError(t, err)

	session, err := e.CreateSession(ctx, nil, nil)
	require.NoError(t, err)
	promptID, err := e.AddPrompt(ctx, session.ID, "Hello Ada", graph.PromptMetadata{})
	require.NoError(t, err)

	require.NoError(t, e.LinkPromptToTemplate(ctx, promptID, tplID, map[string]string{"name": "Ada"}))

	tpl, err := e.GetTemplate(ctx, tplID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tpl.UsageCount)

	found := false
	for _, evt := range pub.Events() {
		if evt.Type() == eventbus.TypeTemplateInstantiated {
			found = true
		}
	}
	assert.True(t, found, "expected a TemplateInstantiated event")
}

// TestToolInvocationLifecyclePreservesRetryCount covers spec.md §8's S3 scenario: Pending ->
// retry -> Success, with retry_count preserved across the terminal
// transition (the Open Question decision recorded in DESIGN.md).
func TestToolInvocationLifecyclePreservesRetryCount(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	session, err := e.CreateSession(ctx, nil, nil)
	require.NoError(t, err)
	promptID, err := e.AddPrompt(ctx, session.ID, "search for go", graph.PromptMetadata{})
	require.NoError(t, err)
	responseID, err := e.AddResponse(ctx, promptID, "searching", graph.NewTokenUsage(1, 1), graph.ResponseMetadata{})
	require.NoError(t, err)

	toolID, err := e.AddToolInvocation(ctx, responseID, "web_search", map[string]any{"q": "go"}, true, nil)
	require.NoError(t, err)

	require.NoError(t, e.RecordToolRetry(ctx, toolID))
	require.NoError(t, e.RecordToolRetry(ctx, toolID))

	require.NoError(t, e.UpdateToolInvocation(ctx, toolID, true, map[string]any{"n": 1}, "", 50))

	tools, err := e.GetResponseTools(ctx, responseID)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, graph.ToolSuccess, tools[0].Status)
	assert.Equal(t, 2, tools[0].RetryCount)
}

func TestUpdateToolInvocationIsIdempotentOnSameTerminalState(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	session, err := e.CreateSession(ctx, nil, nil)
	require.NoError(t, err)
	promptID, err := e.AddPrompt(ctx, session.ID, "p", graph.PromptMetadata{})
	require.NoError(t, err)
	responseID, err := e.AddResponse(ctx, promptID, "r", graph.NewTokenUsage(1, 1), graph.ResponseMetadata{})
	require.NoError(t, err)
	toolID, err := e.AddToolInvocation(ctx, responseID, "t", nil, false, nil)
	require.NoError(t, err)

	require.NoError(t, e.UpdateToolInvocation(ctx, toolID, false, nil, "boom", 10))
	require.NoError(t, e.UpdateToolInvocation(ctx, toolID, false, nil, "boom", 10))

	require.Error(t, e.UpdateToolInvocation(ctx, toolID, true, nil, "", 10))
}

// TestDeleteNodeRemovesIndexesButKeepsEdgeRecords covers spec.md §3's
// lifecycle note for DeleteNode.
func TestDeleteNodeRemovesIndexesButKeepsEdgeRecords(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	session, err := e.CreateSession(ctx, nil, nil)
	require.NoError(t, err)
	promptID, err := e.AddPrompt(ctx, session.ID, "p", graph.PromptMetadata{})
	require.NoError(t, err)
	responseID, err := e.AddResponse(ctx, promptID, "r", graph.NewTokenUsage(1, 1), graph.ResponseMetadata{})
	require.NoError(t, err)

	require.NoError(t, e.DeleteNode(ctx, promptID))

	_, err = e.GetNode(ctx, promptID)
	assert.True(t, xerrors.OfKind(err, xerrors.NotFound))

	edges, err := e.GetIncomingEdges(ctx, responseID)
	require.NoError(t, err)
	assert.Empty(t, edges, "the HasResponse edge's index entries should be gone")

	nodes, err := e.GetSessionNodes(ctx, session.ID)
	require.NoError(t, err)
	for _, n := range nodes {
		assert.NotEqual(t, promptID, n.NodeID())
	}
}

// TestAgentTransferUpdatesHandoffMetricsAndEmitsEvent covers the Agent
// handoff operations added in internal/engine/agent.go.
func TestAgentTransferUpdatesHandoffMetricsAndEmitsEvent(t *testing.T) {
	ctx := context.Background()
	pub := eventbus.NewInMemoryPublisher()
	e := openTestEngine(t, pub)

	from, err := e.CreateAgent(ctx, NewAgentInput{Name: "router"})
	require.NoError(t, err)
	to, err := e.CreateAgent(ctx, NewAgentInput{Name: "specialist"})
	require.NoError(t, err)

	require.NoError(t, e.TransferTo(ctx, from, to, "needs specialist", "angry customer", graph.PriorityHigh))

	fromAgent, err := e.GetAgent(ctx, from)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fromAgent.Metrics.HandoffsSent)

	toAgent, err := e.GetAgent(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, int64(1), toAgent.Metrics.HandoffsRecvd)

	found := false
	for _, evt := range pub.Events() {
		if evt.Type() == eventbus.TypeAgentHandoff {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSetAgentStatusAndRecordAgentTurn(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	id, err := e.CreateAgent(ctx, NewAgentInput{Name: "a"})
	require.NoError(t, err)

	require.NoError(t, e.SetAgentStatus(ctx, id, graph.AgentActive))
	require.NoError(t, e.RecordAgentTurn(ctx, id))
	require.NoError(t, e.RecordAgentTurn(ctx, id))

	a, err := e.GetAgent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, graph.AgentActive, a.Status)
	assert.Equal(t, int64(2), a.Metrics.TurnsHandled)
}

// TestMultiSinkFanoutDeliversToEveryPublisher covers spec.md §8's S6
// scenario: one mutation reaches both the internal stream and an external
// in-memory sink.
func TestMultiSinkFanoutDeliversToEveryPublisher(t *testing.T) {
	ctx := context.Background()
	pub := eventbus.NewInMemoryPublisher()
	e := openTestEngine(t, pub)

	sub, unsubscribe := e.Subscribe()
	defer unsubscribe()

	session, err := e.CreateSession(ctx, nil, nil)
	require.NoError(t, err)
	_, err = e.AddPrompt(ctx, session.ID, "hi", graph.PromptMetadata{})
	require.NoError(t, err)

	select {
	case evt := <-sub:
		assert.NotEmpty(t, evt.Type())
	default:
		t.Fatal("expected at least one event on the internal stream")
	}

	assert.NotEmpty(t, pub.Events(), "external publisher should also have received events")
}

func TestStatsReflectsWrittenNodesAndEdges(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	session, err := e.CreateSession(ctx, nil, nil)
	require.NoError(t, err)
	promptID, err := e.AddPrompt(ctx, session.ID, "p", graph.PromptMetadata{})
	require.NoError(t, err)
	_, err = e.AddResponse(ctx, promptID, "r", graph.NewTokenUsage(1, 1), graph.ResponseMetadata{})
	require.NoError(t, err)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.NodeCount) // session + prompt + response
	assert.Equal(t, 1, stats.EdgeCount) // the prompt's lone HasResponse edge
	assert.Equal(t, 1, stats.SessionCount)
	assert.Greater(t, stats.StorageBytes, int64(0))
}

func TestMetricsSnapshotTracksOperationCounts(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	session, err := e.CreateSession(ctx, nil, nil)
	require.NoError(t, err)
	promptID, err := e.AddPrompt(ctx, session.ID, "p", graph.PromptMetadata{})
	require.NoError(t, err)
	_, err = e.AddResponse(ctx, promptID, "r", graph.NewTokenUsage(1, 1), graph.ResponseMetadata{})
	require.NoError(t, err)

	snap := e.Metrics()
	assert.Equal(t, int64(1), snap.PromptsSubmitted)
	assert.Equal(t, int64(1), snap.ResponsesGenerated)
	assert.Greater(t, snap.NodesCreated, int64(0))
}

func TestOpenRejectsMismatchedSerializationFormatOnReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "store")

	cfg := config.Default()
	cfg.Path = dir
	e, err := Open(ctx, Options{Config: cfg})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	cfg2 := cfg
	cfg2.SerializationFormat = "json"
	_, err = Open(ctx, Options{Config: cfg2})
	require.Error(t, err)
	assert.True(t, xerrors.OfKind(err, xerrors.InvalidConfig))
}
