package serialize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
)

var allFormats = []Format{FormatJSON, FormatMessagePack, FormatBinary}

func sampleNodes() map[string]graph.Node {
	now := time.Now().UTC().Truncate(time.Microsecond)
	sessionID := ids.NewSessionID()
	promptID := ids.NewNodeID()
	responseID := ids.NewNodeID()
	parentTplID := ids.NewTemplateID()

	tpl := &graph.Template{
		ID:     ids.NewTemplateID(),
		NodeID: ids.NewNodeID(),
		Name:   "greeting",
		Body:   "Hello {{name}}",
		Variables: []graph.VariableSpec{
			{Name: "name", Type: "string", Required: true, Validation: "^[A-Z].*"},
		},
		Version:          graph.Version{Major: 1, Minor: 2, Patch: 3},
		ParentID:         &parentTplID,
		UsageCount:       7,
		Description:      "a greeting template",
		Author:           "demo",
		Tags:             map[string]struct{}{"core": {}},
		Metadata:         map[string]string{"k": "v"},
		InheritanceDepth: 1,
		CreatedAt:        now,
	}

	return map[string]graph.Node{
		"session": &graph.Session{
			ID: sessionID, CreatedAt: now, UpdatedAt: now,
			Metadata: map[string]string{"source": "test"},
			Tags:     map[string]struct{}{"demo": {}},
		},
		"prompt": &graph.Prompt{
			ID: promptID, SessionID: sessionID, Content: "hi there",
			Metadata:  graph.PromptMetadata{Model: "demo-model", Temperature: 0.5, Extra: map[string]string{"x": "y"}},
			CreatedAt: now,
		},
		"response": &graph.Response{
			ID: responseID, PromptID: promptID, Content: "hello",
			Usage:     graph.NewTokenUsage(3, 4),
			Metadata:  graph.ResponseMetadata{Model: "demo-model", LatencyMS: 120, StopReason: "stop"},
			CreatedAt: now,
		},
		"tool": &graph.ToolInvocation{
			ID: ids.NewNodeID(), ResponseID: responseID, ToolName: "search",
			Parameters: map[string]any{"q": "go"}, Status: graph.ToolSuccess,
			Result: map[string]any{"n": float64(2)}, DurationMS: 42, RetryCount: 1,
			Metadata: map[string]string{"k": "v"}, CreatedAt: now,
		},
		"template": tpl.AsNode(),
		"agent": (&graph.Agent{
			ID: ids.NewAgentID(), NodeID: ids.NewNodeID(), Name: "router", Description: "routes turns",
			Tools: []string{"search"}, Config: graph.AgentConfig{"temp": 0.1},
			Metrics: graph.AgentMetrics{TurnsHandled: 3, HandoffsSent: 1, HandoffsRecvd: 2},
			Status: graph.AgentActive, CreatedAt: now,
		}).AsNode(),
	}
}

func sampleEdges() map[string]graph.Edge {
	now := time.Now().UTC().Truncate(time.Microsecond)
	from, to := ids.NewNodeID(), ids.NewNodeID()

	return map[string]graph.Edge{
		"follows":      graph.NewEdge(ids.NewEdgeID(), from, to, graph.FollowsProperties{}, now),
		"has_response": graph.NewEdge(ids.NewEdgeID(), from, to, graph.HasResponseProperties{}, now),
		"invokes": graph.NewEdge(ids.NewEdgeID(), from, to, graph.InvokesProperties{
			InvocationOrder: 2, Success: true, Required: true,
		}, now),
		"instantiates": graph.NewEdge(ids.NewEdgeID(), from, to, graph.InstantiatesProperties{
			TemplateVersion: graph.Version{Major: 1, Minor: 0, Patch: 0},
			VariableBindings: map[string]string{"name": "Ada"},
			InstantiationTime: now,
		}, now),
		"inherits": graph.NewEdge(ids.NewEdgeID(), from, to, graph.InheritsProperties{
			OverrideSections: []string{"body"}, VersionDiff: "minor", InheritanceDepth: 2,
		}, now),
		"transfers_to": graph.NewEdge(ids.NewEdgeID(), from, to, graph.TransfersToProperties{
			HandoffReason: "escalation", ContextSummary: "angry customer", Priority: graph.PriorityHigh,
		}, now),
		"references": graph.NewEdge(ids.NewEdgeID(), from, to, graph.ReferencesProperties{
			ContextType: graph.ContextVectorSearch, RelevanceScore: 0.87, ChunkID: "chunk-1",
		}, now),
	}
}

func TestSerializeNodeRoundTripsUnderEveryFormat(t *testing.T) {
	nodes := sampleNodes()
	for _, format := range allFormats {
		format := format
		for name, n := range nodes {
			name, n := name, n
			t.Run(format.String()+"/"+name, func(t *testing.T) {
				s := New(format)
				data, err := s.SerializeNode(n)
				require.NoError(t, err)

				got, err := s.DeserializeNode(data)
				require.NoError(t, err)

				assert.Equal(t, n.NodeID(), got.NodeID())
				assert.Equal(t, n.Type(), got.Type())
				assert.True(t, n.Created().Equal(got.Created()))
			})
		}
	}
}

func TestSerializeEdgeRoundTripsUnderEveryFormat(t *testing.T) {
	edges := sampleEdges()
	for _, format := range allFormats {
		format := format
		for name, e := range edges {
			name, e := name, e
			t.Run(format.String()+"/"+name, func(t *testing.T) {
				s := New(format)
				data, err := s.SerializeEdge(e)
				require.NoError(t, err)

				got, err := s.DeserializeEdge(data)
				require.NoError(t, err)

				assert.Equal(t, e.ID, got.ID)
				assert.Equal(t, e.From, got.From)
				assert.Equal(t, e.To, got.To)
				assert.Equal(t, e.Type, got.Type)
				assert.Equal(t, e.Properties, got.Properties)
			})
		}
	}
}

func TestTemplateRoundTripPreservesFields(t *testing.T) {
	tpl := sampleNodes()["template"]
	for _, format := range allFormats {
		s := New(format)
		data, err := s.SerializeNode(tpl)
		require.NoError(t, err)
		got, err := s.DeserializeNode(data)
		require.NoError(t, err)

		back, ok := graph.AsTemplate(got)
		require.True(t, ok)
		orig, _ := graph.AsTemplate(tpl)
		assert.Equal(t, orig.Name, back.Name)
		assert.Equal(t, orig.Version, back.Version)
		assert.Equal(t, orig.UsageCount, back.UsageCount)
		assert.Equal(t, orig.ParentID, back.ParentID)
		assert.Equal(t, orig.Variables, back.Variables)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, f := range allFormats {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}

func TestParseFormatRejectsUnknown(t *testing.T) {
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestDeserializeNodeRejectsMismatchedPayload(t *testing.T) {
	s := New(FormatJSON)
	data := []byte(`{"type":2}`) // type prompt, no "prompt" payload
	_, err := s.DeserializeNode(data)
	assert.Error(t, err)
}
