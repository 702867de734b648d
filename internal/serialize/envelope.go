// Package serialize encodes/decodes graph.Node and graph.Edge values under
// three pluggable wire formats (spec.md §4.B, §6), mirroring
// original_source's storage/serialization.rs Serializer: JSON, MessagePack,
// and a compact binary format. Because graph.Node and graph.Edge are Go
// interfaces rather than a single serde-able enum, every value is first
// lifted into an envelope that carries an explicit type discriminator plus
// exactly one populated payload field, then handed to the chosen codec.
package serialize

import (
	"time"

	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
)

// nodeEnvelope carries one populated payload matching Type. Struct tags
// without ",array" drive the map-keyed JSON/MessagePack formats; the binary
// format encodes the same shape positionally through msgpack's
// UseArrayEncodedStructs mode (serialize.go).
type nodeEnvelope struct {
	Type     graph.NodeType    `json:"type" msgpack:"type"`
	Session  *sessionPayload   `json:"session,omitempty" msgpack:"session,omitempty"`
	Prompt   *promptPayload    `json:"prompt,omitempty" msgpack:"prompt,omitempty"`
	Response *responsePayload  `json:"response,omitempty" msgpack:"response,omitempty"`
	Tool     *toolPayload      `json:"tool,omitempty" msgpack:"tool,omitempty"`
	Template *templatePayload  `json:"template,omitempty" msgpack:"template,omitempty"`
	Agent    *agentPayload     `json:"agent,omitempty" msgpack:"agent,omitempty"`
}

type sessionPayload struct {
	ID        ids.SessionID     `json:"id" msgpack:"id"`
	CreatedAt time.Time         `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" msgpack:"updated_at"`
	Metadata  map[string]string `json:"metadata" msgpack:"metadata"`
	Tags      []string          `json:"tags" msgpack:"tags"`
}

type promptPayload struct {
	ID          ids.NodeID        `json:"id" msgpack:"id"`
	SessionID   ids.SessionID     `json:"session_id" msgpack:"session_id"`
	Content     string            `json:"content" msgpack:"content"`
	Model       string            `json:"model" msgpack:"model"`
	Temperature float64           `json:"temperature" msgpack:"temperature"`
	Extra       map[string]string `json:"extra" msgpack:"extra"`
	CreatedAt   time.Time         `json:"created_at" msgpack:"created_at"`
}

type responsePayload struct {
	ID               ids.NodeID        `json:"id" msgpack:"id"`
	PromptID         ids.NodeID        `json:"prompt_id" msgpack:"prompt_id"`
	Content          string            `json:"content" msgpack:"content"`
	PromptTokens     int               `json:"prompt_tokens" msgpack:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens" msgpack:"completion_tokens"`
	TotalTokens      int               `json:"total_tokens" msgpack:"total_tokens"`
	Model            string            `json:"model" msgpack:"model"`
	LatencyMS        int64             `json:"latency_ms" msgpack:"latency_ms"`
	StopReason       string            `json:"stop_reason" msgpack:"stop_reason"`
	Extra            map[string]string `json:"extra" msgpack:"extra"`
	CreatedAt        time.Time         `json:"created_at" msgpack:"created_at"`
}

type toolPayload struct {
	ID         ids.NodeID        `json:"id" msgpack:"id"`
	ResponseID ids.NodeID        `json:"response_id" msgpack:"response_id"`
	ToolName   string            `json:"tool_name" msgpack:"tool_name"`
	Parameters map[string]any    `json:"parameters" msgpack:"parameters"`
	Status     string            `json:"status" msgpack:"status"`
	Result     map[string]any    `json:"result" msgpack:"result"`
	Error      string            `json:"error" msgpack:"error"`
	DurationMS int64             `json:"duration_ms" msgpack:"duration_ms"`
	RetryCount int               `json:"retry_count" msgpack:"retry_count"`
	Metadata   map[string]string `json:"metadata" msgpack:"metadata"`
	CreatedAt  time.Time         `json:"created_at" msgpack:"created_at"`
}

type variableSpecPayload struct {
	Name        string `json:"name" msgpack:"name"`
	Type        string `json:"type" msgpack:"type"`
	Required    bool   `json:"required" msgpack:"required"`
	Default     string `json:"default" msgpack:"default"`
	Validation  string `json:"validation" msgpack:"validation"`
	Description string `json:"description" msgpack:"description"`
}

type templatePayload struct {
	ID               ids.TemplateID        `json:"id" msgpack:"id"`
	NodeID           ids.NodeID            `json:"node_id" msgpack:"node_id"`
	Name             string                `json:"name" msgpack:"name"`
	Body             string                `json:"body" msgpack:"body"`
	Variables        []variableSpecPayload `json:"variables" msgpack:"variables"`
	Major            int                   `json:"major" msgpack:"major"`
	Minor            int                   `json:"minor" msgpack:"minor"`
	Patch            int                   `json:"patch" msgpack:"patch"`
	ParentID         *ids.TemplateID       `json:"parent_id,omitempty" msgpack:"parent_id,omitempty"`
	UsageCount       int64                 `json:"usage_count" msgpack:"usage_count"`
	Description      string                `json:"description" msgpack:"description"`
	Author           string                `json:"author" msgpack:"author"`
	Tags             []string              `json:"tags" msgpack:"tags"`
	Metadata         map[string]string     `json:"metadata" msgpack:"metadata"`
	InheritanceDepth int                   `json:"inheritance_depth" msgpack:"inheritance_depth"`
	CreatedAt        time.Time             `json:"created_at" msgpack:"created_at"`
}

type agentPayload struct {
	ID            ids.AgentID       `json:"id" msgpack:"id"`
	NodeID        ids.NodeID        `json:"node_id" msgpack:"node_id"`
	Name          string            `json:"name" msgpack:"name"`
	Description   string            `json:"description" msgpack:"description"`
	Tools         []string          `json:"tools" msgpack:"tools"`
	Config        map[string]any    `json:"config" msgpack:"config"`
	TurnsHandled  int64             `json:"turns_handled" msgpack:"turns_handled"`
	HandoffsSent  int64             `json:"handoffs_sent" msgpack:"handoffs_sent"`
	HandoffsRecvd int64             `json:"handoffs_recvd" msgpack:"handoffs_recvd"`
	Status        string            `json:"status" msgpack:"status"`
	CreatedAt     time.Time         `json:"created_at" msgpack:"created_at"`
}

// edgeEnvelope mirrors nodeEnvelope for the seven EdgeProperties variants.
type edgeEnvelope struct {
	ID           ids.EdgeID              `json:"id" msgpack:"id"`
	From         ids.NodeID              `json:"from" msgpack:"from"`
	To           ids.NodeID              `json:"to" msgpack:"to"`
	Type         graph.EdgeType          `json:"type" msgpack:"type"`
	CreatedAt    time.Time               `json:"created_at" msgpack:"created_at"`
	Invokes      *invokesPayload         `json:"invokes,omitempty" msgpack:"invokes,omitempty"`
	Instantiates *instantiatesPayload    `json:"instantiates,omitempty" msgpack:"instantiates,omitempty"`
	Inherits     *inheritsPayload        `json:"inherits,omitempty" msgpack:"inherits,omitempty"`
	TransfersTo  *transfersToPayload     `json:"transfers_to,omitempty" msgpack:"transfers_to,omitempty"`
	References   *referencesPayload      `json:"references,omitempty" msgpack:"references,omitempty"`
}

type invokesPayload struct {
	InvocationOrder int  `json:"invocation_order" msgpack:"invocation_order"`
	Success         bool `json:"success" msgpack:"success"`
	Required        bool `json:"required" msgpack:"required"`
}

type instantiatesPayload struct {
	TemplateMajor     int               `json:"template_major" msgpack:"template_major"`
	TemplateMinor     int               `json:"template_minor" msgpack:"template_minor"`
	TemplatePatch     int               `json:"template_patch" msgpack:"template_patch"`
	VariableBindings  map[string]string `json:"variable_bindings" msgpack:"variable_bindings"`
	InstantiationTime time.Time         `json:"instantiation_time" msgpack:"instantiation_time"`
}

type inheritsPayload struct {
	OverrideSections []string `json:"override_sections" msgpack:"override_sections"`
	VersionDiff      string   `json:"version_diff" msgpack:"version_diff"`
	InheritanceDepth int      `json:"inheritance_depth" msgpack:"inheritance_depth"`
}

type transfersToPayload struct {
	HandoffReason  string `json:"handoff_reason" msgpack:"handoff_reason"`
	ContextSummary string `json:"context_summary" msgpack:"context_summary"`
	Priority       uint8  `json:"priority" msgpack:"priority"`
}

type referencesPayload struct {
	ContextType    uint8   `json:"context_type" msgpack:"context_type"`
	RelevanceScore float64 `json:"relevance_score" msgpack:"relevance_score"`
	ChunkID        string  `json:"chunk_id" msgpack:"chunk_id"`
}

func tagSet(tags map[string]struct{}) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	return out
}

func tagMap(tags []string) map[string]struct{} {
	if tags == nil {
		return nil
	}
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		out[t] = struct{}{}
	}
	return out
}

func toNodeEnvelope(n graph.Node) (*nodeEnvelope, error) {
	env := &nodeEnvelope{Type: n.Type()}

	// Template and Agent can't implement Node directly (their NodeID field
	// collides with the NodeID() method), so graph.AsNode() hands back an
	// unexported wrapper rather than the concrete struct itself; unwrap both
	// before the type switch below, which dispatches on the remaining
	// concrete node types.
	if v, ok := graph.AsTemplate(n); ok {
		vars := make([]variableSpecPayload, len(v.Variables))
		for i, vs := range v.Variables {
			vars[i] = variableSpecPayload{
				Name: vs.Name, Type: vs.Type, Required: vs.Required,
				Default: vs.Default, Validation: vs.Validation, Description: vs.Description,
			}
		}
		env.Template = &templatePayload{
			ID: v.ID, NodeID: v.NodeID, Name: v.Name, Body: v.Body, Variables: vars,
			Major: v.Version.Major, Minor: v.Version.Minor, Patch: v.Version.Patch,
			ParentID: v.ParentID, UsageCount: v.UsageCount, Description: v.Description,
			Author: v.Author, Tags: tagSet(v.Tags), Metadata: v.Metadata,
			InheritanceDepth: v.InheritanceDepth, CreatedAt: v.CreatedAt,
		}
		return env, nil
	}
	if v, ok := graph.AsAgent(n); ok {
		env.Agent = &agentPayload{
			ID: v.ID, NodeID: v.NodeID, Name: v.Name, Description: v.Description, Tools: v.Tools,
			Config: map[string]any(v.Config), TurnsHandled: v.Metrics.TurnsHandled,
			HandoffsSent: v.Metrics.HandoffsSent, HandoffsRecvd: v.Metrics.HandoffsRecvd,
			Status: string(v.Status), CreatedAt: v.CreatedAt,
		}
		return env, nil
	}

	switch v := n.(type) {
	case *graph.Session:
		env.Session = &sessionPayload{
			ID: v.ID, CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt,
			Metadata: v.Metadata, Tags: tagSet(v.Tags),
		}
	case *graph.Prompt:
		env.Prompt = &promptPayload{
			ID: v.ID, SessionID: v.SessionID, Content: v.Content,
			Model: v.Metadata.Model, Temperature: v.Metadata.Temperature,
			Extra: v.Metadata.Extra, CreatedAt: v.CreatedAt,
		}
	case *graph.Response:
		env.Response = &responsePayload{
			ID: v.ID, PromptID: v.PromptID, Content: v.Content,
			PromptTokens: v.Usage.PromptTokens, CompletionTokens: v.Usage.CompletionTokens,
			TotalTokens: v.Usage.TotalTokens, Model: v.Metadata.Model,
			LatencyMS: v.Metadata.LatencyMS, StopReason: v.Metadata.StopReason,
			Extra: v.Metadata.Extra, CreatedAt: v.CreatedAt,
		}
	case *graph.ToolInvocation:
		env.Tool = &toolPayload{
			ID: v.ID, ResponseID: v.ResponseID, ToolName: v.ToolName,
			Parameters: v.Parameters, Status: string(v.Status), Result: v.Result,
			Error: v.Error, DurationMS: v.DurationMS, RetryCount: v.RetryCount,
			Metadata: v.Metadata, CreatedAt: v.CreatedAt,
		}
	default:
		return nil, unsupportedNodeErr
	}
	return env, nil
}

func fromNodeEnvelope(env *nodeEnvelope) (graph.Node, error) {
	switch env.Type {
	case graph.NodeTypeSession:
		if env.Session == nil {
			return nil, missingPayloadErr
		}
		p := env.Session
		return &graph.Session{
			ID: p.ID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
			Metadata: p.Metadata, Tags: tagMap(p.Tags),
		}, nil
	case graph.NodeTypePrompt:
		if env.Prompt == nil {
			return nil, missingPayloadErr
		}
		p := env.Prompt
		return &graph.Prompt{
			ID: p.ID, SessionID: p.SessionID, Content: p.Content,
			Metadata: graph.PromptMetadata{Model: p.Model, Temperature: p.Temperature, Extra: p.Extra},
			CreatedAt: p.CreatedAt,
		}, nil
	case graph.NodeTypeResponse:
		if env.Response == nil {
			return nil, missingPayloadErr
		}
		p := env.Response
		return &graph.Response{
			ID: p.ID, PromptID: p.PromptID, Content: p.Content,
			Usage: graph.TokenUsage{
				PromptTokens: p.PromptTokens, CompletionTokens: p.CompletionTokens, TotalTokens: p.TotalTokens,
			},
			Metadata: graph.ResponseMetadata{
				Model: p.Model, LatencyMS: p.LatencyMS, StopReason: p.StopReason, Extra: p.Extra,
			},
			CreatedAt: p.CreatedAt,
		}, nil
	case graph.NodeTypeToolInvocation:
		if env.Tool == nil {
			return nil, missingPayloadErr
		}
		p := env.Tool
		return &graph.ToolInvocation{
			ID: p.ID, ResponseID: p.ResponseID, ToolName: p.ToolName, Parameters: p.Parameters,
			Status: graph.ToolStatus(p.Status), Result: p.Result, Error: p.Error,
			DurationMS: p.DurationMS, RetryCount: p.RetryCount, Metadata: p.Metadata, CreatedAt: p.CreatedAt,
		}, nil
	case graph.NodeTypeTemplate:
		if env.Template == nil {
			return nil, missingPayloadErr
		}
		p := env.Template
		vars := make([]graph.VariableSpec, len(p.Variables))
		for i, vs := range p.Variables {
			vars[i] = graph.VariableSpec{
				Name: vs.Name, Type: vs.Type, Required: vs.Required,
				Default: vs.Default, Validation: vs.Validation, Description: vs.Description,
			}
		}
		return (&graph.Template{
			ID: p.ID, NodeID: p.NodeID, Name: p.Name, Body: p.Body, Variables: vars,
			Version:          graph.Version{Major: p.Major, Minor: p.Minor, Patch: p.Patch},
			ParentID:         p.ParentID,
			UsageCount:       p.UsageCount,
			Description:      p.Description,
			Author:           p.Author,
			Tags:             tagMap(p.Tags),
			Metadata:         p.Metadata,
			InheritanceDepth: p.InheritanceDepth,
			CreatedAt:        p.CreatedAt,
		}).AsNode(), nil
	case graph.NodeTypeAgent:
		if env.Agent == nil {
			return nil, missingPayloadErr
		}
		p := env.Agent
		return (&graph.Agent{
			ID: p.ID, NodeID: p.NodeID, Name: p.Name, Description: p.Description, Tools: p.Tools,
			Config: graph.AgentConfig(p.Config),
			Metrics: graph.AgentMetrics{
				TurnsHandled: p.TurnsHandled, HandoffsSent: p.HandoffsSent, HandoffsRecvd: p.HandoffsRecvd,
			},
			Status:    graph.AgentStatus(p.Status),
			CreatedAt: p.CreatedAt,
		}).AsNode(), nil
	default:
		return nil, unsupportedNodeErr
	}
}

func toEdgeEnvelope(e graph.Edge) (*edgeEnvelope, error) {
	env := &edgeEnvelope{ID: e.ID, From: e.From, To: e.To, Type: e.Type, CreatedAt: e.CreatedAt}
	switch p := e.Properties.(type) {
	case graph.FollowsProperties, graph.HasResponseProperties:
		// no payload beyond the envelope fields
	case graph.InvokesProperties:
		env.Invokes = &invokesPayload{InvocationOrder: p.InvocationOrder, Success: p.Success, Required: p.Required}
	case graph.InstantiatesProperties:
		env.Instantiates = &instantiatesPayload{
			TemplateMajor: p.TemplateVersion.Major, TemplateMinor: p.TemplateVersion.Minor,
			TemplatePatch: p.TemplateVersion.Patch, VariableBindings: p.VariableBindings,
			InstantiationTime: p.InstantiationTime,
		}
	case graph.InheritsProperties:
		env.Inherits = &inheritsPayload{
			OverrideSections: p.OverrideSections, VersionDiff: p.VersionDiff, InheritanceDepth: p.InheritanceDepth,
		}
	case graph.TransfersToProperties:
		env.TransfersTo = &transfersToPayload{
			HandoffReason: p.HandoffReason, ContextSummary: p.ContextSummary, Priority: uint8(p.Priority),
		}
	case graph.ReferencesProperties:
		env.References = &referencesPayload{
			ContextType: uint8(p.ContextType), RelevanceScore: p.RelevanceScore, ChunkID: p.ChunkID,
		}
	default:
		return nil, unsupportedEdgeErr
	}
	return env, nil
}

func fromEdgeEnvelope(env *edgeEnvelope) (graph.Edge, error) {
	var props graph.EdgeProperties
	switch env.Type {
	case graph.EdgeFollows:
		props = graph.FollowsProperties{}
	case graph.EdgeHasResponse:
		props = graph.HasResponseProperties{}
	case graph.EdgeInvokes:
		if env.Invokes == nil {
			return graph.Edge{}, missingPayloadErr
		}
		props = graph.InvokesProperties{
			InvocationOrder: env.Invokes.InvocationOrder, Success: env.Invokes.Success, Required: env.Invokes.Required,
		}
	case graph.EdgeInstantiates:
		if env.Instantiates == nil {
			return graph.Edge{}, missingPayloadErr
		}
		p := env.Instantiates
		props = graph.InstantiatesProperties{
			TemplateVersion:   graph.Version{Major: p.TemplateMajor, Minor: p.TemplateMinor, Patch: p.TemplatePatch},
			VariableBindings:  p.VariableBindings,
			InstantiationTime: p.InstantiationTime,
		}
	case graph.EdgeInherits:
		if env.Inherits == nil {
			return graph.Edge{}, missingPayloadErr
		}
		p := env.Inherits
		props = graph.InheritsProperties{
			OverrideSections: p.OverrideSections, VersionDiff: p.VersionDiff, InheritanceDepth: p.InheritanceDepth,
		}
	case graph.EdgeTransfersTo:
		if env.TransfersTo == nil {
			return graph.Edge{}, missingPayloadErr
		}
		p := env.TransfersTo
		props = graph.TransfersToProperties{
			HandoffReason: p.HandoffReason, ContextSummary: p.ContextSummary, Priority: graph.Priority(p.Priority),
		}
	case graph.EdgeReferences:
		if env.References == nil {
			return graph.Edge{}, missingPayloadErr
		}
		p := env.References
		props = graph.ReferencesProperties{
			ContextType: graph.ContextType(p.ContextType), RelevanceScore: p.RelevanceScore, ChunkID: p.ChunkID,
		}
	default:
		return graph.Edge{}, unsupportedEdgeErr
	}
	return graph.NewEdge(env.ID, env.From, env.To, props, env.CreatedAt), nil
}
