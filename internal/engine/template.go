package engine

import (
	"context"
	"time"

	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// NewTemplateInput carries the caller-supplied fields for CreateTemplate
// and CreateTemplateFromParent; id, version, usage_count, node_id, and
// created_at are all assigned by the engine.
type NewTemplateInput struct {
	Name        string
	Body        string
	Variables   []graph.VariableSpec
	Description string
	Author      string
	Tags        map[string]struct{}
	Metadata    map[string]string
}

// CreateTemplate creates a root template (no parent, depth zero, version
// 0.0.0), per spec.md §4.E.
func (e *Engine) CreateTemplate(ctx context.Context, in NewTemplateInput) (ids.NodeID, error) {
	return e.createTemplate(ctx, in, nil, 0, nil)
}

// CreateTemplateFromParent creates a child template inheriting from
// parentNode, recording an Inherits edge and the child's inheritance_depth
// as parent.InheritanceDepth + 1. Fails InvalidArgument if parentNode
// doesn't exist, isn't a template, or the new depth would reach
// graph.MaxInheritanceDepth (spec.md §9).
func (e *Engine) CreateTemplateFromParent(ctx context.Context, in NewTemplateInput, parentNode ids.NodeID, overrideSections []string, versionDiff string) (ids.NodeID, error) {
	parentNodeVal, err := e.getNode(ctx, parentNode)
	if err != nil {
		return ids.NodeID{}, err
	}
	parent, ok := graph.AsTemplate(parentNodeVal)
	if !ok {
		return ids.NodeID{}, xerrors.New(xerrors.InvalidArgument, "engine.CreateTemplateFromParent", "parent node is not a template")
	}
	childDepth := parent.InheritanceDepth + 1
	if childDepth >= graph.MaxInheritanceDepth {
		return ids.NodeID{}, xerrors.New(xerrors.InvalidArgument, "engine.CreateTemplateFromParent", "inheritance depth would exceed the maximum")
	}

	parentTemplateID := parent.ID
	return e.createTemplate(ctx, in, &parentTemplateID, childDepth, &inheritEdgeInput{
		parentNode:       parentNode,
		overrideSections: overrideSections,
		versionDiff:      versionDiff,
		depth:            childDepth,
	})
}

type inheritEdgeInput struct {
	parentNode       ids.NodeID
	overrideSections []string
	versionDiff      string
	depth            int
}

func (e *Engine) createTemplate(ctx context.Context, in NewTemplateInput, parentID *ids.TemplateID, depth int, inherit *inheritEdgeInput) (ids.NodeID, error) {
	if in.Name == "" {
		return ids.NodeID{}, xerrors.New(xerrors.InvalidArgument, "engine.createTemplate", "name must not be empty")
	}

	now := time.Now().UTC()
	t := &graph.Template{
		ID:               ids.NewTemplateID(),
		NodeID:           ids.NewNodeID(),
		Name:             in.Name,
		Body:             in.Body,
		Variables:        in.Variables,
		Version:          graph.Version{},
		ParentID:         parentID,
		Description:      in.Description,
		Author:           in.Author,
		Tags:             in.Tags,
		Metadata:         in.Metadata,
		InheritanceDepth: depth,
		CreatedAt:        now,
	}

	if err := e.createNode(ctx, t.AsNode(), ids.SessionID{}, false); err != nil {
		return ids.NodeID{}, err
	}
	if err := e.store.Put(ctx, templateLookupKey(t.NodeID), t.ID.Bytes()); err != nil {
		return ids.NodeID{}, xerrors.Wrap(xerrors.Storage, "engine.createTemplate", "write template lookup index", err)
	}

	if inherit != nil {
		edge := graph.NewEdge(ids.NewEdgeID(), t.NodeID, inherit.parentNode, graph.InheritsProperties{
			OverrideSections: inherit.overrideSections,
			VersionDiff:      inherit.versionDiff,
			InheritanceDepth: inherit.depth,
		}, now)
		if err := e.createEdge(ctx, edge); err != nil {
			return ids.NodeID{}, err
		}
	}

	return t.NodeID, nil
}

// GetTemplate fetches a template by its node id.
func (e *Engine) GetTemplate(ctx context.Context, nodeID ids.NodeID) (*graph.Template, error) {
	n, err := e.getNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	t, ok := graph.AsTemplate(n)
	if !ok {
		return nil, wrapNotFound("engine.GetTemplate", "template")
	}
	return t, nil
}

// LinkPromptToTemplate records that prompt was rendered from template,
// creating an Instantiates edge and bumping the template's usage_count
// (spec.md §4.E).
func (e *Engine) LinkPromptToTemplate(ctx context.Context, promptID, templateNodeID ids.NodeID, bindings map[string]string) error {
	promptNode, err := e.getNode(ctx, promptID)
	if err != nil {
		return err
	}
	if _, ok := promptNode.(*graph.Prompt); !ok {
		return xerrors.New(xerrors.InvalidArgument, "engine.LinkPromptToTemplate", "referenced node is not a prompt")
	}

	t, err := e.GetTemplate(ctx, templateNodeID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	edge := graph.NewEdge(ids.NewEdgeID(), promptID, templateNodeID, graph.InstantiatesProperties{
		TemplateVersion:   t.Version,
		VariableBindings:  bindings,
		InstantiationTime: now,
	}, now)
	if err := e.createEdge(ctx, edge); err != nil {
		return err
	}

	t.IncrementUsage()
	if err := e.writeNodePrimary(ctx, t.AsNode()); err != nil {
		return err
	}

	e.emit(ctx, eventbus.NewTemplateInstantiated(t.ID, promptID, t.Version, now))
	return nil
}
