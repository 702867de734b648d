package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

func TestVersionBumpResetsLowerComponents(t *testing.T) {
	v := Version{Major: 1, Minor: 2, Patch: 3}

	assert.Equal(t, Version{Major: 2, Minor: 0, Patch: 0}, v.Bump(VersionMajor))
	assert.Equal(t, Version{Major: 1, Minor: 3, Patch: 0}, v.Bump(VersionMinor))
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 4}, v.Bump(VersionPatch))
}

func TestVersionCompareIsMonotonic(t *testing.T) {
	base := Version{Major: 1, Minor: 2, Patch: 3}
	assert.Equal(t, 0, base.Compare(base))
	assert.Equal(t, -1, base.Compare(base.Bump(VersionPatch)))
	assert.Equal(t, 1, base.Bump(VersionPatch).Compare(base))
	assert.Equal(t, -1, base.Compare(base.Bump(VersionMinor)))
	assert.Equal(t, -1, base.Compare(base.Bump(VersionMajor)))
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "1.2.3", Version{1, 2, 3}.String())
}

func newTestTemplate() *Template {
	return &Template{
		ID:     ids.NewTemplateID(),
		NodeID: ids.NewNodeID(),
		Name:   "greeting",
		Body:   "Hello {{name}}, your ticket is {{ticket_id}}.",
		Variables: []VariableSpec{
			{Name: "name", Required: true},
			{Name: "ticket_id", Required: true, Validation: `^[A-Z]{2}-\d+$`},
		},
		Version:   Version{Major: 1},
		CreatedAt: time.Now().UTC(),
	}
}

func TestInstantiateSubstitutesBoundVariables(t *testing.T) {
	tpl := newTestTemplate()
	out, err := tpl.Instantiate(map[string]string{"name": "Ada", "ticket_id": "AB-123"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, your ticket is AB-123.", out)
}

func TestInstantiateAppliesDefaultForUnboundOptionalVariable(t *testing.T) {
	tpl := newTestTemplate()
	tpl.Variables = append(tpl.Variables, VariableSpec{Name: "greeting", Required: false, Default: "Hi"})
	tpl.Body = "{{greeting}} {{name}}"

	out, err := tpl.Instantiate(map[string]string{"name": "Grace", "ticket_id": "AB-1"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Grace", out)
}

func TestInstantiateRejectsMissingRequiredVariable(t *testing.T) {
	tpl := newTestTemplate()
	_, err := tpl.Instantiate(map[string]string{"name": "Ada"})
	require.Error(t, err)
	assert.True(t, xerrors.OfKind(err, xerrors.InvalidArgument))
}

func TestInstantiateRejectsValueFailingValidationRegex(t *testing.T) {
	tpl := newTestTemplate()
	_, err := tpl.Instantiate(map[string]string{"name": "Ada", "ticket_id": "not-valid"})
	require.Error(t, err)
	assert.True(t, xerrors.OfKind(err, xerrors.InvalidArgument))
}

func TestInstantiateRejectsUnknownVariable(t *testing.T) {
	tpl := newTestTemplate()
	_, err := tpl.Instantiate(map[string]string{"name": "Ada", "ticket_id": "AB-1", "bogus": "x"})
	require.Error(t, err)
	assert.True(t, xerrors.OfKind(err, xerrors.InvalidArgument))
}

func TestBumpVersionAndIncrementUsage(t *testing.T) {
	tpl := newTestTemplate()
	tpl.BumpVersion(VersionMinor)
	assert.Equal(t, Version{Major: 1, Minor: 1, Patch: 0}, tpl.Version)

	assert.Equal(t, int64(0), tpl.UsageCount)
	tpl.IncrementUsage()
	tpl.IncrementUsage()
	assert.Equal(t, int64(2), tpl.UsageCount)
}

func TestAsNodeAndAsTemplateRoundTrip(t *testing.T) {
	tpl := newTestTemplate()
	n := tpl.AsNode()
	assert.Equal(t, tpl.NodeID, n.NodeID())
	assert.Equal(t, NodeTypeTemplate, n.Type())

	back, ok := AsTemplate(n)
	require.True(t, ok)
	assert.Same(t, tpl, back)
}

func TestAsTemplateRejectsOtherNodeKinds(t *testing.T) {
	s := &Session{ID: ids.NewSessionID(), CreatedAt: time.Now().UTC()}
	_, ok := AsTemplate(s)
	assert.False(t, ok)
}
