package graph

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// Version is a semantic version triple. Bumping Major resets Minor and
// Patch to zero; bumping Minor resets Patch to zero (invariant 6).
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 per the usual ordering contract.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return cmpInt(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmpInt(v.Minor, other.Minor)
	default:
		return cmpInt(v.Patch, other.Patch)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// VersionLevel selects which component of a Version to bump.
type VersionLevel int

const (
	VersionPatch VersionLevel = iota
	VersionMinor
	VersionMajor
)

// Bump returns the next version after bumping at the given level, per
// invariant 6 (template version is monotonically non-decreasing; bumping
// major resets minor/patch, bumping minor resets patch).
func (v Version) Bump(level VersionLevel) Version {
	switch level {
	case VersionMajor:
		return Version{Major: v.Major + 1, Minor: 0, Patch: 0}
	case VersionMinor:
		return Version{Major: v.Major, Minor: v.Minor + 1, Patch: 0}
	default:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
}

// VariableSpec declares one template variable and how to validate bindings
// for it (spec.md §3, Template node).
type VariableSpec struct {
	Name        string
	Type        string // free-form hint: "string", "number", "bool", ...
	Required    bool
	Default     string
	Validation  string // optional regex; empty means "no constraint"
	Description string

	compiled *regexp.Regexp // lazily compiled, not serialized
}

// MaxInheritanceDepth bounds the Inherits DAG depth (spec.md §9): a child's
// inheritance_depth must satisfy parent_depth + 1 < MaxInheritanceDepth.
const MaxInheritanceDepth = 64

// Template is a parameterized prompt body with `{{var}}` placeholders.
type Template struct {
	ID               ids.TemplateID
	NodeID           ids.NodeID
	Name             string
	Body             string
	Variables        []VariableSpec
	Version          Version
	ParentID         *ids.TemplateID
	UsageCount       int64
	Description      string
	Author           string
	Tags             map[string]struct{}
	Metadata         map[string]string
	InheritanceDepth int
	CreatedAt        time.Time
}

func (t *Template) Type() NodeType     { return NodeTypeTemplate }
func (t *Template) Created() time.Time { return t.CreatedAt }

// templateNode adapts *Template to the Node interface. Template can't
// implement Node directly: its NodeID field collides with the NodeID()
// method name Go requires for interface satisfaction.
type templateNode struct{ *Template }

func (t templateNode) NodeID() ids.NodeID { return t.Template.NodeID }
func (t templateNode) Type() NodeType     { return NodeTypeTemplate }
func (t templateNode) Created() time.Time { return t.Template.CreatedAt }

// AsNode adapts a *Template to the Node interface. Template can't implement
// Node directly because its NodeID field collides with the NodeID() method
// name Go requires for interface satisfaction.
func (t *Template) AsNode() Node { return templateNode{t} }

// AsTemplate unwraps a Node produced by AsNode back to its underlying
// *Template, for callers (the serializer, cache) that need the concrete
// struct rather than the Node interface view.
func AsTemplate(n Node) (*Template, bool) {
	tn, ok := n.(templateNode)
	if !ok {
		return nil, false
	}
	return tn.Template, true
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Instantiate binds values into the template body, substituting `{{name}}`
// for each bound variable. It fails with InvalidArgument if a required
// variable is unbound or a bound value fails its validation regex
// (invariant 7, property 4).
func (t *Template) Instantiate(values map[string]string) (string, error) {
	bindings := make(map[string]string, len(t.Variables))

	for i := range t.Variables {
		v := &t.Variables[i]
		val, bound := values[v.Name]
		switch {
		case bound:
			if v.Validation != "" {
				re := v.compiled
				if re == nil {
					compiled, err := regexp.Compile(v.Validation)
					if err != nil {
						return "", xerrors.New(xerrors.InvalidArgument, "Template.Instantiate",
							fmt.Sprintf("variable %q has an invalid validation regex", v.Name))
					}
					re = compiled
					v.compiled = compiled
				}
				if !re.MatchString(val) {
					return "", xerrors.New(xerrors.InvalidArgument, "Template.Instantiate",
						fmt.Sprintf("variable %q value %q fails validation %q", v.Name, val, v.Validation))
				}
			}
			bindings[v.Name] = val
		case v.Required:
			return "", xerrors.New(xerrors.InvalidArgument, "Template.Instantiate",
				fmt.Sprintf("required variable %q is not bound", v.Name))
		default:
			bindings[v.Name] = v.Default
		}
	}

	// Reject bindings for variables the template doesn't declare.
	for name := range values {
		if _, known := bindings[name]; !known {
			if !t.hasVariable(name) {
				return "", xerrors.New(xerrors.InvalidArgument, "Template.Instantiate",
					fmt.Sprintf("unknown variable %q", name))
			}
		}
	}

	out := placeholderPattern.ReplaceAllStringFunc(t.Body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := bindings[name]; ok {
			return v
		}
		return match
	})
	return out, nil
}

func (t *Template) hasVariable(name string) bool {
	for _, v := range t.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

// BumpVersion advances the template's version in place, per invariant 6.
func (t *Template) BumpVersion(level VersionLevel) {
	t.Version = t.Version.Bump(level)
}

// IncrementUsage records one more instantiation of this template.
func (t *Template) IncrementUsage() {
	t.UsageCount++
}

// StripBraces is a small helper used by callers rendering a human-readable
// placeholder list (e.g. CLI help text); not load-bearing for Instantiate.
func StripBraces(placeholder string) string {
	return strings.TrimSuffix(strings.TrimPrefix(placeholder, "{{"), "}}")
}
