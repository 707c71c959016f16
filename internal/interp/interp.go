// Package interp resolves ${...} references inside configuration values.
//
// A value is parsed as an HCL template and its parts are resolved one by
// one: literal text is copied, and every interpolation must name a single
// property. A dotted name such as ${env.HOME} looks up "env.HOME"; a name
// HCL would read as an expression, such as ${a/b}, is looked up by its raw
// text. Anything else is malformed. "$${" yields a literal "${"; "%{" is
// always literal. Every reference must resolve.
package interp

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/props"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Interpolator resolves references against a property source.
type Interpolator struct {
	src props.Source
}

// New creates an Interpolator over src. A nil src resolves nothing.
func New(src props.Source) *Interpolator {
	if src == nil {
		src = props.Map{}
	}
	return &Interpolator{src: src}
}

// Interpolate returns raw with every reference replaced by its value.
func (in *Interpolator) Interpolate(raw string) (string, error) {
	if !strings.Contains(raw, "${") {
		return raw, nil
	}

	// Only ${ } is interpolation syntax here; template directives stay text.
	src := []byte(strings.ReplaceAll(raw, "%{", "%%{"))

	expr, diags := hclsyntax.ParseTemplate(src, "value", hcl.InitialPos)
	if diags.HasErrors() {
		return "", conferr.Wrap(conferr.KindInterpolation, diags, "malformed reference in %q", raw)
	}

	var parts []hclsyntax.Expression
	switch e := expr.(type) {
	case *hclsyntax.TemplateWrapExpr:
		parts = []hclsyntax.Expression{e.Wrapped}
	case *hclsyntax.TemplateExpr:
		parts = e.Parts
	default:
		parts = []hclsyntax.Expression{expr}
	}

	var b strings.Builder
	for _, part := range parts {
		if lit, ok := part.(*hclsyntax.LiteralValueExpr); ok && lit.Val.Type() == cty.String {
			b.WriteString(lit.Val.AsString())
			continue
		}
		value, err := in.resolve(src, part, raw)
		if err != nil {
			return "", err
		}
		b.WriteString(value)
	}
	return b.String(), nil
}

// resolve looks up the property named by one interpolation part.
func (in *Interpolator) resolve(src []byte, part hclsyntax.Expression, raw string) (string, error) {
	if st, ok := part.(*hclsyntax.ScopeTraversalExpr); ok {
		path, err := traversalPath(st.Traversal)
		if err != nil {
			return "", conferr.Wrap(conferr.KindInterpolation, err, "unsupported reference in %q", raw)
		}
		key := strings.Join(path, ".")
		value, ok := in.src.Lookup(key)
		if !ok {
			return "", conferr.New(conferr.KindInterpolation, "unresolved reference ${%s} in %q", key, raw)
		}
		return value, nil
	}

	r := part.Range()
	name := strings.TrimSpace(string(src[r.Start.Byte:r.End.Byte]))
	if value, ok := in.src.Lookup(name); ok {
		return value, nil
	}
	return "", conferr.New(conferr.KindInterpolation, "malformed reference ${%s} in %q: only property names can be referenced", name, raw)
}

// traversalPath flattens a traversal such as env.HOME or a["b.c"] into its
// key segments.
func traversalPath(t hcl.Traversal) ([]string, error) {
	path := []string{t.RootName()}
	for _, step := range t[1:] {
		switch s := step.(type) {
		case hcl.TraverseAttr:
			path = append(path, s.Name)
		case hcl.TraverseIndex:
			k, err := convert.Convert(s.Key, cty.String)
			if err != nil || k.IsNull() || !k.IsKnown() {
				return nil, fmt.Errorf("index key must be a string or number")
			}
			path = append(path, k.AsString())
		default:
			return nil, fmt.Errorf("unsupported traversal step %T", step)
		}
	}
	return path, nil
}
