package ntypes

import (
	"go/ast"
	"strconv"
	"strings"
)

const directivePrefix = "//di:"

type directive struct {
	name string
	args []string
}

// directives returns the "//di:name args..." lines of a doc comment.
func directives(doc *ast.CommentGroup) []directive {
	if doc == nil {
		return nil
	}
	var out []directive
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, directivePrefix) {
			continue
		}
		fields := splitDirective(strings.TrimPrefix(c.Text, directivePrefix))
		if len(fields) == 0 {
			continue
		}
		out = append(out, directive{name: fields[0], args: fields[1:]})
	}
	return out
}

// splitDirective splits on spaces except inside double quotes.
func splitDirective(s string) []string {
	var out []string
	var cur strings.Builder
	quoted := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			quoted = !quoted
			cur.WriteByte(c)
		case c == '\\' && quoted && i+1 < len(s):
			cur.WriteByte(c)
			i++
			cur.WriteByte(s[i])
		case (c == ' ' || c == '\t') && !quoted:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func keyValue(arg string) (string, string, bool) {
	k, v, ok := strings.Cut(arg, "=")
	if !ok {
		return arg, "", false
	}
	if uq, err := strconv.Unquote(v); err == nil {
		v = uq
	}
	return k, v, true
}

// bindDirective parses "//di:bind [tag=T] [lifetime=L] [owner=Type]".
func bindDirective(doc *ast.CommentGroup) *BindInfo {
	for _, d := range directives(doc) {
		if d.name != "bind" {
			continue
		}
		b := &BindInfo{}
		for _, a := range d.args {
			k, v, ok := keyValue(a)
			if !ok {
				continue
			}
			switch k {
			case "tag":
				b.Tag, b.HasTag = v, true
			case "lifetime":
				b.Lifetime = v
			case "owner":
				b.Owner = v
			}
		}
		return b
	}
	return nil
}

// tagDirectives parses "//di:tag param=value ..." into a map keyed by
// parameter name.
func tagDirectives(doc *ast.CommentGroup) map[string]string {
	tags := make(map[string]string)
	for _, d := range directives(doc) {
		if d.name != "tag" {
			continue
		}
		for _, a := range d.args {
			if k, v, ok := keyValue(a); ok {
				tags[k] = v
			}
		}
	}
	return tags
}
