package ncompose

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/muir/ncompose/ntypes"
)

type TagKind uint8

const (
	TagNone TagKind = iota
	// TagLiteral holds the Go source text of a basic literal: "External", 7
	TagLiteral
	// TagType is di.TagOf[T]()
	TagType
	// TagEnum is a named constant, recorded by its qualified name
	TagEnum
	// TagContext means "the tag of the consumer"
	TagContext
	// TagUnique is a unique tag generated for each occurrence of di.UniqueTag
	TagUnique
	// TagImplementation is di.TypeTag, replaced by a TagType of the
	// implementation type once the binding is complete
	TagImplementation
)

var tagKindNames = [...]string{
	TagNone:           "none",
	TagLiteral:        "literal",
	TagType:           "type",
	TagEnum:           "enum",
	TagContext:        "context",
	TagUnique:         "unique",
	TagImplementation: "implementation",
}

func (k TagKind) String() string {
	if int(k) < len(tagKindNames) {
		return tagKindNames[k]
	}
	return "tag(" + strconv.Itoa(int(k)) + ")"
}

// Tag distinguishes bindings of the same contract type.  The zero Tag is
// "no tag".
type Tag struct {
	Kind  TagKind
	Value string
	Type  *ntypes.Type
	// Position is the index of the tag among the arguments it came from.
	Position int
}

var NoTag = Tag{}

// StringTag is a literal tag holding a string.
func StringTag(s string) Tag {
	return Tag{Kind: TagLiteral, Value: strconv.Quote(s)}
}

func TypeTag(t *ntypes.Type) Tag {
	return Tag{Kind: TagType, Type: t}
}

// UniqueTag returns a tag that is equal to no other tag.
func UniqueTag() Tag {
	return Tag{Kind: TagUnique, Value: uuid.NewString()}
}

var ContextTag = Tag{Kind: TagContext}

func (t Tag) IsNone() bool { return t.Kind == TagNone }

// Key is the identity of the tag.  Position does not participate.
func (t Tag) Key() string {
	switch t.Kind {
	case TagNone:
		return ""
	case TagType, TagImplementation:
		if t.Type == nil {
			return t.Kind.String() + ":"
		}
		return t.Kind.String() + ":" + t.Type.Canonical()
	case TagContext:
		return "context"
	default:
		return t.Kind.String() + ":" + t.Value
	}
}

func (t Tag) Equal(o Tag) bool { return t.Key() == o.Key() }

func (t Tag) String() string {
	switch t.Kind {
	case TagNone:
		return "nil"
	case TagType:
		return "di.TagOf[" + t.Type.String() + "]()"
	case TagImplementation:
		return "di.TypeTag"
	case TagContext:
		return "di.ContextTag"
	case TagUnique:
		return "di.UniqueTag(" + t.Value + ")"
	default:
		return t.Value
	}
}

// tagSet returns the tags with "no tag" standing in for an empty set.
func tagSet(tags []Tag) []Tag {
	if len(tags) == 0 {
		return []Tag{NoTag}
	}
	return tags
}

func hasTag(tags []Tag, t Tag) bool {
	for _, x := range tagSet(tags) {
		if x.Equal(t) {
			return true
		}
	}
	return false
}
