package content

import (
	"fmt"
	"strings"
)

// MergeMode selects how a required tag is folded into existing content.
type MergeMode string

const (
	// MergeSet gives the tag exactly the required value.
	MergeSet MergeMode = "set"
	// MergeInclude treats the tag value as a comma-separated list that must
	// contain the required member.
	MergeInclude MergeMode = "include"
)

// TagRequirement is a single tag a policy string must carry.
type TagRequirement struct {
	Tag   string    `json:"tag" yaml:"tag"`
	Value string    `json:"value" yaml:"value"`
	Mode  MergeMode `json:"mode,omitempty" yaml:"mode,omitempty"`
}

func (r TagRequirement) String() string {
	if r.Mode == MergeInclude {
		return fmt.Sprintf("%s includes %s", r.Tag, r.Value)
	}
	return fmt.Sprintf("%s=%s", r.Tag, r.Value)
}

// Tag is one segment of a tag list. Segments without "=" are kept verbatim
// with Bare set so foreign content survives a rewrite.
type Tag struct {
	Name  string
	Value string
	Bare  bool
}

// TagList is an ordered "tag=value; tag=value" policy string.
type TagList []Tag

// ParseTags splits canonical content into tags. Empty or malformed content
// yields an empty list.
func ParseTags(s string) TagList {
	var list TagList
	for _, segment := range strings.Split(Canonical(s), ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		name, value, ok := strings.Cut(segment, "=")
		if !ok {
			list = append(list, Tag{Name: segment, Bare: true})
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		list = append(list, Tag{Name: name, Value: strings.TrimSpace(value)})
	}
	return list
}

func (l TagList) index(name string) int {
	for i, tag := range l {
		if !tag.Bare && strings.EqualFold(tag.Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the value of the first occurrence of name.
func (l TagList) Get(name string) (string, bool) {
	if i := l.index(name); i >= 0 {
		return l[i].Value, true
	}
	return "", false
}

// Set gives name the value in place of its first occurrence, dropping any
// later duplicates, or appends it when the tag is absent. Other tags keep
// their order.
func (l TagList) Set(name, value string) TagList {
	out := make(TagList, 0, len(l)+1)
	found := false
	for _, tag := range l {
		if !tag.Bare && strings.EqualFold(tag.Name, name) {
			if found {
				continue
			}
			found = true
			tag.Value = value
		}
		out = append(out, tag)
	}
	if !found {
		out = append(out, Tag{Name: name, Value: value})
	}
	return out
}

// Include appends member to the comma-separated value of name unless it is
// already listed.
func (l TagList) Include(name, member string) TagList {
	current, ok := l.Get(name)
	if !ok || strings.TrimSpace(current) == "" {
		return l.Set(name, member)
	}
	members := splitMembers(current)
	for _, m := range members {
		if strings.EqualFold(m, member) {
			return l.Set(name, strings.Join(members, ","))
		}
	}
	return l.Set(name, strings.Join(append(members, member), ","))
}

// Satisfies reports whether the list already meets req.
func (l TagList) Satisfies(req TagRequirement) bool {
	current, ok := l.Get(req.Tag)
	if !ok {
		return false
	}
	if req.Mode == MergeInclude {
		for _, m := range splitMembers(current) {
			if strings.EqualFold(m, req.Value) {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(current, req.Value)
}

// Apply folds req into the list according to its mode.
func (l TagList) Apply(req TagRequirement) TagList {
	if req.Mode == MergeInclude {
		return l.Include(req.Tag, req.Value)
	}
	return l.Set(req.Tag, req.Value)
}

func (l TagList) String() string {
	parts := make([]string, 0, len(l))
	for _, tag := range l {
		if tag.Bare {
			parts = append(parts, tag.Name)
			continue
		}
		parts = append(parts, tag.Name+"="+tag.Value)
	}
	return strings.Join(parts, "; ")
}

// MergeTag rewrites existing content so it satisfies req while keeping
// every other tag as it was.
func MergeTag(existing string, req TagRequirement) string {
	return ParseTags(existing).Apply(req).String()
}

// HasTag reports whether existing content already satisfies req.
func HasTag(existing string, req TagRequirement) bool {
	return ParseTags(existing).Satisfies(req)
}

func splitMembers(value string) []string {
	var members []string
	for _, m := range strings.Split(value, ",") {
		if m = strings.TrimSpace(m); m != "" {
			members = append(members, m)
		}
	}
	return members
}
