// Package language holds the toolchain profiles the execution engine knows.
//
// A Profile is pure data: how to check that a toolchain exists, how to
// compile a staged source file (optional) and how to run the result. Adding a
// language is a new table entry in Default, never a new code path.
//
// Command templates are argument vectors evaluated inside the workspace
// directory. Two tokens are expanded per execution:
//
//	{source}  the staged source file name, e.g. "main.py" or "Hello.java"
//	{name}    the source file name without extension, e.g. "main" or "Hello"
package language

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// ErrNotSupported is matched (via errors.Is) by every *NotSupportedError.
var ErrNotSupported = errors.New("language not supported")

// NotSupportedError is returned by Resolve for an unknown language id.
type NotSupportedError struct {
	Language string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("Unsupported language: %s", e.Language)
}

func (e *NotSupportedError) Is(target error) bool {
	return target == ErrNotSupported
}

// Profile describes how to build and run one language.
type Profile struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Extension string   `json:"extension" yaml:"extension"`
	Probe     []string `json:"probe,omitempty" yaml:"probe,omitempty"`
	Compile   []string `json:"compile,omitempty" yaml:"compile,omitempty"`
	Run       []string `json:"run" yaml:"run"`

	// RequiresClassName marks toolchains that derive the program's identity
	// from the file name (Java). The source file is then named after the
	// caller's declared filename when it is a valid identifier.
	RequiresClassName bool `json:"requiresClassName,omitempty" yaml:"requires_class_name,omitempty"`

	// DefaultName is the base file name used when no usable name is declared.
	DefaultName string `json:"-" yaml:"default_name,omitempty"`

	// Image is the container image used by the docker backend.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

// Compiled reports whether the profile has a compile phase.
func (p Profile) Compiled() bool {
	return len(p.Compile) > 0
}

// SourceName returns the file name the source must be staged under.
// declared is the caller-supplied filename, possibly empty or hostile; only
// its base name is ever considered.
func (p Profile) SourceName(declared string) string {
	base := p.DefaultName
	if base == "" {
		base = "main"
	}
	if p.RequiresClassName {
		if name := entryName(declared); identifierPattern.MatchString(name) {
			base = name
		}
	}
	return base + p.Extension
}

// Expand substitutes the template tokens in argv for the given source name.
// It returns a fresh slice; the profile itself is never modified.
func Expand(argv []string, source string) []string {
	if len(argv) == 0 {
		return nil
	}
	name := strings.TrimSuffix(source, extOf(source))
	r := strings.NewReplacer("{source}", source, "{name}", name)

	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = r.Replace(a)
	}
	return out
}

// identifierPattern accepts names a JVM class can have.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// entryName strips any directory part and the extension from a declared
// filename. Both separators are handled since the value comes from clients.
func entryName(declared string) string {
	declared = strings.TrimSpace(declared)
	if i := strings.LastIndexAny(declared, `/\`); i >= 0 {
		declared = declared[i+1:]
	}
	if i := strings.IndexByte(declared, '.'); i >= 0 {
		declared = declared[:i]
	}
	return declared
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// Registry is an immutable lookup table of profiles. It is safe for
// concurrent use once constructed.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry builds a registry from profiles. Ids are matched
// case-insensitively, so two ids differing only in case are a conflict.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		key := normalize(p.ID)
		switch {
		case key == "":
			return nil, errors.New("language: profile id is required")
		case len(p.Run) == 0:
			return nil, fmt.Errorf("language: profile %q has no run command", p.ID)
		case !strings.HasPrefix(p.Extension, "."):
			return nil, fmt.Errorf("language: profile %q extension must start with '.'", p.ID)
		}
		if _, dup := r.profiles[key]; dup {
			return nil, fmt.Errorf("language: duplicate profile %q", p.ID)
		}
		p.ID = key
		r.profiles[key] = p.clone()
	}
	return r, nil
}

// Resolve looks up a profile by id. Unknown ids yield *NotSupportedError.
func (r *Registry) Resolve(id string) (Profile, error) {
	p, ok := r.profiles[normalize(id)]
	if !ok {
		return Profile{}, &NotSupportedError{Language: id}
	}
	return p.clone(), nil
}

// Profiles returns every profile sorted by id.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// clone copies the command slices so callers cannot write into the table.
func (p Profile) clone() Profile {
	p.Probe = slices.Clone(p.Probe)
	p.Compile = slices.Clone(p.Compile)
	p.Run = slices.Clone(p.Run)
	return p
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
