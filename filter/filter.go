// Package filter decides which frames of a thread stack are counted and at
// what depth.
//
// Depth is the distance in call-stack levels from a reference point. Without
// a filter, and with a package prefix filter, the reference point is the
// innermost frame of the stack and depth is the frame's original index, so
// dropping frames never changes the depth of the frames that remain. With a
// method anchor the reference point is the anchor frame itself: the anchor is
// depth 0, its caller depth 1, and so on outward.
package filter

import (
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strings"

	"jvmScope/collector"
)

// Kind selects the filtering policy.
type Kind int

const (
	None Kind = iota
	Package
	Method
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Package:
		return "package"
	case Method:
		return "method"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Spec describes which frames and threads are in scope.
type Spec struct {
	Kind   Kind
	Prefix string // Package filter: identifier prefix
	Anchor string // Method filter: fully-qualified method

	// Exclude drops matching frames without re-indexing the rest.
	Exclude *regexp.Regexp
	// ThreadStates restricts counting to threads in one of these states.
	// Empty means every state.
	ThreadStates []string
}

// NewSpec builds a Spec from the configured filters. The method filter takes
// precedence when both are set. Anchors written as "Class#method" are
// normalized to "Class.method".
func NewSpec(packageFilter, methodFilter string) Spec {
	if methodFilter = strings.TrimSpace(methodFilter); methodFilter != "" {
		return Spec{Kind: Method, Anchor: NormalizeMethod(methodFilter)}
	}
	if packageFilter != "" {
		return Spec{Kind: Package, Prefix: packageFilter}
	}
	return Spec{Kind: None}
}

// NormalizeMethod converts "com.example.Foo#bar" into "com.example.Foo.bar".
func NormalizeMethod(method string) string {
	if class, name, ok := strings.Cut(method, "#"); ok {
		return class + "." + name
	}
	return method
}

// WithExclude returns a copy of s that skips frames matching pattern.
func (s Spec) WithExclude(pattern string) (Spec, error) {
	if pattern == "" {
		s.Exclude = nil
		return s, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return s, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	s.Exclude = re
	return s, nil
}

// WithThreadStates returns a copy of s restricted to the given thread states.
func (s Spec) WithThreadStates(states ...string) Spec {
	s.ThreadStates = slices.Clone(states)
	return s
}

// String describes the filter for log output.
func (s Spec) String() string {
	switch s.Kind {
	case Package:
		return "package " + s.Prefix
	case Method:
		return "method " + s.Anchor
	default:
		return "none"
	}
}

// AcceptsState reports whether a thread in the given state is counted.
// Threads whose state is unknown are always counted.
func (s Spec) AcceptsState(state string) bool {
	if len(s.ThreadStates) == 0 || state == "" {
		return true
	}
	for _, want := range s.ThreadStates {
		if strings.EqualFold(want, state) {
			return true
		}
	}
	return false
}

// Frames yields the (frame, depth) pairs of stack that should be counted.
// The sequence is empty when nothing matches, for example when the anchor
// method does not appear in the stack.
func (s Spec) Frames(stack collector.ThreadStack) iter.Seq2[collector.StackFrame, int] {
	return func(yield func(collector.StackFrame, int) bool) {
		start := 0
		if s.Kind == Method {
			start = s.anchorIndex(stack.Frames)
			if start < 0 {
				return
			}
		}

		for i := start; i < len(stack.Frames); i++ {
			frame := stack.Frames[i]
			if s.Kind == Package && !strings.HasPrefix(frame.Method, s.Prefix) {
				continue
			}
			// The anchor itself is always counted.
			if s.Exclude != nil && !(s.Kind == Method && i == start) && s.Exclude.MatchString(frame.Method) {
				continue
			}
			if !yield(frame, i-start) {
				return
			}
		}
	}
}

// anchorIndex returns the innermost occurrence of the anchor, or -1.
func (s Spec) anchorIndex(frames []collector.StackFrame) int {
	return slices.IndexFunc(frames, func(f collector.StackFrame) bool {
		return f.Method == s.Anchor
	})
}
