package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jvmScope/collector"
)

type emitted struct {
	Method string
	Depth  int
}

func collect(s Spec, stack collector.ThreadStack) []emitted {
	var out []emitted
	for frame, depth := range s.Frames(stack) {
		out = append(out, emitted{frame.Method, depth})
	}
	return out
}

func stackOf(methods ...string) collector.ThreadStack {
	stack := collector.ThreadStack{Name: "worker", State: "RUNNABLE"}
	for _, m := range methods {
		stack.Frames = append(stack.Frames, collector.StackFrame{Method: m})
	}
	return stack
}

func TestNewSpec(t *testing.T) {
	assert.Equal(t, Spec{Kind: None}, NewSpec("", ""))
	assert.Equal(t, Spec{Kind: Package, Prefix: "com.example"}, NewSpec("com.example", ""))
	assert.Equal(t, Spec{Kind: Method, Anchor: "com.example.Svc.run"}, NewSpec("", "com.example.Svc.run"))
	assert.Equal(t, Spec{Kind: Method, Anchor: "com.example.Svc.run"}, NewSpec("", "com.example.Svc#run"))

	// Method filter wins when both are configured.
	assert.Equal(t, Spec{Kind: Method, Anchor: "a.B.c"}, NewSpec("com.example", "a.B#c"))
}

func TestFrames_NoFilter(t *testing.T) {
	got := collect(NewSpec("", ""), stackOf("A", "B", "C"))
	assert.Equal(t, []emitted{{"A", 0}, {"B", 1}, {"C", 2}}, got)
}

func TestFrames_PackagePrefixPreservesDepth(t *testing.T) {
	stack := stackOf(
		"java.util.HashMap.get",
		"com.example.Cache.lookup",
		"org.springframework.Proxy.invoke",
		"com.example.Controller.handle",
		"java.lang.Thread.run",
	)

	unfiltered := map[string]int{}
	for _, e := range collect(NewSpec("", ""), stack) {
		unfiltered[e.Method] = e.Depth
	}

	got := collect(NewSpec("com.example", ""), stack)
	assert.Equal(t, []emitted{
		{"com.example.Cache.lookup", 1},
		{"com.example.Controller.handle", 3},
	}, got)
	for _, e := range got {
		assert.Equal(t, unfiltered[e.Method], e.Depth, "depth of %s changed by filtering", e.Method)
	}
}

func TestFrames_PackagePrefixIsExact(t *testing.T) {
	got := collect(NewSpec("com.example.*", ""), stackOf("com.example.A.b"))
	assert.Empty(t, got)
}

func TestFrames_MethodAnchor(t *testing.T) {
	got := collect(NewSpec("", "C"), stackOf("A", "B", "C", "D"))
	assert.Equal(t, []emitted{{"C", 0}, {"D", 1}}, got)
}

func TestFrames_MethodAnchorAbsent(t *testing.T) {
	got := collect(NewSpec("", "com.example.Missing.run"), stackOf("A", "B"))
	assert.Empty(t, got)
}

func TestFrames_MethodAnchorRecursion(t *testing.T) {
	// The innermost occurrence anchors; the outer one is an ordinary ancestor.
	got := collect(NewSpec("", "R"), stackOf("leaf", "R", "mid", "R", "main"))
	assert.Equal(t, []emitted{{"R", 0}, {"mid", 1}, {"R", 2}, {"main", 3}}, got)
}

func TestFrames_Exclude(t *testing.T) {
	spec, err := NewSpec("", "").WithExclude(`\$\$Lambda|^jdk\.internal\.`)
	require.NoError(t, err)

	got := collect(spec, stackOf("A", "jdk.internal.reflect.Invoke", "B$$Lambda/0x1.run", "C"))
	assert.Equal(t, []emitted{{"A", 0}, {"C", 3}}, got)
}

func TestFrames_ExcludeKeepsAnchor(t *testing.T) {
	spec, err := NewSpec("", "x.Worker.run").WithExclude(`^x\.`)
	require.NoError(t, err)

	got := collect(spec, stackOf("x.Inner.f", "x.Worker.run", "x.Pool.loop", "y.Main.main"))
	assert.Equal(t, []emitted{{"x.Worker.run", 0}, {"y.Main.main", 2}}, got)
}

func TestWithExclude_Invalid(t *testing.T) {
	_, err := NewSpec("", "").WithExclude("(")
	assert.Error(t, err)
}

func TestFrames_EarlyBreak(t *testing.T) {
	n := 0
	for range NewSpec("", "").Frames(stackOf("A", "B", "C")) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestAcceptsState(t *testing.T) {
	all := NewSpec("", "")
	assert.True(t, all.AcceptsState("WAITING"))

	runnable := all.WithThreadStates("RUNNABLE")
	assert.True(t, runnable.AcceptsState("RUNNABLE"))
	assert.True(t, runnable.AcceptsState("runnable"))
	assert.False(t, runnable.AcceptsState("TIMED_WAITING"))
	assert.True(t, runnable.AcceptsState(""), "unknown state is always counted")
}

func TestSpecString(t *testing.T) {
	assert.Equal(t, "none", NewSpec("", "").String())
	assert.Equal(t, "package com.example", NewSpec("com.example", "").String())
	assert.Equal(t, "method a.B.c", NewSpec("", "a.B#c").String())
	assert.Equal(t, "method", Method.String())
}
