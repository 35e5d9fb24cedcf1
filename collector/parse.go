package collector

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedDump is wrapped by every Parse failure. A malformed dump only
// costs the sample it belongs to.
var ErrMalformedDump = errors.New("malformed thread dump")

var (
	// "com.example.Foo.bar(Foo.java:42)", optionally prefixed with "at ".
	frameRegex = regexp.MustCompile(`^(?:at\s+)?([^\s(]+)(?:\((.*)\))?$`)
	// `"worker-1" #12 daemon prio=5 ...`
	threadHeaderRegex = regexp.MustCompile(`^"(.*)"`)
	// "   java.lang.Thread.State: RUNNABLE"
	threadStateRegex = regexp.MustCompile(`^java\.lang\.Thread\.State:\s*([A-Z_]+)`)
)

// Spring Boot Actuator thread dump document.
type dumpDocument struct {
	Threads *[]threadEntry `json:"threads"`
}

type threadEntry struct {
	ThreadName  string            `json:"threadName"`
	ThreadState string            `json:"threadState"`
	StackTrace  []json.RawMessage `json:"stackTrace"`
}

type frameEntry struct {
	ClassName    string `json:"className"`
	MethodName   string `json:"methodName"`
	Method       string `json:"method"`
	FileName     string `json:"fileName"`
	LineNumber   int    `json:"lineNumber"`
	NativeMethod bool   `json:"nativeMethod"`
}

// Parse converts a raw thread dump payload into one ThreadStack per thread.
// JSON (an object with a "threads" array, or a bare array of thread entries)
// and jstack-style plain text are accepted.
func Parse(payload []byte) (*Dump, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedDump)
	}

	switch trimmed[0] {
	case '{':
		var doc dumpDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDump, err)
		}
		if doc.Threads == nil {
			return nil, fmt.Errorf("%w: missing threads field", ErrMalformedDump)
		}
		return parseThreadEntries(*doc.Threads)
	case '[':
		var entries []threadEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDump, err)
		}
		return parseThreadEntries(entries)
	default:
		return parseText(trimmed)
	}
}

func parseThreadEntries(entries []threadEntry) (*Dump, error) {
	dump := &Dump{Threads: make([]ThreadStack, 0, len(entries))}

	for i, entry := range entries {
		stack := ThreadStack{
			Name:   entry.ThreadName,
			State:  entry.ThreadState,
			Frames: make([]StackFrame, 0, len(entry.StackTrace)),
		}
		for j, raw := range entry.StackTrace {
			frame, err := parseFrameEntry(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: thread %d frame %d: %v", ErrMalformedDump, i, j, err)
			}
			stack.Frames = append(stack.Frames, frame)
		}
		dump.Threads = append(dump.Threads, stack)
	}

	return dump, nil
}

// parseFrameEntry accepts either a stack trace line or a frame record.
func parseFrameEntry(raw json.RawMessage) (StackFrame, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return StackFrame{}, errors.New("empty frame")
	}

	switch raw[0] {
	case '"':
		var line string
		if err := json.Unmarshal(raw, &line); err != nil {
			return StackFrame{}, err
		}
		return parseFrameLine(line)
	case '{':
		var entry frameEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return StackFrame{}, err
		}
		return entry.frame()
	default:
		return StackFrame{}, fmt.Errorf("unexpected frame value %s", raw)
	}
}

func (e frameEntry) frame() (StackFrame, error) {
	method := e.Method
	if e.ClassName != "" && e.MethodName != "" {
		method = e.ClassName + "." + e.MethodName
	}
	if method == "" {
		return StackFrame{}, errors.New("frame has no method identifier")
	}

	frame := StackFrame{Method: method, File: e.FileName, Line: e.LineNumber}
	if e.NativeMethod {
		frame.Line = 0
	}
	return frame, nil
}

// parseFrameLine parses "pkg.Class.method(File.java:12)" and its variants.
func parseFrameLine(line string) (StackFrame, error) {
	matches := frameRegex.FindStringSubmatch(strings.TrimSpace(line))
	if matches == nil {
		return StackFrame{}, fmt.Errorf("unrecognized frame %q", line)
	}

	frame := StackFrame{Method: stripModule(matches[1])}
	location := matches[2]
	if idx := strings.LastIndexByte(location, '/'); idx >= 0 {
		location = location[idx+1:]
	}
	switch location {
	case "", "Native Method", "Unknown Source":
	default:
		if idx := strings.LastIndexByte(location, ':'); idx >= 0 {
			if n, err := strconv.Atoi(location[idx+1:]); err == nil {
				frame.File = location[:idx]
				frame.Line = n
				break
			}
		}
		frame.File = location
	}
	return frame, nil
}

// stripModule removes class loader and module qualifiers such as "app//" or
// "java.base@17/". Hidden class suffixes ("$$Lambda/0x...") are kept.
func stripModule(method string) string {
	for {
		i := strings.IndexByte(method, '/')
		if i < 0 || strings.HasPrefix(method[i+1:], "0x") {
			return method
		}
		method = method[i+1:]
	}
}

// parseText handles jstack-style dumps.
func parseText(payload []byte) (*Dump, error) {
	dump := &Dump{}
	var current *ThreadStack

	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if matches := threadHeaderRegex.FindStringSubmatch(line); matches != nil {
			dump.Threads = append(dump.Threads, ThreadStack{Name: matches[1]})
			current = &dump.Threads[len(dump.Threads)-1]
			continue
		}
		if current == nil {
			// Preamble such as "Full thread dump OpenJDK ..."
			if strings.HasPrefix(line, "at ") {
				return nil, fmt.Errorf("%w: line %d: frame outside of a thread", ErrMalformedDump, lineNo)
			}
			continue
		}

		if matches := threadStateRegex.FindStringSubmatch(line); matches != nil {
			current.State = matches[1]
		} else if strings.HasPrefix(line, "at ") {
			frame, err := parseFrameLine(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedDump, lineNo, err)
			}
			current.Frames = append(current.Frames, frame)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDump, err)
	}

	if len(dump.Threads) == 0 {
		return nil, fmt.Errorf("%w: no thread entries found", ErrMalformedDump)
	}
	return dump, nil
}
