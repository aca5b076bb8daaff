// Package scope resolves source lines to the definitions that enclose them.
package scope

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ModuleScope is the scope of lines outside any class or function.
const ModuleScope = "<module>"

// ErrLineOutOfRange is returned for lines outside the file.
var ErrLineOutOfRange = errors.New("line out of range")

// ContentFunc returns the content of file.
type ContentFunc func(file string) ([]byte, error)

// FromMap serves contents from memory.
func FromMap(contents map[string]string) ContentFunc {
	return func(file string) ([]byte, error) {
		c, ok := contents[file]
		if !ok {
			return nil, fmt.Errorf("%s: %w", file, os.ErrNotExist)
		}
		return []byte(c), nil
	}
}

// FromDir reads files relative to root.
func FromDir(root string) ContentFunc {
	return func(file string) ([]byte, error) {
		return os.ReadFile(filepath.Join(root, file))
	}
}

type span struct {
	start, end uint32 // 0-based rows, inclusive
	name       string
}

type parsedFile struct {
	lines int
	spans []span // pre-order, so a nested span follows its parent
	err   error
}

// Python resolves lines of Python files to the dotted path of the innermost
// enclosing class or function, e.g. "Cache.get". Each file is parsed once;
// the resolver is safe for concurrent use.
type Python struct {
	read ContentFunc

	mu    sync.Mutex
	cache map[string]*parsedFile
}

// NewPython returns a resolver reading files through read.
func NewPython(read ContentFunc) *Python {
	return &Python{read: read, cache: make(map[string]*parsedFile)}
}

// Supports reports whether path names a Python source file.
func (p *Python) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".py")
}

// ScopeOf returns the scope of the 1-based line of file.
func (p *Python) ScopeOf(file string, line int) (string, error) {
	pf := p.load(file)
	if pf.err != nil {
		return "", pf.err
	}
	if line < 1 || line > pf.lines {
		return "", fmt.Errorf("%w: %s:%d", ErrLineOutOfRange, file, line)
	}

	row := uint32(line - 1)
	scope := ModuleScope
	for _, s := range pf.spans {
		if s.start <= row && row <= s.end {
			scope = s.name
		}
	}
	return scope, nil
}

func (p *Python) load(file string) *parsedFile {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pf, ok := p.cache[file]; ok {
		return pf
	}
	pf := parsePython(p.read, file)
	p.cache[file] = pf
	return pf
}

func parsePython(read ContentFunc, file string) *parsedFile {
	content, err := read(file)
	if err != nil {
		return &parsedFile{err: fmt.Errorf("read %s: %w", file, err)}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return &parsedFile{err: fmt.Errorf("parse %s: %w", file, err)}
	}
	defer tree.Close()

	pf := &parsedFile{lines: strings.Count(string(content), "\n") + 1}
	collectSpans(tree.RootNode(), content, "", &pf.spans)
	return pf
}

func collectSpans(node *sitter.Node, content []byte, prefix string, out *[]span) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		childPrefix := prefix

		switch child.Type() {
		case "class_definition", "function_definition":
			name := child.ChildByFieldName("name")
			if name == nil {
				break
			}
			dotted := name.Content(content)
			if prefix != "" {
				dotted = prefix + "." + dotted
			}
			start := child.StartPoint().Row
			if parent := child.Parent(); parent != nil && parent.Type() == "decorated_definition" {
				start = parent.StartPoint().Row
			}
			*out = append(*out, span{start: start, end: child.EndPoint().Row, name: dotted})
			childPrefix = dotted
		}

		collectSpans(child, content, childPrefix, out)
	}
}
