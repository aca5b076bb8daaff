package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock represents a parsed code block from markdown content.
type CodeBlock struct {
	// Hint is the content of the paragraph immediately preceding the code block.
	Hint string
	// Lang is the language identifier of the code block (e.g., "go", "diff").
	Lang string
	// Content is the raw text inside the code block.
	Content string
}

// DiffBlock is a fenced diff together with the file it targets.
type DiffBlock struct {
	FilePath   string
	RawContent string
}

// ExtractCodeBlocks uses a markdown AST to find all fenced code blocks
// and their preceding paragraph, which is treated as a hint.
func ExtractCodeBlocks(source []byte) ([]CodeBlock, error) {
	var blocks []CodeBlock
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fencedCodeBlock, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		block := CodeBlock{
			Lang:    string(fencedCodeBlock.Language(source)),
			Content: nodeLines(fencedCodeBlock, source),
		}

		if prev := fencedCodeBlock.PreviousSibling(); prev != nil {
			if p, ok := prev.(*ast.Paragraph); ok {
				block.Hint = strings.TrimSpace(nodeLines(p, source))
			}
		}

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}

	return blocks, nil
}

func nodeLines(n ast.Node, source []byte) string {
	var content bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		content.Write(line.Value(source))
	}
	return content.String()
}

// ExtractPatch pulls the patch out of a model response.
//
// A response that already starts with a diff header is returned unchanged.
// Otherwise the bodies of every fence tagged "diff" or left untagged are
// joined with "\n". ok is false when neither is found; blank input is an
// empty patch rather than a missing one.
func ExtractPatch(response string) (patch string, ok bool) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return "", true
	}
	if strings.HasPrefix(trimmed, "diff --git") || strings.HasPrefix(trimmed, "--- a/") {
		return response, true
	}

	blocks, err := ExtractCodeBlocks([]byte(response))
	if err != nil {
		return "", false
	}
	var bodies []string
	for _, b := range blocks {
		if b.Lang != "" && b.Lang != "diff" {
			continue
		}
		bodies = append(bodies, strings.TrimSuffix(b.Content, "\n"))
	}
	if len(bodies) == 0 {
		return "", false
	}
	return strings.Join(bodies, "\n"), true
}

// ExtractDiffBlocks returns the diff fences of a markdown document that name
// a target file in their +++ header.
func ExtractDiffBlocks(content string) ([]DiffBlock, error) {
	blocks, err := ExtractCodeBlocks([]byte(content))
	if err != nil {
		return nil, err
	}
	var diffs []DiffBlock
	for _, b := range blocks {
		if b.Lang != "diff" {
			continue
		}
		path := ExtractPathFromDiff(b.Content)
		if path == "" {
			continue
		}
		diffs = append(diffs, DiffBlock{FilePath: path, RawContent: b.Content})
	}
	return diffs, nil
}

// FenceDiff wraps a diff in a markdown diff fence.
func FenceDiff(diff string) string {
	return "```diff\n" + diff + "\n```"
}
