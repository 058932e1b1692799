// Package rag answers questions over a fixed documentation corpus.
package rag

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Document is one corpus file flattened to plain text.
type Document struct {
	Path string
	Text string
}

var md = goldmark.New()

// LoadDocuments reads every .md, .markdown and .txt file under dir.
// Markdown is reduced to its text, one block per paragraph.
func LoadDocuments(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".markdown" && ext != ".txt" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		content := string(data)
		if ext != ".txt" {
			content = MarkdownToText(data)
		}
		if strings.TrimSpace(content) == "" {
			return nil
		}
		docs = append(docs, Document{Path: path, Text: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load documents from %s: %w", dir, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// MarkdownToText strips markdown syntax, separating blocks with blank lines.
func MarkdownToText(source []byte) string {
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(v.Segment.Value(source))
				if v.SoftLineBreak() || v.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(v.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(source))
				}
				return ast.WalkSkipChildren, nil
			}
			buf.WriteString("\n\n")
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if !entering {
				buf.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}
