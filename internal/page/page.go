// Package page reads and writes outline pages: markdown files made of
// "- " bullet blocks nested by indentation, as written by Logseq.
package page

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var ErrBlockNotFound = errors.New("block not found")

var (
	idPropRe   = regexp.MustCompile(`^id::\s*(\S+)\s*$`)
	propertyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+::`)
)

// Block is one bullet and its continuation lines. Raw holds the lines
// exactly as they appear in the file so unchanged blocks round-trip.
type Block struct {
	ID    uuid.UUID
	Depth int
	Raw   []string
}

// Content is the block text without the bullet marker, indentation and
// property lines.
func (b Block) Content() string {
	var parts []string
	for i, raw := range b.Raw {
		line := strings.TrimRight(strings.TrimLeft(raw, " \t"), "\r")
		if i == 0 {
			line = strings.TrimPrefix(strings.TrimPrefix(line, "-"), " ")
		} else if propertyRe.MatchString(line) {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n")
}

// Page is an outline file held in memory. It is safe for concurrent use.
type Page struct {
	mu       sync.RWMutex
	path     string
	preamble []string
	blocks   []*Block
	indent   string
	trailing bool
}

// Load reads and parses the page at path.
func Load(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", path, err)
	}
	p.path = path
	return p, nil
}

// Parse reads a page from r. The result has no path and can't be saved.
func Parse(r io.Reader) (*Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// Empty pages get a final newline once something is written to them.
	p := &Page{indent: "\t", trailing: true}
	if len(data) == 0 {
		return p, nil
	}
	text := string(data)
	p.trailing = strings.HasSuffix(text, "\n")

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	// Space indents count in units of the shallowest space-indented bullet.
	spaceUnit, firstWS := 0, ""
	for _, line := range lines {
		ws, ok := bulletIndent(line)
		if !ok || ws == "" {
			continue
		}
		if firstWS == "" {
			firstWS = ws
		}
		if n := strings.Count(ws, " "); n > 0 && (spaceUnit == 0 || n < spaceUnit) {
			spaceUnit = n
		}
	}
	if spaceUnit > 0 && !strings.Contains(firstWS, "\t") {
		p.indent = strings.Repeat(" ", spaceUnit)
	}

	var cur *Block
	for _, line := range lines {
		if ws, ok := bulletIndent(line); ok {
			depth := strings.Count(ws, "\t")
			if spaceUnit > 0 {
				depth += strings.Count(ws, " ") / spaceUnit
			}
			cur = &Block{Depth: depth, Raw: []string{line}}
			p.blocks = append(p.blocks, cur)
			continue
		}

		if cur == nil {
			p.preamble = append(p.preamble, line)
			continue
		}
		cur.Raw = append(cur.Raw, line)
	}

	for _, b := range p.blocks {
		b.ID = blockID(b.Raw)
	}
	return p, nil
}

// bulletIndent returns the leading whitespace of a bullet line.
func bulletIndent(line string) (string, bool) {
	lead := len(line) - len(strings.TrimLeft(line, " \t"))
	rest := line[lead:]
	return line[:lead], rest == "-" || strings.HasPrefix(rest, "- ")
}

// blockID uses the block's id:: property when present so references stay
// stable across loads.
func blockID(raw []string) uuid.UUID {
	for _, line := range raw[1:] {
		m := idPropRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if id, err := uuid.Parse(m[1]); err == nil {
			return id
		}
	}
	return uuid.New()
}

func (p *Page) Path() string {
	return p.path
}

// Name is the page title derived from the file name.
func (p *Page) Name() string {
	if p.path == "" {
		return "untitled"
	}
	base := filepath.Base(p.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Blocks returns a copy of every block in document order.
func (p *Page) Blocks() []Block {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Block, len(p.blocks))
	for i, b := range p.blocks {
		out[i] = copyBlock(b)
	}
	return out
}

func (p *Page) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.blocks)
}

func (p *Page) Block(id uuid.UUID) (Block, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if i := p.indexOf(id); i >= 0 {
		return copyBlock(p.blocks[i]), true
	}
	return Block{}, false
}

func (p *Page) indexOf(id uuid.UUID) int {
	for i, b := range p.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// InsertChild appends a block holding content as the last child of the
// anchor, after any existing children. Repeated calls therefore keep their
// call order on the page.
func (p *Page) InsertChild(anchor uuid.UUID, content string) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.indexOf(anchor)
	if i < 0 {
		return uuid.Nil, fmt.Errorf("insert under %s: %w", anchor, ErrBlockNotFound)
	}
	parent := p.blocks[i]

	end := i + 1
	for end < len(p.blocks) && p.blocks[end].Depth > parent.Depth {
		end++
	}

	b := &Block{ID: uuid.New(), Depth: parent.Depth + 1}
	prefix := strings.Repeat(p.indent, b.Depth)
	for n, line := range strings.Split(content, "\n") {
		if n == 0 {
			b.Raw = append(b.Raw, prefix+"- "+line)
		} else {
			b.Raw = append(b.Raw, prefix+"  "+line)
		}
	}

	p.blocks = append(p.blocks, nil)
	copy(p.blocks[end+1:], p.blocks[end:])
	p.blocks[end] = b
	return b.ID, nil
}

// WriteTo serializes the page.
func (p *Page) WriteTo(w io.Writer) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var lines []string
	lines = append(lines, p.preamble...)
	for _, b := range p.blocks {
		lines = append(lines, b.Raw...)
	}
	out := strings.Join(lines, "\n")
	if p.trailing && len(lines) > 0 {
		out += "\n"
	}
	n, err := io.WriteString(w, out)
	return int64(n), err
}

// Save writes the page back to its file via a temp file and rename.
func (p *Page) Save() error {
	if p.path == "" {
		return errors.New("save page: no path")
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.path)+".*")
	if err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := p.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("save page: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	if info, err := os.Stat(p.path); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	return nil
}

func copyBlock(b *Block) Block {
	raw := make([]string, len(b.Raw))
	copy(raw, b.Raw)
	return Block{ID: b.ID, Depth: b.Depth, Raw: raw}
}
