package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	toolsKey      = "tools"
	defaultIndent = 2
)

// Document is the registry file. Edits touch only the text of the entry they
// change, so comments, ordering and formatting elsewhere survive a save.
type Document struct {
	path     string
	raw      []byte
	root     *yaml.Node
	config   Config
	indent   int
	modified bool
	warnings []ValidationResult
}

// Load reads and validates the registry. A missing file yields an empty
// document. Invalid content is reported as *ConfigError.
func Load(path string) (*Document, error) {
	doc := &Document{path: path, indent: defaultIndent}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	doc.raw = raw

	if err := doc.parse(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	if doc.root != nil {
		var value any
		if err := doc.root.Decode(&value); err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
		results, err := validateSchema(value)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
		if hasErrors(results) {
			return nil, &ConfigError{Path: path, Results: results}
		}
	}
	if err := doc.decode(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	results := doc.config.Validate()
	if hasErrors(results) {
		return nil, &ConfigError{Path: path, Results: results}
	}
	doc.warnings = results
	return doc, nil
}

// parse rebuilds the node tree from raw.
func (d *Document) parse() error {
	d.root = nil

	var node yaml.Node
	if err := yaml.Unmarshal(d.raw, &node); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if node.Kind == 0 || len(node.Content) == 0 {
		return nil
	}
	root := node.Content[0]
	switch {
	case root.Kind == yaml.ScalarNode && root.Tag == "!!null":
		return nil
	case root.Kind != yaml.MappingNode:
		return fmt.Errorf("line %d: top level must be a mapping", root.Line)
	}
	d.root = root
	d.indent = detectIndent(root)
	return nil
}

// decode refreshes the typed view from the node tree.
func (d *Document) decode() error {
	d.config = Config{}
	if d.root == nil {
		return nil
	}
	if err := d.root.Decode(&d.config); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Path returns the file location.
func (d *Document) Path() string { return d.path }

// Config returns the decoded registry.
func (d *Document) Config() Config { return d.config }

// Warnings returns non-fatal findings from Load.
func (d *Document) Warnings() []ValidationResult { return d.warnings }

// Modified reports whether an edit changed the document since Load.
func (d *Document) Modified() bool { return d.modified }

// Names returns the registered tool names, sorted.
func (d *Document) Names() []string { return d.config.Names() }

// Get returns the spec registered under name.
func (d *Document) Get(name string) (ToolSpec, bool) {
	spec, ok := d.config.Tools[name]
	return spec, ok
}

// Upsert registers name, merging spec into any existing entry. It reports
// false and leaves the document untouched when nothing would change.
func (d *Document) Upsert(name string, spec ToolSpec) (bool, error) {
	existing, exists := d.Get(name)
	if exists && existing.Subsumes(spec) {
		return false, nil
	}
	merged := existing.Merge(spec)
	if err := ValidateSpec(name, merged); err != nil {
		return false, err
	}

	tools := d.toolsValue()
	switch {
	case d.root == nil || d.root.Style&yaml.FlowStyle != 0:
		if err := d.upsertTree(name, merged); err != nil {
			return false, err
		}
	case tools == nil:
		if err := d.appendTools(name, merged); err != nil {
			return false, err
		}
	case tools.Kind == yaml.ScalarNode && tools.Tag == "!!null":
		if err := d.fillTools(name, merged); err != nil {
			return false, err
		}
	case tools.Kind != yaml.MappingNode || tools.Style&yaml.FlowStyle != 0 || len(tools.Content) == 0:
		if err := d.upsertTree(name, merged); err != nil {
			return false, err
		}
	default:
		if err := d.upsertText(tools, name, merged); err != nil {
			return false, err
		}
	}
	return true, d.reparse()
}

// Remove deletes the entry for name together with its leading comments.
func (d *Document) Remove(name string) (bool, error) {
	if _, ok := d.Get(name); !ok {
		return false, nil
	}
	tools := d.toolsValue()
	if tools == nil || tools.Kind != yaml.MappingNode {
		return false, nil
	}
	idx := entryIndex(tools, name)
	if idx < 0 {
		return false, nil
	}

	if d.root.Style&yaml.FlowStyle != 0 || tools.Style&yaml.FlowStyle != 0 {
		tools.Content = append(tools.Content[:idx], tools.Content[idx+2:]...)
		if err := d.encodeTree(); err != nil {
			return false, err
		}
		return true, d.reparse()
	}

	lines := splitLines(d.raw)
	key := tools.Content[idx]
	start, end := entryRegion(lines, key)
	start = leadingComments(lines, start, key.Column-1)
	d.raw = joinLines(lines[:start], lines[end:])
	return true, d.reparse()
}

// Save writes the document through a temporary file and a rename. An
// unmodified document is written back byte for byte.
func (d *Document) Save() error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	mode := fs.FileMode(0o600)
	if info, err := os.Stat(d.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(d.raw); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		cleanup()
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Bytes returns the current serialized document.
func (d *Document) Bytes() []byte { return d.raw }

func (d *Document) reparse() error {
	d.modified = true
	if err := d.parse(); err != nil {
		return fmt.Errorf("re-read edited config: %w", err)
	}
	if err := d.decode(); err != nil {
		return fmt.Errorf("re-read edited config: %w", err)
	}
	return nil
}

func (d *Document) toolsValue() *yaml.Node {
	if d.root == nil {
		return nil
	}
	if idx := entryIndex(d.root, toolsKey); idx >= 0 {
		return d.root.Content[idx+1]
	}
	return nil
}

// upsertText splices the entry into a block-style tools mapping.
func (d *Document) upsertText(tools *yaml.Node, name string, spec ToolSpec) error {
	lines := splitLines(d.raw)
	column := tools.Content[0].Column

	if idx := entryIndex(tools, name); idx >= 0 {
		key, value := tools.Content[idx], tools.Content[idx+1]
		if value.Kind != yaml.MappingNode || value.Style&yaml.FlowStyle != 0 {
			value = &yaml.Node{Kind: yaml.MappingNode}
		}
		applySpec(value, spec)
		text, err := d.encodeEntry(key, value, key.Column-1)
		if err != nil {
			return err
		}
		start, end := entryRegion(lines, key)
		d.raw = joinLines(lines[:start], text, lines[end:])
		return nil
	}

	key := tools.Content[len(tools.Content)-2]
	_, end := entryRegion(lines, key)
	value := &yaml.Node{Kind: yaml.MappingNode}
	applySpec(value, spec)
	text, err := d.encodeEntry(stringNode(name), value, column-1)
	if err != nil {
		return err
	}
	d.raw = joinLines(lines[:end], text, lines[end:])
	return nil
}

// appendTools adds a tools section at the end of the file.
func (d *Document) appendTools(name string, spec ToolSpec) error {
	value := &yaml.Node{Kind: yaml.MappingNode}
	applySpec(value, spec)
	text, err := d.encodeEntry(stringNode(name), value, d.indent)
	if err != nil {
		return err
	}
	lines := splitLines(d.raw)
	d.raw = joinLines(lines, []string{toolsKey + ":\n"}, text)
	return nil
}

// fillTools turns an empty "tools:" key into a mapping holding one entry.
func (d *Document) fillTools(name string, spec ToolSpec) error {
	key := d.root.Content[entryIndex(d.root, toolsKey)]
	lines := splitLines(d.raw)
	start, end := entryRegion(lines, key)

	line := strings.Repeat(" ", key.Column-1) + toolsKey + ":"
	if key.LineComment != "" {
		line += " " + key.LineComment
	}
	value := &yaml.Node{Kind: yaml.MappingNode}
	applySpec(value, spec)
	text, err := d.encodeEntry(stringNode(name), value, key.Column-1+d.indent)
	if err != nil {
		return err
	}
	rest := append([]string{line + "\n"}, lines[start+1:end]...)
	d.raw = joinLines(lines[:start], rest, text, lines[end:])
	return nil
}

// upsertTree edits the node tree and re-encodes the whole document. It
// handles flow-style and empty sections, where there is no block text to
// splice into.
func (d *Document) upsertTree(name string, spec ToolSpec) error {
	if d.root == nil {
		lines := splitLines(d.raw)
		if len(nonBlank(lines)) > 0 && !allComments(lines) {
			return fmt.Errorf("config %s has no top-level mapping", d.path)
		}
		return d.appendTools(name, spec)
	}

	idx := entryIndex(d.root, toolsKey)
	var tools *yaml.Node
	if idx < 0 {
		tools = &yaml.Node{Kind: yaml.MappingNode}
		d.root.Content = append(d.root.Content, stringNode(toolsKey), tools)
	} else {
		tools = d.root.Content[idx+1]
		if tools.Kind != yaml.MappingNode {
			*tools = yaml.Node{Kind: yaml.MappingNode, LineComment: tools.LineComment}
		}
		if len(tools.Content) == 0 {
			tools.Style = 0
		}
	}

	if i := entryIndex(tools, name); i >= 0 {
		value := tools.Content[i+1]
		if value.Kind != yaml.MappingNode {
			*value = yaml.Node{Kind: yaml.MappingNode}
		}
		applySpec(value, spec)
	} else {
		value := &yaml.Node{Kind: yaml.MappingNode}
		applySpec(value, spec)
		tools.Content = append(tools.Content, stringNode(name), value)
	}
	return d.encodeTree()
}

func (d *Document) encodeTree() error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(d.indent)
	if err := enc.Encode(d.root); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	d.raw = buf.Bytes()
	return nil
}

// encodeEntry renders "key: value" as lines indented by indent spaces.
func (d *Document) encodeEntry(key, value *yaml.Node, indent int) ([]string, error) {
	k := *key
	k.HeadComment, k.FootComment = "", ""
	v := *value
	v.FootComment = ""
	entry := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{&k, &v}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(d.indent)
	if err := enc.Encode(entry); err != nil {
		return nil, fmt.Errorf("encode tool %s: %w", key.Value, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode tool %s: %w", key.Value, err)
	}

	prefix := strings.Repeat(" ", indent)
	lines := splitLines(buf.Bytes())
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return lines, nil
}

// applySpec writes the set fields of spec into a mapping node, keeping the
// position, style and comments of keys that already exist.
func applySpec(m *yaml.Node, spec ToolSpec) {
	set := func(key, value, tag string) {
		if idx := entryIndex(m, key); idx >= 0 {
			node := m.Content[idx+1]
			if node.Kind != yaml.ScalarNode {
				*node = yaml.Node{Kind: yaml.ScalarNode, LineComment: node.LineComment}
			}
			node.Value, node.Tag = value, tag
			if tag != "!!str" || strings.Contains(value, "\n") != (node.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0) {
				node.Style = 0
			}
			return
		}
		m.Content = append(m.Content, stringNode(key), &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value})
	}
	str := func(key, value string) {
		if value != "" {
			set(key, value, "!!str")
		}
	}
	str("project", spec.Project)
	str("release_matcher", spec.ReleaseMatcher)
	str("binary_matcher", spec.BinaryMatcher)
	str("changelog", spec.Changelog)
	if spec.Prerelease != nil {
		set("prerelease", fmt.Sprint(*spec.Prerelease), "!!bool")
	}
	str("version_source", spec.VersionSource)
	str("path", spec.Path)
	str("post", spec.Post)
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// entryIndex returns the index of key within a mapping's Content, or -1.
func entryIndex(m *yaml.Node, key string) int {
	if m == nil || m.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// detectIndent returns the indentation step used by the first nested block
// mapping, or the default.
func detectIndent(root *yaml.Node) int {
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind == yaml.MappingNode && value.Style&yaml.FlowStyle == 0 && len(value.Content) > 0 {
			if step := value.Content[0].Column - key.Column; step > 0 {
				return step
			}
		}
	}
	return defaultIndent
}

// entryRegion returns the [start, end) line range of a mapping entry whose
// key is key: from the key line up to the next line indented at or left of
// the key, minus trailing blank lines and comments that belong to what follows.
func entryRegion(lines []string, key *yaml.Node) (int, int) {
	start := key.Line - 1
	indent := key.Column - 1
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if indentOf(lines[i]) <= indent {
			end = i
			break
		}
	}
	for end > start+1 {
		line := lines[end-1]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") && indentOf(line) <= indent {
			end--
			continue
		}
		break
	}
	return start, end
}

// leadingComments extends start upwards over comment lines directly above
// it at the same indentation.
func leadingComments(lines []string, start, indent int) int {
	for start > 0 {
		line := lines[start-1]
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") || indentOf(line) != indent {
			break
		}
		start--
	}
	return start
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// splitLines splits text after each newline. The last line keeps no
// newline if the text didn't end with one.
func splitLines(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(raw), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// joinLines concatenates line groups, terminating every line that is
// followed by more text.
func joinLines(groups ...[]string) []byte {
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	var b strings.Builder
	for i, line := range all {
		b.WriteString(line)
		if i < len(all)-1 && !strings.HasSuffix(line, "\n") {
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

func nonBlank(lines []string) []string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func allComments(lines []string) bool {
	for _, l := range nonBlank(lines) {
		if !strings.HasPrefix(strings.TrimSpace(l), "#") {
			return false
		}
	}
	return true
}
