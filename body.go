package keepwarm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BodyKind identifies which form a [Body] takes.
type BodyKind string

const (
	// BodyNone means no payload is sent.
	BodyNone BodyKind = "none"

	// BodyRaw is a string sent exactly as configured.
	BodyRaw BodyKind = "raw"

	// BodyStructured is a value encoded per the Content-Type header.
	BodyStructured BodyKind = "structured"
)

// Body is the payload sent with each ping.
//
// The zero value is an absent body. Structured values are kept as a
// [yaml.Node] tree rather than Go maps so that mapping keys keep the order in
// which they were written in the YAML file or JSON override.
//
// Body is immutable after construction.
type Body struct {
	kind BodyKind
	raw  string
	node *yaml.Node
}

// NoBody returns an absent body.
func NoBody() Body {
	return Body{}
}

// RawBody returns a body that is sent as-is.
func RawBody(s string) Body {
	return Body{kind: BodyRaw, raw: s}
}

// StructuredBody wraps a decoded YAML or JSON value. Document nodes are
// unwrapped; nil and null values yield an absent body.
//
// The node must not be modified after it is passed in.
func StructuredBody(node *yaml.Node) Body {
	if node != nil && node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return Body{}
		}
		node = node.Content[0]
	}
	if node == nil || isNull(node) {
		return Body{}
	}
	return Body{kind: BodyStructured, node: node}
}

// ParseJSONBody parses JSON text into a structured body, preserving object
// key order. Empty or whitespace-only text yields an absent body. When an
// object repeats a key, the last value wins and keeps the first position.
func ParseJSONBody(text string) (Body, error) {
	if strings.TrimSpace(text) == "" {
		return Body{}, nil
	}
	if !json.Valid([]byte(text)) {
		return Body{}, errors.New("body is not valid JSON")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	node, err := decodeJSONNode(dec)
	if err != nil {
		return Body{}, fmt.Errorf("failed to parse JSON body: %w", err)
	}
	return StructuredBody(node), nil
}

// decodeJSONNode reads one JSON value from dec as a node tree.
func decodeJSONNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeJSONObject(dec)
		case '[':
			seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				item, err := decodeJSONNode(dec)
				if err != nil {
					return nil, err
				}
				seq.Content = append(seq.Content, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return seq, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return scalarNode("!!str", v), nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(v.String(), ".eE") {
			tag = "!!float"
		}
		return scalarNode(tag, v.String()), nil
	case bool:
		return scalarNode("!!bool", strconv.FormatBool(v)), nil
	case nil:
		return scalarNode("!!null", "null"), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeJSONObject(dec *json.Decoder) (*yaml.Node, error) {
	obj := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	seen := make(map[string]int)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		value, err := decodeJSONNode(dec)
		if err != nil {
			return nil, err
		}
		if i, dup := seen[key]; dup {
			obj.Content[i+1] = value
			continue
		}
		seen[key] = len(obj.Content)
		obj.Content = append(obj.Content, scalarNode("!!str", key), value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func scalarNode(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// Kind reports the form of the body.
func (b Body) Kind() BodyKind {
	if b.kind == "" {
		return BodyNone
	}
	return b.kind
}

// IsZero reports whether the body is absent.
func (b Body) IsZero() bool {
	return b.Kind() == BodyNone
}

// Raw returns the raw string of a [BodyRaw] body, or "".
func (b Body) Raw() string {
	return b.raw
}

// Node returns the value of a [BodyStructured] body, or nil.
// The returned node must not be modified.
func (b Body) Node() *yaml.Node {
	return b.node
}

// String returns the body as display text: the raw string, or the JSON
// rendering of a structured value.
func (b Body) String() string {
	switch b.Kind() {
	case BodyRaw:
		return b.raw
	case BodyStructured:
		data, err := encodeJSON(b.node)
		if err != nil {
			return fallbackText(b.node)
		}
		return string(data)
	default:
		return ""
	}
}

// encodeJSON renders a node as JSON text with ", " and ": " separators and
// keys in document order.
func encodeJSON(node *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, node.Content[0])

	case yaml.AliasNode:
		if node.Alias == nil {
			return errors.New("dangling alias")
		}
		return writeJSON(buf, node.Alias)

	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("unsupported mapping key at line %d", key.Line)
			}
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeJSONString(buf, key.Value); err != nil {
				return err
			}
			buf.WriteString(": ")
			if err := writeJSON(buf, value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case yaml.ScalarNode:
		return writeJSONScalar(buf, node)
	}
	return fmt.Errorf("unsupported node kind %v", node.Kind)
}

func writeJSONScalar(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.ShortTag() {
	case "!!null":
		buf.WriteString("null")
		return nil
	case "!!bool":
		var v bool
		if err := node.Decode(&v); err != nil {
			return err
		}
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case "!!int", "!!float":
		// keep the literal when it is already a JSON number (1.0 stays 1.0)
		if json.Valid([]byte(node.Value)) {
			buf.WriteString(node.Value)
			return nil
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	default:
		return writeJSONString(buf, node.Value)
	}
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

// encodeForm renders a mapping node as application/x-www-form-urlencoded
// text. Keys keep document order, sequences repeat the key per item, nulls
// are skipped and nested values are sent as JSON text.
func encodeForm(node *yaml.Node) ([]byte, error) {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("form encoding requires a mapping, got %s", kindName(node))
	}

	var parts []string
	add := func(key string, value *yaml.Node) error {
		if value.Kind == yaml.AliasNode && value.Alias != nil {
			value = value.Alias
		}
		if isNull(value) {
			return nil
		}
		text := value.Value
		if value.Kind != yaml.ScalarNode {
			data, err := encodeJSON(value)
			if err != nil {
				return err
			}
			text = string(data)
		}
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(text))
		return nil
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("unsupported mapping key at line %d", key.Line)
		}
		if value.Kind == yaml.SequenceNode {
			for _, item := range value.Content {
				if err := add(key.Value, item); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := add(key.Value, value); err != nil {
			return nil, err
		}
	}
	return []byte(strings.Join(parts, "&")), nil
}

// fallbackText is the best-effort rendering used when a structured body
// cannot be encoded as requested.
func fallbackText(node *yaml.Node) string {
	data, err := yaml.Marshal(node)
	if err != nil {
		return node.Value
	}
	return strings.TrimRight(string(data), "\n")
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return "document"
	}
}
