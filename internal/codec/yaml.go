package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Extension is the file extension of the attributes encoding.
const Extension = "yml"

// ErrNotMapping is returned when stored attributes are valid YAML but not a
// mapping at the top level.
var ErrNotMapping = errors.New("attributes document is not a mapping")

// EncodeAttributes produces the canonical attributes.yml bytes for m.
// An empty Map encodes to nil: the caller omits the file entirely.
func EncodeAttributes(m Map) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	node, err := toNode(m)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeAttributes parses attributes.yml bytes. Empty input decodes to an
// empty Map. Anything that is not a YAML mapping is an error; callers wrap
// it as a corrupt record.
func DecodeAttributes(data []byte) (Map, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Map{}, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	v, err := fromNode(&doc)
	if err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	m, ok := v.(Map)
	if !ok {
		return nil, fmt.Errorf("decode attributes: %w", ErrNotMapping)
	}
	return m, nil
}

func toNode(v Value) (*yaml.Node, error) {
	switch val := v.(type) {
	case nil, Null:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case String:
		if err := checkString(string(val)); err != nil {
			return nil, err
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(val)}, nil
	case Int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(val), 10)}, nil
	case Float:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(float64(val))}, nil
	case Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(bool(val))}, nil
	case List:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(val) == 0 {
			n.Style = yaml.FlowStyle
		}
		for i, e := range val {
			c, err := toNode(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if len(val) == 0 {
			n.Style = yaml.FlowStyle
		}
		// Keys are written in the form fromNode reads them back as.
		val, err := normalizeKeys(val)
		if err != nil {
			return nil, err
		}
		for _, k := range val.SortedKeys() {
			c, err := toNode(val[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				c,
			)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown Value type %T", v)
	}
}

// formatFloat renders a float so that it always reads back as a float.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func fromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Map{}, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("line %d: dangling alias", n.Line)
		}
		return fromNode(n.Alias)
	case yaml.SequenceNode:
		out := make(List, len(n.Content))
		for i, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	case yaml.MappingNode:
		if len(n.Content)%2 != 0 {
			return nil, fmt.Errorf("line %d: odd mapping content", n.Line)
		}
		out := make(Map, len(n.Content)/2)
		for i := 0; i < len(n.Content); i += 2 {
			kn, vn := n.Content[i], n.Content[i+1]
			if kn.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key is not a scalar", kn.Line)
			}
			key, err := NormalizeKey(kn.Value)
			if err != nil {
				return nil, err
			}
			if _, dup := out[key]; dup {
				return nil, fmt.Errorf("line %d: duplicate key %q", kn.Line, key)
			}
			v, err := fromNode(vn)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", key, err)
			}
			out[key] = v
		}
		return out, nil
	case yaml.ScalarNode:
		return fromScalar(n)
	default:
		return nil, fmt.Errorf("line %d: unsupported node kind %v", n.Line, n.Kind)
	}
}

func fromScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Float(f), nil
	default:
		// !!str, !!timestamp, !!binary and custom tags keep their text.
		return String(n.Value), nil
	}
}
