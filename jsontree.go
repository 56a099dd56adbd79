package straincrawler

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

type jsonKind int

const (
	jsonScalar jsonKind = iota
	jsonObject
	jsonArray
)

// jsonNode is a decoded JSON value that keeps object keys in document order.
type jsonNode struct {
	kind   jsonKind
	fields []jsonField
	items  []*jsonNode
	scalar interface{}
}

type jsonField struct {
	key   string
	value *jsonNode
}

func parseJSONTree(data string) (*jsonNode, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	node, err := decodeJSONNode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, eris.New("trailing data after JSON value")
	}
	return node, nil
}

func decodeJSONNode(dec *json.Decoder) (*jsonNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &jsonNode{kind: jsonObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				value, err := decodeJSONNode(dec)
				if err != nil {
					return nil, err
				}
				n.fields = append(n.fields, jsonField{key: key, value: value})
			}
			_, err := dec.Token()
			return n, err
		case '[':
			n := &jsonNode{kind: jsonArray}
			for dec.More() {
				item, err := decodeJSONNode(dec)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, item)
			}
			_, err := dec.Token()
			return n, err
		}
		return nil, eris.Errorf("unexpected delimiter %v", t)
	default:
		return &jsonNode{kind: jsonScalar, scalar: t}, nil
	}
}

func (n *jsonNode) get(key string) (*jsonNode, bool) {
	for _, f := range n.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

func (n *jsonNode) str() (string, bool) {
	if n == nil || n.kind != jsonScalar {
		return "", false
	}
	s, ok := n.scalar.(string)
	return s, ok
}

// jsonVisitor is called for every object node in pre-order. Returning false stops the walk.
type jsonVisitor func(obj *jsonNode) bool

func (n *jsonNode) visitObjects(visit jsonVisitor) bool {
	switch n.kind {
	case jsonObject:
		if !visit(n) {
			return false
		}
		for _, f := range n.fields {
			if !f.value.visitObjects(visit) {
				return false
			}
		}
	case jsonArray:
		for _, item := range n.items {
			if !item.visitObjects(visit) {
				return false
			}
		}
	}
	return true
}

var helpsWithKeys = []string{"helps_with", "medical", "conditions", "benefits", "treats"}

// findFlavors returns the first non-empty "flavors" array in the tree.
func findFlavors(root *jsonNode) []string {
	var flavors []string
	root.visitObjects(func(obj *jsonNode) bool {
		list, ok := obj.get("flavors")
		if !ok || list.kind != jsonArray {
			return true
		}
		for _, item := range list.items {
			name, ok := item.str()
			if !ok && item.kind == jsonObject {
				if v, found := item.get("name"); found {
					name, ok = v.str()
				}
			}
			if name = strings.TrimSpace(name); ok && name != "" {
				flavors = appendUnique(flavors, titleCase(name))
			}
		}
		return len(flavors) == 0
	})
	return flavors
}

// findHelpsWith returns the conditions of the first object carrying one of helpsWithKeys.
func findHelpsWith(root *jsonNode) []HelpsWith {
	var out []HelpsWith
	root.visitObjects(func(obj *jsonNode) bool {
		for _, key := range helpsWithKeys {
			list, ok := obj.get(key)
			if !ok || list.kind != jsonArray {
				continue
			}
			for _, item := range list.items {
				if h, ok := helpsWithItem(item); ok {
					out = append(out, h)
				}
			}
			if len(out) > 0 {
				return false
			}
		}
		return true
	})
	return out
}

func helpsWithItem(item *jsonNode) (HelpsWith, bool) {
	if s, ok := item.str(); ok {
		s = strings.TrimSpace(s)
		return HelpsWith{Condition: s}, s != ""
	}
	if item.kind != jsonObject {
		return HelpsWith{}, false
	}
	var h HelpsWith
	for _, key := range []string{"condition", "name"} {
		if v, ok := item.get(key); ok {
			if s, ok := v.str(); ok && strings.TrimSpace(s) != "" {
				h.Condition = strings.TrimSpace(s)
				break
			}
		}
	}
	if h.Condition == "" {
		return h, false
	}
	for _, key := range []string{"percentage", "percent"} {
		v, ok := item.get(key)
		if !ok || v.kind != jsonScalar {
			continue
		}
		switch p := v.scalar.(type) {
		case json.Number:
			h.Percentage = parsePercentage(p.String())
		case string:
			h.Percentage = parsePercentage(p)
		}
		return h, true
	}
	return h, true
}
