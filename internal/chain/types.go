// Package chain implements the declarative chain schema, its validator,
// the node builder, and the compiled realtime signal chain.
package chain

import "encoding/json"

// NodeType is the closed set of node type tags recognised by the builder.
type NodeType string

const (
	TypeInput       NodeType = "input"
	TypeOutput      NodeType = "output"
	TypeOverdrive   NodeType = "overdrive"
	TypeNamModel    NodeType = "nam_model"
	TypeIRConvolver NodeType = "ir_convolver"
)

// AssetRef is an optional filesystem-path reference attached to a node,
// used by nam_model (the model file) and ir_convolver (the IR file).
type AssetRef struct {
	Path string `json:"path"`
}

// NodeSpec is the declarative description of one node, as parsed from a
// ChainSpec's "chain" array.
type NodeSpec struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Category string         `json:"category,omitempty"`
	Enabled  bool           `json:"enabled"`
	Params   map[string]any `json:"params,omitempty"`
	Asset    *AssetRef      `json:"asset,omitempty"`
}

// ChainSpec is the ordered sequence of NodeSpec plus chain-level metadata.
type ChainSpec struct {
	Version    int        `json:"version"`
	SampleRate uint32     `json:"sampleRate,omitempty"`
	Chain      []NodeSpec `json:"chain"`
}

// Clone returns a deep copy of the ChainSpec, safe to retain independently
// of the original (used when the control thread keeps "lastSpec" around
// while a mutable working copy is parsed elsewhere).
func (c ChainSpec) Clone() ChainSpec {
	out := ChainSpec{Version: c.Version, SampleRate: c.SampleRate}
	out.Chain = make([]NodeSpec, len(c.Chain))
	for i, n := range c.Chain {
		nn := n
		if n.Params != nil {
			nn.Params = make(map[string]any, len(n.Params))
			for k, v := range n.Params {
				nn.Params[k] = v
			}
		}
		if n.Asset != nil {
			a := *n.Asset
			nn.Asset = &a
		}
		out.Chain[i] = nn
	}
	return out
}

// numParam returns a float64 param value if present and numeric.
// JSON numbers unmarshal into json.Number when using a decoder configured
// with UseNumber, or into float64 by default; both are accepted here so
// the schema package and the builder can share one helper regardless of
// how the spec's params map was produced.
func numParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func boolParam(params map[string]any, key string) (bool, bool) {
	v, ok := params[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
