package chain

import (
	"fmt"
)

// ValidationError reports a malformed or invariant-violating chain
// description. It is never surfaced to the audio thread.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ParseChainJSON parses one decoded JSON object into a ChainSpec. It
// accepts the canonical v1 shape (object with version, optional
// sampleRate, and a chain array) and the legacy single-amp/single-cab
// shape, auto-converting the latter into a four-node canonical chain.
// ParseChainJSON performs no I/O and does not validate invariants beyond
// field shape; call ValidateChainSpec on the result.
func ParseChainJSON(raw map[string]any) (*ChainSpec, error) {
	if raw == nil {
		return nil, validationErrorf("top-level JSON must be an object")
	}

	if _, hasVersion := raw["version"]; hasVersion {
		if chainVal, ok := raw["chain"]; ok {
			if _, isArray := chainVal.([]any); isArray {
				return parseCanonicalV1(raw)
			}
		}
	}

	return parseLegacy(raw)
}

func parseCanonicalV1(raw map[string]any) (*ChainSpec, error) {
	spec := &ChainSpec{}

	versionF, ok := numParam(raw, "version")
	if !ok {
		return nil, validationErrorf("missing/invalid 'version' (must be integer)")
	}
	spec.Version = int(versionF)
	if spec.Version != 1 {
		return nil, validationErrorf("unsupported chain version %d", spec.Version)
	}

	if srRaw, ok := raw["sampleRate"]; ok {
		sr, ok := numParam(map[string]any{"sampleRate": srRaw}, "sampleRate")
		if !ok {
			return nil, validationErrorf("'sampleRate' must be a number")
		}
		if sr <= 0 {
			return nil, validationErrorf("'sampleRate' must be > 0")
		}
		spec.SampleRate = uint32(sr)
	}

	chainArr, ok := raw["chain"].([]any)
	if !ok {
		return nil, validationErrorf("missing/invalid 'chain' (must be array)")
	}

	spec.Chain = make([]NodeSpec, 0, len(chainArr))
	for _, elem := range chainArr {
		nodeMap, ok := elem.(map[string]any)
		if !ok {
			return nil, validationErrorf("each chain element must be an object")
		}
		n, err := parseNode(nodeMap)
		if err != nil {
			return nil, err
		}
		spec.Chain = append(spec.Chain, *n)
	}

	return spec, nil
}

func parseNode(jn map[string]any) (*NodeSpec, error) {
	n := NodeSpec{Enabled: true}

	id, ok := jn["id"].(string)
	if !ok || id == "" {
		return nil, validationErrorf("node missing required non-empty string field 'id'")
	}
	n.ID = id

	typ, ok := jn["type"].(string)
	if !ok || typ == "" {
		return nil, validationErrorf("node missing required non-empty string field 'type'")
	}
	n.Type = typ

	if v, ok := jn["category"]; ok {
		cat, ok := v.(string)
		if !ok {
			return nil, validationErrorf("node field 'category' must be a string")
		}
		n.Category = cat
	}

	if v, ok := jn["enabled"]; ok {
		en, ok := v.(bool)
		if !ok {
			return nil, validationErrorf("node field 'enabled' must be a boolean")
		}
		n.Enabled = en
	}

	if v, ok := jn["params"]; ok {
		params, ok := v.(map[string]any)
		if !ok {
			return nil, validationErrorf("node field 'params' must be an object")
		}
		n.Params = params
	}

	if v, ok := jn["asset"]; ok {
		assetMap, ok := v.(map[string]any)
		if !ok {
			return nil, validationErrorf("node field 'asset' must be an object")
		}
		path, ok := assetMap["path"].(string)
		if !ok {
			return nil, validationErrorf("node asset requires string field 'path'")
		}
		n.Asset = &AssetRef{Path: path}
	}

	return &n, nil
}

// parseLegacy converts the legacy single-amp/single-cab shape
// ({audio:{inputTrimDb,sampleRate}, chain:{namModelPath,irPath}}) into a
// four-node canonical chain: input, "amp1" nam_model, "cab1" ir_convolver,
// output.
func parseLegacy(raw map[string]any) (*ChainSpec, error) {
	spec := &ChainSpec{Version: 1}

	input := NodeSpec{ID: "input", Type: string(TypeInput), Category: "utility", Enabled: true, Params: map[string]any{}}
	amp := NodeSpec{ID: "amp1", Type: string(TypeNamModel), Category: "amp", Enabled: true, Params: map[string]any{}}
	cab := NodeSpec{ID: "cab1", Type: string(TypeIRConvolver), Category: "cab", Enabled: true, Params: map[string]any{}}
	output := NodeSpec{ID: "output", Type: string(TypeOutput), Category: "utility", Enabled: true, Params: map[string]any{}}

	if audioVal, ok := raw["audio"].(map[string]any); ok {
		if sr, ok := numParam(audioVal, "sampleRate"); ok {
			spec.SampleRate = uint32(sr)
		}
		if trim, ok := numParam(audioVal, "inputTrimDb"); ok {
			input.Params["inputTrimDb"] = trim
		} else if _, present := audioVal["inputTrimDb"]; present {
			return nil, validationErrorf("legacy audio.inputTrimDb must be a number")
		}
	}

	if chainVal, ok := raw["chain"].(map[string]any); ok {
		if v, present := chainVal["namModelPath"]; present {
			path, ok := v.(string)
			if !ok {
				return nil, validationErrorf("legacy chain.namModelPath must be a string")
			}
			amp.Asset = &AssetRef{Path: path}
		}
		if v, present := chainVal["irPath"]; present {
			path, ok := v.(string)
			if !ok {
				return nil, validationErrorf("legacy chain.irPath must be a string")
			}
			cab.Asset = &AssetRef{Path: path}
		}
	}

	spec.Chain = []NodeSpec{input, amp, cab, output}
	return spec, nil
}

// ValidateChainSpec enforces the ChainSpec invariants: version==1,
// length>=2, first node type=input, last type=output, at least one
// nam_model and one ir_convolver with the first nam_model occurring
// before the first ir_convolver, and all node ids unique and non-empty.
// It returns the same spec on success so callers can chain calls.
func ValidateChainSpec(spec ChainSpec) (*ChainSpec, error) {
	if spec.Version != 1 {
		return nil, validationErrorf("only chain version 1 is supported, got %d", spec.Version)
	}
	if len(spec.Chain) < 2 {
		return nil, validationErrorf("chain must contain at least input and output")
	}

	seen := make(map[string]struct{}, len(spec.Chain))
	for _, n := range spec.Chain {
		if n.ID == "" {
			return nil, validationErrorf("node id must be non-empty")
		}
		if _, dup := seen[n.ID]; dup {
			return nil, validationErrorf("duplicate node id: %s", n.ID)
		}
		seen[n.ID] = struct{}{}
		if n.Type == "" {
			return nil, validationErrorf("node type must be non-empty")
		}
	}

	if spec.Chain[0].Type != string(TypeInput) {
		return nil, validationErrorf("first node must be type 'input'")
	}
	if spec.Chain[len(spec.Chain)-1].Type != string(TypeOutput) {
		return nil, validationErrorf("last node must be type 'output'")
	}

	ampIdx, cabIdx := -1, -1
	for i, n := range spec.Chain {
		if n.Type == string(TypeNamModel) && ampIdx < 0 {
			ampIdx = i
		}
		if n.Type == string(TypeIRConvolver) && cabIdx < 0 {
			cabIdx = i
		}
	}
	if ampIdx < 0 {
		return nil, validationErrorf("chain must contain a 'nam_model' node")
	}
	if cabIdx < 0 {
		return nil, validationErrorf("chain must contain an 'ir_convolver' node")
	}
	if ampIdx >= cabIdx {
		return nil, validationErrorf("invalid ordering: 'nam_model' must appear before 'ir_convolver'")
	}

	out := spec
	return &out, nil
}

// ChainSpecToJSON returns the canonical JSON-serialisable representation
// of a ChainSpec, matching the wire/disk shape from §6.
func ChainSpecToJSON(spec ChainSpec) map[string]any {
	chainArr := make([]any, 0, len(spec.Chain))
	for _, n := range spec.Chain {
		jn := map[string]any{
			"id":      n.ID,
			"type":    n.Type,
			"enabled": n.Enabled,
		}
		if n.Category != "" {
			jn["category"] = n.Category
		}
		if n.Params != nil {
			jn["params"] = n.Params
		} else {
			jn["params"] = map[string]any{}
		}
		if n.Asset != nil {
			jn["asset"] = map[string]any{"path": n.Asset.Path}
		}
		chainArr = append(chainArr, jn)
	}
	return map[string]any{
		"version":    spec.Version,
		"sampleRate": spec.SampleRate,
		"chain":      chainArr,
	}
}
