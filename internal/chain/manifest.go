package chain

// ParamDescriptor documents one node parameter for UI/control-client
// discovery via the list_types operation.
type ParamDescriptor struct {
	Key     string   `json:"key"`
	Kind    string   `json:"type"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Default any      `json:"default"`
}

// AssetDescriptor documents the asset a node type expects, if any.
type AssetDescriptor struct {
	Required bool   `json:"required"`
	Kind     string `json:"kind"`
}

// TypeDescriptor documents one buildable node type.
type TypeDescriptor struct {
	Type     string            `json:"type"`
	Category string            `json:"category"`
	Asset    *AssetDescriptor  `json:"asset,omitempty"`
	Params   []ParamDescriptor `json:"params,omitempty"`
}

func f(v float64) *float64 { return &v }

// TypeManifest returns the stable node-type catalogue served by the
// control server's list_types operation.
func TypeManifest() []TypeDescriptor {
	return []TypeDescriptor{
		{
			Type: string(TypeOverdrive), Category: "fx",
			Params: []ParamDescriptor{
				{Key: "enabled", Kind: "bool", Default: true},
				{Key: "mix", Kind: "float", Min: f(0), Max: f(1), Default: 1.0},
				{Key: "levelDb", Kind: "float", Min: f(-48), Max: f(24), Default: 0.0},
				{Key: "drive", Kind: "float", Min: f(0), Max: f(1), Default: 0.6},
				{Key: "tone", Kind: "float", Min: f(0), Max: f(1), Default: 0.5},
			},
		},
		{
			Type: string(TypeNamModel), Category: "amp",
			Asset: &AssetDescriptor{Required: true, Kind: "nam_model"},
			Params: []ParamDescriptor{
				{Key: "enabled", Kind: "bool", Default: true},
				{Key: "mix", Kind: "float", Min: f(0), Max: f(1), Default: 1.0},
				{Key: "levelDb", Kind: "float", Min: f(-48), Max: f(24), Default: 0.0},
				{Key: "preGainDb", Kind: "float", Min: f(-24), Max: f(24), Default: -12.0},
				{Key: "postGainDb", Kind: "float", Min: f(-24), Max: f(24), Default: 0.0},
				{Key: "inLimit", Kind: "float", Min: f(0.05), Max: f(1.0), Default: 0.90},
				{Key: "softclip", Kind: "bool", Default: true},
				{Key: "softclipTanh", Kind: "bool", Default: false},
				{Key: "useInputLevel", Kind: "bool", Default: true},
			},
		},
		{
			Type: string(TypeIRConvolver), Category: "cab",
			Asset: &AssetDescriptor{Required: true, Kind: "ir_wav"},
			Params: []ParamDescriptor{
				{Key: "enabled", Kind: "bool", Default: true},
				{Key: "mix", Kind: "float", Min: f(0), Max: f(1), Default: 1.0},
				{Key: "levelDb", Kind: "float", Min: f(-48), Max: f(24), Default: 0.0},
				{Key: "gainDb", Kind: "float", Min: f(-24), Max: f(24), Default: 0.0},
				{Key: "targetDb", Kind: "float", Min: f(-24), Max: f(0), Default: -6.0},
				{Key: "maxSamples", Kind: "float", Min: f(0), Max: f(192000), Default: 0.0},
				{Key: "maxMs", Kind: "float", Min: f(0), Max: f(500), Default: 0.0},
			},
		},
		{Type: string(TypeInput), Category: "utility"},
		{Type: string(TypeOutput), Category: "utility"},
	}
}
