package models

// Dimensions carries optional width and height overrides.
type Dimensions struct {
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`
}

// OverrideSet holds the per-execution overrides. A nil field means "leave matching nodes alone".
type OverrideSet struct {
	PromptText *string     `json:"prompt_text,omitempty"`
	AssetRefs  []string    `json:"asset_refs,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

// Asset is a reference asset supplied by the operator or produced by the engine.
type Asset struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"-"`
}

// IntPtr is a convenience for building dimension overrides.
func IntPtr(v int) *int {
	return &v
}

// StringPtr is a convenience for building prompt overrides.
func StringPtr(v string) *string {
	return &v
}
