package models

// CodeInfo is the resolved source location of a tapped component.
type CodeInfo struct {
	RelativePath  string `json:"relativePath"`
	LineNumber    int    `json:"lineNumber"`
	ColumnNumber  int    `json:"columnNumber"`
	ComponentName string `json:"componentName"`
}

// ComponentDetection is the resolver's ephemeral result for one tap. It is
// created per tap, consumed immediately to build or update an annotation, then
// discarded; it is never persisted.
type ComponentDetection struct {
	// Success is false only when the host runtime's introspection hook is
	// entirely unavailable. Every other failure degrades instead.
	Success  bool         `json:"success"`
	CodeInfo *CodeInfo    `json:"codeInfo,omitempty"`
	Bounds   *BoundingBox `json:"bounds,omitempty"`

	// SourceUnavailable marks a placeholder result: the detection succeeded
	// structurally but source attribution failed.
	SourceUnavailable bool `json:"sourceUnavailable,omitempty"`

	// Structural context gathered along the way.
	ParentComponents []string `json:"parentComponents,omitempty"` // root-first
	FullPath         string   `json:"fullPath,omitempty"`
	NearbyElements   string   `json:"nearbyElements,omitempty"`
	NearbyText       string   `json:"nearbyText,omitempty"`
	Accessibility    string   `json:"accessibility,omitempty"`
	TestID           string   `json:"testID,omitempty"`
	IsFixed          bool     `json:"isFixed,omitempty"`
	ComponentType    string   `json:"componentType,omitempty"`
}
