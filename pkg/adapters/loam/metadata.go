package loam

// FlowMetadata is the front matter of a flow document file.
// It uses "mapstructure" tags to match the Frontmatter/YAML keys Loam decodes.
type FlowMetadata struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	// Kind marks files written by this store so stray markdown is skipped on List.
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`
}

// KindFlow is the Kind written to every flow document.
const KindFlow = "flow"
