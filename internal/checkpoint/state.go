package checkpoint

// MetadataVersion is the current checkpoint metadata format version.
const MetadataVersion = 1

// Metadata holds checkpoint metadata used to validate a checkpoint
// against the pipeline attempting to resume from it.
type Metadata struct {
	Version      int               `json:"version"`
	PipelineName string            `json:"pipeline_name"`
	PipelineHash string            `json:"pipeline_hash"`
	CreatedAt    string            `json:"created_at"`
	Stages       []string          `json:"stages"`
	Checksums    map[string]string `json:"checksums,omitempty"`
}
