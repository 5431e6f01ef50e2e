package ast

// RegistryEntry routes events to a pipeline when its When block matches
// (spec §3, §4.7 step 2).
type RegistryEntry struct {
	When       WhenBlock
	PipelineID string
}

// Registry is the ordered table of event-type-to-pipeline routes.
type Registry struct {
	Entries []RegistryEntry
}
