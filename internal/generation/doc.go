// Package generation defines the content generation boundary of the agent.
//
// The queue consumes a Pipeline: a producer of lazy, finite, non-restartable
// streams of progress updates that terminate in a completed, failed, or
// cancelled status. The concrete SongPipeline drives an external song backend
// through the SongClient capability interface and fills missing song metadata
// through a MetadataGenerator. Both collaborators are injected at
// construction, so tests and offline runs swap in fixtures without any
// environment branching inside the pipeline.
package generation
