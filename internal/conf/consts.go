// conf/consts.go hard coded constants
package conf

const (
	// DefaultChunkSeconds is used when the chunk_seconds setting is unset
	// or non-positive (spec.md §4.C's "C").
	DefaultChunkSeconds = 60.0

	// ChunkOverlapSeconds is the fixed overlap between consecutive audio
	// chunks handed to the transcriber, so boundary words are not lost.
	ChunkOverlapSeconds = 5.0

	// MaxChunksPerEntry caps chunk fan-out for a single entry as a safety
	// ceiling against pathologically long source recordings.
	MaxChunksPerEntry = 100

	// ConfigFileName is the on-disk name of the settings file within a
	// config directory.
	ConfigFileName = "config.yaml"
)
