package video

import "context"

// AudioConverter converts a local video file into an audio container.
// This is a port implemented by the ffmpeg adapter.
type AudioConverter interface {
	// Convert writes the audio track of req.SourceVideoPath to outputPath
	Convert(ctx context.Context, req *AudioExtractionRequest, outputPath string) error
}

// StreamDownloader materialises a remote stream locally
type StreamDownloader interface {
	// Download fetches the stream for videoID into destDir using stem as the
	// base file name and returns the path of the file it wrote
	Download(ctx context.Context, videoID, destDir, stem string) (string, error)
}

// Segmenter splits an audio file into fixed-length chunks
type Segmenter interface {
	// Split writes chunks next to pattern (a printf-style path with one %03d verb,
	// see ChunkPattern) and returns their paths in playback order
	Split(ctx context.Context, sourcePath string, length Timestamp, pattern string) ([]string, error)
}

// FileChecker defines the interface for checking file existence
type FileChecker interface {
	// Exists returns true if the file exists
	Exists(path string) bool
}

// Lister enumerates recognised video files below a directory
type Lister interface {
	// ListVideos returns paths relative to root in lexicographic order
	ListVideos(root string) ([]string, error)
}
