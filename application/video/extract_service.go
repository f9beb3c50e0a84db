package video

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"video-transcriber/domain/cloud"
	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/video"
)

// Registrar records files the run creates so they can be cleaned up later
type Registrar interface {
	Register(path string)
	RegisterPrefix(dir, namePrefix string)
}

// ExtractService turns a video reference into a local audio artifact
type ExtractService struct {
	converter   video.AudioConverter
	downloader  video.StreamDownloader
	gateway     cloud.Gateway
	fileChecker video.FileChecker
	artifacts   Registrar
	bitrate     string
}

// NewExtractService creates a new ExtractService. downloader and gateway may be
// nil when the run does not use remote or cloud sources.
func NewExtractService(
	converter video.AudioConverter,
	downloader video.StreamDownloader,
	gateway cloud.Gateway,
	fileChecker video.FileChecker,
	artifacts Registrar,
	bitrate string,
) *ExtractService {
	if bitrate == "" {
		bitrate = video.DefaultAudioBitrate
	}
	return &ExtractService{
		converter:   converter,
		downloader:  downloader,
		gateway:     gateway,
		fileChecker: fileChecker,
		artifacts:   artifacts,
		bitrate:     bitrate,
	}
}

// ExtractInput represents the input for an audio extraction operation
type ExtractInput struct {
	Reference video.Reference
	Format    video.AudioFormat
	DestDir   string
	Retain    bool
	// Token is required for cloud references
	Token *cloud.AuthToken
}

// Extract materialises the reference locally if needed and converts it to audio
func (s *ExtractService) Extract(ctx context.Context, input ExtractInput) (*video.AudioArtifact, error) {
	ref := input.Reference
	stem := ref.Stem()

	sourcePath, err := s.materialise(ctx, input, stem)
	if err != nil {
		return nil, pipeline.NewStageFailure(pipeline.KindExtraction, "download", err)
	}

	if !s.fileChecker.Exists(sourcePath) {
		return nil, pipeline.NewStageError(pipeline.KindExtraction, "extract",
			fmt.Errorf("source video does not exist: %s", sourcePath))
	}

	req, err := video.NewAudioExtractionRequest(sourcePath, input.Format, s.bitrate)
	if err != nil {
		return nil, pipeline.NewStageError(pipeline.KindExtraction, "extract", err)
	}

	outputPath := req.OutputPath(input.DestDir, stem)
	if filepath.Clean(outputPath) == filepath.Clean(sourcePath) {
		// a local .mp3/.wav input with the same stem would be overwritten in place
		outputPath = req.OutputPath(input.DestDir, stem+".audio")
	}
	s.artifacts.Register(outputPath)

	if err := s.converter.Convert(ctx, req, outputPath); err != nil {
		return nil, pipeline.NewStageFailure(pipeline.KindExtraction, "extract", err)
	}

	return &video.AudioArtifact{
		Path:      outputPath,
		Format:    input.Format,
		Reference: ref,
		Retain:    input.Retain,
	}, nil
}

func (s *ExtractService) materialise(ctx context.Context, input ExtractInput, stem string) (string, error) {
	ref := input.Reference

	switch ref.Kind {
	case video.KindLocal:
		return ref.ID, nil

	case video.KindRemoteStream:
		if s.downloader == nil {
			return "", fmt.Errorf("no stream downloader configured")
		}
		s.artifacts.RegisterPrefix(input.DestDir, stem+".source.")
		return s.downloader.Download(ctx, ref.ID, input.DestDir, stem+".source")

	case video.KindCloud:
		if s.gateway == nil {
			return "", fmt.Errorf("no cloud gateway configured")
		}
		destPath := filepath.Join(input.DestDir, stem+".source"+sourceExtension(ref))
		s.artifacts.Register(destPath)
		if err := s.gateway.Download(ctx, input.Token, ref, destPath); err != nil {
			return "", err
		}
		return destPath, nil
	}

	return "", fmt.Errorf("unsupported source kind %q", ref.Kind)
}

// sourceExtension keeps the provider's extension so ffmpeg can probe the container
func sourceExtension(ref video.Reference) string {
	if ref.Ext != "" {
		return strings.ToLower(ref.Ext)
	}
	if ref.MimeType != "" {
		if exts, err := mime.ExtensionsByType(ref.MimeType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ".video"
}
