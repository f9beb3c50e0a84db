package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	appartifact "video-transcriber/application/artifact"
	appvideo "video-transcriber/application/video"
	"video-transcriber/domain/video"
	"video-transcriber/infrastructure/ffmpeg"
	"video-transcriber/infrastructure/filesystem"

	"github.com/spf13/cobra"
)

var (
	extractSourcePath string
	extractOutputDir  string
	extractFormat     string
	extractBitrate    string
)

var extractAudioCmd = &cobra.Command{
	Use:   "extract-audio",
	Short: "Extract audio from a local video file",
	Long: `Extract the audio track from a local video file without transcribing it.

The output is written to the intermediate folder (or --output) using the
video's file name with an .mp3 or .wav extension.

Example:
  video-transcriber extract-audio --source "lecture 01.mp4"
  video-transcriber extract-audio --source /path/to/video.mkv --format wav --output ./audio`,
	RunE: runExtractAudio,
}

func init() {
	rootCmd.AddCommand(extractAudioCmd)
	extractAudioCmd.Flags().StringVar(&extractSourcePath, "source", "", "Path to source video file (required)")
	extractAudioCmd.Flags().StringVar(&extractOutputDir, "output", "", "Output folder (default from config or temp)")
	extractAudioCmd.Flags().StringVar(&extractFormat, "format", "", "Audio format: mp3 or wav (default from config or mp3)")
	extractAudioCmd.Flags().StringVar(&extractBitrate, "bitrate", "", "Audio bitrate (default from config or 192k)")
	extractAudioCmd.MarkFlagRequired("source")
}

func runExtractAudio(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	outputDir := extractOutputDir
	if outputDir == "" {
		outputDir = cfg.Intermediate.Folder
	}

	formatName := extractFormat
	if formatName == "" {
		formatName = cfg.Intermediate.AudioFileType
	}
	format, err := video.ParseAudioFormat(formatName)
	if err != nil {
		return err
	}

	bitrate := extractBitrate
	if bitrate == "" {
		bitrate = cfg.Intermediate.AudioBitrate
	}

	converter := ffmpeg.NewConverter(ffmpeg.WithFFmpegPath(cfg.Tools.FFmpeg))
	fileChecker := filesystem.NewChecker()

	return RunExtractAudioWithDependencies(
		cmd.Context(),
		converter,
		fileChecker,
		outputDir,
		format,
		bitrate,
		extractSourcePath,
		os.Stdout,
	)
}

// RunExtractAudioWithDependencies runs the extract-audio command with injected dependencies (for testing)
func RunExtractAudioWithDependencies(
	ctx context.Context,
	converter video.AudioConverter,
	fileChecker video.FileChecker,
	outputDir string,
	format video.AudioFormat,
	bitrate string,
	sourcePath string,
	output OutputWriter,
) error {
	if verifiable, ok := converter.(Verifier); ok {
		verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := verifiable.VerifyInstalled(verifyCtx); err != nil {
			return fmt.Errorf("ffmpeg verification failed: %w", err)
		}
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	// a standalone extraction always keeps its output
	artifacts := appartifact.NewManager(true, appartifact.WithLogger(log))
	service := appvideo.NewExtractService(converter, nil, nil, fileChecker, artifacts, bitrate)

	base := filepath.Base(sourcePath)
	ref := video.Reference{
		Kind: video.KindLocal,
		ID:   sourcePath,
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
	}

	fmt.Fprintf(output, "Extracting %s audio from %s...\n", format, sourcePath)

	result, err := service.Extract(ctx, appvideo.ExtractInput{
		Reference: ref,
		Format:    format,
		DestDir:   outputDir,
		Retain:    true,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "Successfully created: %s\n", result.Path)
	return nil
}
