package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	appnotification "video-transcriber/application/notification"
	appprocess "video-transcriber/application/process"
	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/video"
	"video-transcriber/infrastructure/config"
	"video-transcriber/infrastructure/document"
	"video-transcriber/infrastructure/drive"
	"video-transcriber/infrastructure/ffmpeg"
	"video-transcriber/infrastructure/filesystem"
	"video-transcriber/infrastructure/gmail"
	"video-transcriber/infrastructure/googleauth"
	"video-transcriber/infrastructure/ledger"
	"video-transcriber/infrastructure/s3"
	"video-transcriber/infrastructure/whisper"
	"video-transcriber/infrastructure/ytdlp"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	transcribeSourceType    string
	transcribeSourceFormat  string
	transcribeSourceID      string
	transcribeIntermediate  string
	transcribeAudioFileType string
	transcribeAudioBitrate  string
	transcribeKeepFiles     bool
	transcribeModel         string
	transcribeQuality       string
	transcribeOutputFolder  string
	transcribeOutputFormat  string
	transcribeWorkers       int
	transcribeChunkLength   string
	transcribeTimeout       time.Duration
	transcribeRecursive     bool
	transcribeNotify        bool
	transcribeRecordHistory bool
)

// ErrRunFailed is returned when at least one video did not reach WRITTEN
var ErrRunFailed = errors.New("one or more videos failed")

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe one or more videos to text",
	Long: `Transcribe videos through the complete workflow:
1. Resolve the source into video references
2. Download the video if it is remote
3. Extract the audio track
4. Transcribe the audio, in chunks for long recordings
5. Write one transcript per video to the output folder
6. Clean up intermediate files unless they are kept

Flags override values from the config file. Videos are processed
independently: one failure does not stop the others.

Example:
  video-transcriber transcribe --source-type youtube --source-format one --source-id dQw4w9WgXcQ

  video-transcriber transcribe \
    --source-type drive \
    --source-format multiple \
    --source-id 1AbCdEfGhIjKlMnOp \
    --transcription-quality medium \
    --output-format doc \
    --workers 2`,
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
	f := transcribeCmd.Flags()
	f.StringVar(&transcribeSourceType, "source-type", "", "Source type: youtube, drive, or local")
	f.StringVar(&transcribeSourceFormat, "source-format", "", "Source format: one or multiple")
	f.StringVar(&transcribeSourceID, "source-id", "", "Video id or URL, Drive file or folder id, or local path")
	f.StringVar(&transcribeIntermediate, "intermediate-folder", "", "Folder for downloaded video and extracted audio (default temp)")
	f.StringVar(&transcribeAudioFileType, "audio-file-type", "", "Intermediate audio format: mp3 or wav (default mp3)")
	f.StringVar(&transcribeAudioBitrate, "audio-bitrate", "", "MP3 bitrate (default 192k)")
	f.BoolVar(&transcribeKeepFiles, "keep-intermediate-files", true, "Keep downloaded video and extracted audio after the run")
	f.StringVar(&transcribeModel, "transcription-model", "", "Speech-to-text model family (default whisper)")
	f.StringVar(&transcribeQuality, "transcription-quality", "", "Model size: base, medium, or large (default base)")
	f.StringVar(&transcribeOutputFolder, "output-folder", "", "Folder for transcripts (default output)")
	f.StringVar(&transcribeOutputFormat, "output-format", "", "Transcript format: txt or doc (default txt)")
	f.IntVar(&transcribeWorkers, "workers", 0, "Videos processed concurrently (default 1)")
	f.StringVar(&transcribeChunkLength, "chunk-length", "", "Split audio longer than this before transcribing, HH:MM:SS (default 00:20:00)")
	f.DurationVar(&transcribeTimeout, "timeout", 0, "Per-video transcription timeout, e.g. 45m (default none)")
	f.BoolVar(&transcribeRecursive, "recursive", false, "Include videos in Drive subfolders")
	f.BoolVar(&transcribeNotify, "notify", false, "Email the run report to the configured recipients")
	f.BoolVar(&transcribeRecordHistory, "history", false, "Record the run in the history database")
}

// mergeFlags overlays explicitly set flags on the config file values
func mergeFlags(cmd *cobra.Command, base pipeline.Options) pipeline.Options {
	opts := base
	changed := cmd.Flags().Changed

	if changed("source-type") {
		opts.SourceType = transcribeSourceType
	}
	if changed("source-format") {
		opts.SourceFormat = transcribeSourceFormat
	}
	if changed("source-id") {
		opts.SourceID = transcribeSourceID
	}
	if changed("intermediate-folder") {
		opts.IntermediateFolder = transcribeIntermediate
	}
	if changed("audio-file-type") {
		opts.AudioFileType = transcribeAudioFileType
	}
	if changed("audio-bitrate") {
		opts.AudioBitrate = transcribeAudioBitrate
	}
	if changed("keep-intermediate-files") {
		keep := transcribeKeepFiles
		opts.KeepIntermediateFiles = &keep
	}
	if changed("transcription-model") {
		opts.TranscriptionModel = transcribeModel
	}
	if changed("transcription-quality") {
		opts.TranscriptionQuality = transcribeQuality
	}
	if changed("output-folder") {
		opts.OutputFolder = transcribeOutputFolder
	}
	if changed("output-format") {
		opts.OutputFormat = transcribeOutputFormat
	}
	if changed("workers") {
		opts.Workers = transcribeWorkers
	}
	if changed("chunk-length") {
		opts.ChunkLength = transcribeChunkLength
	}
	if changed("timeout") {
		opts.TranscriptionTimeout = transcribeTimeout
	}
	return opts
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	fileCfg, err := requireConfig()
	if err != nil {
		return err
	}
	if transcribeRecursive {
		fileCfg.Google.Recursive = true
	}
	if cmd.Flags().Changed("notify") {
		fileCfg.Notify.Enabled = transcribeNotify
	}
	if cmd.Flags().Changed("history") {
		fileCfg.History.Enabled = transcribeRecordHistory
	}

	base, err := fileCfg.ToOptions()
	if err != nil {
		return err
	}
	runCfg, err := pipeline.NewConfiguration(mergeFlags(cmd, base))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	deps, closeDeps, err := buildTranscribeDependencies(ctx, fileCfg, runCfg)
	if err != nil {
		return err
	}
	defer closeDeps()

	_, err = RunTranscribeWithDependencies(ctx, runCfg, deps, os.Stdout)
	return err
}

// Verifier is implemented by adapters that shell out to an external tool
type Verifier interface {
	VerifyInstalled(ctx context.Context) error
}

// TranscribeDependencies are the adapters and options a transcribe run needs
type TranscribeDependencies struct {
	Ports     appprocess.Ports
	Options   []appprocess.Option
	Verifiers map[string]Verifier
}

// buildTranscribeDependencies creates the production adapters for runCfg.
// The returned func releases any opened resources.
func buildTranscribeDependencies(ctx context.Context, fileCfg *config.Config, runCfg pipeline.Configuration) (TranscribeDependencies, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	converter := ffmpeg.NewConverter(ffmpeg.WithFFmpegPath(fileCfg.Tools.FFmpeg))
	engine := whisper.NewEngine(
		whisper.WithBinary(fileCfg.Tools.Whisper),
		whisper.WithDevice(fileCfg.Transcription.Device),
	)

	deps := TranscribeDependencies{
		Ports: appprocess.Ports{
			Lister:      filesystem.NewLister(),
			Converter:   converter,
			Segmenter:   ffmpeg.NewSegmenter(ffmpeg.WithFFmpegPath(fileCfg.Tools.FFmpeg)),
			FileChecker: filesystem.NewChecker(),
			Engine:      engine,
			Encoder:     document.NewWordEncoder(),
		},
		Options: []appprocess.Option{
			appprocess.WithLocker(filesystem.NewLocker()),
			appprocess.WithLogger(log),
		},
		Verifiers: map[string]Verifier{
			"ffmpeg":  converter,
			"whisper": engine,
		},
	}

	switch runCfg.SourceKind {
	case video.KindRemoteStream:
		downloader := ytdlp.NewDownloader(ytdlp.WithBinary(fileCfg.Tools.YtDlp))
		deps.Ports.Downloader = downloader
		deps.Verifiers["yt-dlp"] = downloader
	case video.KindCloud:
		deps.Ports.Gateway = drive.NewClient(
			googleauth.Config{
				CredentialsFile: fileCfg.Google.CredentialsFile,
				TokenFile:       fileCfg.Google.TokenFile,
			},
			drive.WithRecursive(fileCfg.Google.Recursive),
			drive.WithRateLimit(fileCfg.Google.RequestsPerSecond),
			drive.WithDownloadRetries(fileCfg.Google.DownloadRetries, time.Second),
			drive.WithLogger(log),
		)
	}

	if fileCfg.Publish.Enabled() {
		publisher, err := s3.NewPublisher(ctx, s3.Config{
			Bucket:    fileCfg.Publish.Bucket,
			Region:    fileCfg.Publish.Region,
			Endpoint:  fileCfg.Publish.Endpoint,
			Prefix:    fileCfg.Publish.Prefix,
			AccessKey: fileCfg.Publish.AccessKey,
			SecretKey: fileCfg.Publish.SecretKey,
			PathStyle: fileCfg.Publish.PathStyle,
		})
		if err != nil {
			return deps, closeAll, fmt.Errorf("failed to create publisher: %w", err)
		}
		deps.Ports.Publisher = publisher
	}

	if fileCfg.History.Enabled {
		store, err := ledger.Open(fileCfg.History.Database)
		if err != nil {
			return deps, closeAll, fmt.Errorf("failed to open history database: %w", err)
		}
		closers = append(closers, func() { _ = store.Close() })
		deps.Options = append(deps.Options, appprocess.WithRecorder(store))
	}

	if fileCfg.Notify.Enabled {
		notifier, err := buildNotifier(ctx, fileCfg)
		if err != nil {
			return deps, closeAll, err
		}
		deps.Options = append(deps.Options, appprocess.WithNotifier(notifier))
	}

	return deps, closeAll, nil
}

func buildNotifier(ctx context.Context, fileCfg *config.Config) (*appnotification.Service, error) {
	lookup := config.NewRecipientLookup(fileCfg)
	to, err := lookup.DefaultTo()
	if err != nil {
		return nil, fmt.Errorf("notify is enabled but no recipients are configured: %w\n%s",
			err, "Run 'video-transcriber config add recipient <key> <name> <email>' and 'video-transcriber config set to <key>'")
	}

	svc, err := gmail.NewGoogleGmailService(ctx, googleauth.Config{
		CredentialsFile: fileCfg.Google.CredentialsFile,
		TokenFile:       fileCfg.Notify.TokenFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail client: %w", err)
	}

	from := lookup.Sender()
	client := gmail.NewClient(from, gmail.WithGmailService(svc))
	return appnotification.NewService(client, to, lookup.DefaultCC(), from.Name), nil
}

// RunTranscribeWithDependencies runs a transcription with injected dependencies (for testing)
func RunTranscribeWithDependencies(
	ctx context.Context,
	runCfg pipeline.Configuration,
	deps TranscribeDependencies,
	output io.Writer,
) (*pipeline.Report, error) {
	for _, name := range []string{"ffmpeg", "yt-dlp", "whisper"} {
		verifier, ok := deps.Verifiers[name]
		if !ok {
			continue
		}
		verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := verifier.VerifyInstalled(verifyCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%s verification failed: %w", name, err)
		}
	}

	service := appprocess.NewService(deps.Ports, output, deps.Options...)

	report, err := service.Process(ctx, runCfg)
	if report != nil {
		PrintReport(output, report)
	}
	if err != nil {
		return report, err
	}
	if !report.Success() {
		return report, fmt.Errorf("%w: %d of %d", ErrRunFailed, report.Failed(), len(report.Outcomes))
	}
	return report, nil
}

// PrintReport renders the per-video outcomes as a table
func PrintReport(output io.Writer, report *pipeline.Report) {
	if len(report.Outcomes) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(output)
	if isTerminal(output) {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleLight)
	}
	t.AppendHeader(table.Row{"#", "Video", "State", "Output / Error", "Time"})
	for i, o := range report.Outcomes {
		detail := o.OutputPath
		if !o.Succeeded() {
			detail = fmt.Sprintf("%s: %s", o.Kind, o.Cause())
		}
		t.AppendRow(table.Row{i + 1, o.Reference.String(), o.State, detail, o.Duration.Round(time.Second)})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d written, %d failed", report.Written(), report.Failed()), report.Duration().Round(time.Second)})
	t.Render()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
