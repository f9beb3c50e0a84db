package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"video-transcriber/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
	Select(message string, options []string, defaultValue string) (string, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

func (p *SurveyPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Select{
		Message: message,
		Options: options,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and writes the config file.

The file is YAML unless --config names a .toml path. Every value can
still be overridden per run with transcribe flags.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	return RunSetupWithPrompter(DefaultPrompter, GetConfigPath(), os.Stdout)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string, out OutputWriter) error {
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm(fmt.Sprintf("%s already exists. Overwrite?", configPath), false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Welcome to video-transcriber setup!")
	fmt.Fprintln(out)

	c := config.Default()

	if err := promptFolders(prompter, &c); err != nil {
		return err
	}
	if err := promptTranscription(prompter, &c); err != nil {
		return err
	}
	if err := promptGoogle(prompter, &c); err != nil {
		return err
	}
	if err := promptNotify(prompter, &c); err != nil {
		return err
	}

	if err := config.Save(&c, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
	return nil
}

func promptFolders(prompter Prompter, c *config.Config) error {
	intermediate, err := prompter.Input("Where should downloaded video and extracted audio go?", c.Intermediate.Folder)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if intermediate != "" {
		c.Intermediate.Folder = intermediate
	}

	keep, err := prompter.Confirm("Keep intermediate files after each run?", true)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	c.Intermediate.KeepFiles = &keep

	output, err := prompter.Input("Where should transcripts go?", c.Output.Folder)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if output != "" {
		c.Output.Folder = output
	}

	format, err := prompter.Select("Transcript format?", []string{"txt", "doc"}, c.Output.Format)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	c.Output.Format = format

	return nil
}

func promptTranscription(prompter Prompter, c *config.Config) error {
	audio, err := prompter.Select("Intermediate audio format?", []string{"mp3", "wav"}, c.Intermediate.AudioFileType)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	c.Intermediate.AudioFileType = audio

	quality, err := prompter.Select("Whisper model size?", []string{"base", "medium", "large"}, c.Transcription.Quality)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	c.Transcription.Quality = quality

	workers, err := prompter.Input("How many videos should be processed at once?", strconv.Itoa(c.Transcription.Workers))
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if workers != "" {
		n, err := strconv.Atoi(strings.TrimSpace(workers))
		if err != nil || n < 1 {
			return fmt.Errorf("workers must be a positive number")
		}
		c.Transcription.Workers = n
	}

	return nil
}

func promptGoogle(prompter Prompter, c *config.Config) error {
	useDrive, err := prompter.Confirm("Transcribe videos from Google Drive?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if !useDrive {
		return nil
	}

	credentials, err := prompter.Input("Path to Google credentials file?", c.Google.CredentialsFile)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if credentials != "" {
		c.Google.CredentialsFile = credentials
	}

	recursive, err := prompter.Confirm("Include videos in subfolders?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	c.Google.Recursive = recursive

	return nil
}

func promptNotify(prompter Prompter, c *config.Config) error {
	enabled, err := prompter.Confirm("Email a report after each run?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if !enabled {
		return nil
	}
	c.Notify.Enabled = true

	fromName, err := prompter.Input("Display name for outgoing emails?", "video-transcriber")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	c.Notify.FromName = fromName

	fromAddress, err := prompter.Input("Gmail address to send from?", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if fromAddress == "" {
		return fmt.Errorf("from address is required")
	}
	c.Notify.FromAddress = fromAddress

	c.Notify.Recipients = make(map[string]config.RecipientConfig)
	for {
		add, err := prompter.Confirm("Add a report recipient?", len(c.Notify.To) == 0)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !add {
			break
		}

		key, err := prompter.Input("  Key:", "")
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return fmt.Errorf("key is required")
		}

		recipient, err := promptRecipientWithPrompter(prompter)
		if err != nil {
			return err
		}
		c.Notify.Recipients[key] = recipient
		c.Notify.To = append(c.Notify.To, key)
	}

	if len(c.Notify.To) == 0 {
		return fmt.Errorf("at least one recipient is required when reports are enabled")
	}
	return nil
}

func promptRecipientWithPrompter(prompter Prompter) (config.RecipientConfig, error) {
	name, err := prompter.Input("  Full name:", "")
	if err != nil {
		return config.RecipientConfig{}, fmt.Errorf("prompt cancelled")
	}
	if name == "" {
		return config.RecipientConfig{}, fmt.Errorf("name is required")
	}

	address, err := prompter.Input("  Email:", "")
	if err != nil {
		return config.RecipientConfig{}, fmt.Errorf("prompt cancelled")
	}
	if address == "" {
		return config.RecipientConfig{}, fmt.Errorf("email is required")
	}

	return config.RecipientConfig{
		Name:    name,
		Address: address,
	}, nil
}
