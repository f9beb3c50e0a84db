package cmd

import (
	"fmt"
	"os"
	"strings"

	"video-transcriber/infrastructure/config"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// DefaultOutput is the default output writer for config commands
var DefaultOutput OutputWriter = os.Stdout

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the report email address book",
	Long: `Manage the recipients, CC addresses, and sender used for run-report emails.

Examples:
  video-transcriber config list recipients
  video-transcriber config add recipient --key jane --name "Jane Doe" --email jane@example.com
  video-transcriber config set to jane
  video-transcriber config remove cc mary`,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configRemoveCmd)
	configCmd.AddCommand(configSetCmd)
}

// loadConfigForEdit returns the loaded config, or defaults when no file exists yet
func loadConfigForEdit() (*config.Config, error) {
	if cfgLoadErr != nil {
		return nil, cfgLoadErr
	}
	if cfg == nil {
		c := config.Default()
		return &c, nil
	}
	return cfg, nil
}

// --- ADD command ---

var (
	addKey   string
	addName  string
	addEmail string
)

var configAddCmd = &cobra.Command{
	Use:   "add [recipient|cc]",
	Short: "Add an address book entry",
	Long: `Add a recipient or default CC to the configuration.

CC entries are keyed by the first word of their name.

Examples:
  video-transcriber config add recipient --key jane --name "Jane Doe" --email "jane@example.com"
  video-transcriber config add cc --name "Mary Jones" --email "mary@example.com"`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigAdd,
}

func init() {
	configAddCmd.Flags().StringVar(&addKey, "key", "", "Unique key for the entry (required for recipient)")
	configAddCmd.Flags().StringVar(&addName, "name", "", "Display name (required)")
	configAddCmd.Flags().StringVar(&addEmail, "email", "", "Email address (required)")
	configAddCmd.MarkFlagRequired("name")
	configAddCmd.MarkFlagRequired("email")
}

func runConfigAdd(cmd *cobra.Command, args []string) error {
	c, err := loadConfigForEdit()
	if err != nil {
		return err
	}
	return RunConfigAddWithDependencies(c, GetConfigPath(), args[0], addKey, addName, addEmail, DefaultOutput)
}

// RunConfigAddWithDependencies runs the add command with injected dependencies
func RunConfigAddWithDependencies(cfg *config.Config, configPath, entityType, key, name, email string, out OutputWriter) error {
	mgr := config.NewManager(cfg, configPath)

	switch entityType {
	case "recipient":
		if key == "" {
			return fmt.Errorf("--key is required for recipients")
		}
		if err := mgr.AddRecipient(key, name, email); err != nil {
			return err
		}
		fmt.Fprintf(out, "Added recipient %q: %s <%s>\n", strings.ToLower(key), name, email)

	case "cc":
		if err := mgr.AddCC(name, email); err != nil {
			return err
		}
		fmt.Fprintf(out, "Added CC: %s <%s>\n", name, email)

	default:
		return fmt.Errorf("unknown entity type %q. Use recipient or cc", entityType)
	}

	return nil
}

// --- LIST command ---

var configListCmd = &cobra.Command{
	Use:   "list [recipients|ccs|sender]",
	Short: "List address book entries",
	Long: `List recipients, default CCs, or the configured sender.

Recipients marked with * receive every report.

Examples:
  video-transcriber config list recipients
  video-transcriber config list ccs
  video-transcriber config list sender`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigList,
}

func runConfigList(cmd *cobra.Command, args []string) error {
	c, err := loadConfigForEdit()
	if err != nil {
		return err
	}
	return RunConfigListWithDependencies(c, GetConfigPath(), args[0], DefaultOutput)
}

// RunConfigListWithDependencies runs the list command with injected dependencies
func RunConfigListWithDependencies(cfg *config.Config, configPath, entityType string, out OutputWriter) error {
	mgr := config.NewManager(cfg, configPath)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)

	switch entityType {
	case "recipients":
		recipients := mgr.ListRecipients()
		if len(recipients) == 0 {
			fmt.Fprintln(out, "No recipients configured.")
			return nil
		}
		defaults := make(map[string]bool, len(cfg.Notify.To))
		for _, k := range cfg.Notify.To {
			defaults[k] = true
		}
		t.AppendHeader(table.Row{"Key", "Name", "Email", "To"})
		for _, r := range recipients {
			mark := ""
			if defaults[r.Key] {
				mark = "*"
			}
			t.AppendRow(table.Row{r.Key, r.Name, r.Address, mark})
		}

	case "ccs":
		ccs := mgr.ListCCs()
		if len(ccs) == 0 {
			fmt.Fprintln(out, "No CCs configured.")
			return nil
		}
		t.AppendHeader(table.Row{"Key", "Name", "Email"})
		for _, c := range ccs {
			t.AppendRow(table.Row{c.Key, c.Name, c.Address})
		}

	case "sender":
		if cfg.Notify.FromAddress == "" {
			fmt.Fprintln(out, "No sender configured.")
			return nil
		}
		t.AppendHeader(table.Row{"Name", "Email"})
		t.AppendRow(table.Row{cfg.Notify.FromName, cfg.Notify.FromAddress})

	default:
		return fmt.Errorf("unknown entity type %q. Use recipients, ccs, or sender", entityType)
	}

	t.Render()
	return nil
}

// --- REMOVE command ---

var configRemoveCmd = &cobra.Command{
	Use:   "remove [recipient|cc] <key>",
	Short: "Remove an address book entry",
	Long: `Remove a recipient or default CC from the configuration.

Examples:
  video-transcriber config remove recipient jane
  video-transcriber config remove cc mary`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigRemove,
}

func runConfigRemove(cmd *cobra.Command, args []string) error {
	c, err := loadConfigForEdit()
	if err != nil {
		return err
	}
	return RunConfigRemoveWithDependencies(c, GetConfigPath(), args[0], args[1], DefaultOutput)
}

// RunConfigRemoveWithDependencies runs the remove command with injected dependencies
func RunConfigRemoveWithDependencies(cfg *config.Config, configPath, entityType, key string, out OutputWriter) error {
	mgr := config.NewManager(cfg, configPath)

	switch entityType {
	case "recipient":
		if err := mgr.RemoveRecipient(key); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed recipient %q\n", key)

	case "cc":
		if err := mgr.RemoveCC(key); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed CC %q\n", key)

	default:
		return fmt.Errorf("unknown entity type %q. Use recipient or cc", entityType)
	}

	return nil
}

// --- SET command ---

var (
	setName  string
	setEmail string
)

var configSetCmd = &cobra.Command{
	Use:   "set [sender|to] [keys...]",
	Short: "Set the sender or the default report recipients",
	Long: `Set the address reports are sent from, or the recipient keys that
receive every report.

Examples:
  video-transcriber config set sender --name "Transcripts" --email transcripts@example.com
  video-transcriber config set to jane john`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConfigSet,
}

func init() {
	configSetCmd.Flags().StringVar(&setName, "name", "", "Sender display name")
	configSetCmd.Flags().StringVar(&setEmail, "email", "", "Sender email address")
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	c, err := loadConfigForEdit()
	if err != nil {
		return err
	}
	return RunConfigSetWithDependencies(c, GetConfigPath(), args[0], args[1:], setName, setEmail, DefaultOutput)
}

// RunConfigSetWithDependencies runs the set command with injected dependencies
func RunConfigSetWithDependencies(cfg *config.Config, configPath, entityType string, keys []string, name, email string, out OutputWriter) error {
	mgr := config.NewManager(cfg, configPath)

	switch entityType {
	case "sender":
		if email == "" {
			return fmt.Errorf("--email is required for sender")
		}
		if err := mgr.SetSender(name, email); err != nil {
			return err
		}
		fmt.Fprintf(out, "Reports will be sent from %s <%s>\n", name, email)

	case "to":
		if len(keys) == 0 {
			return fmt.Errorf("at least one recipient key is required")
		}
		if err := mgr.SetDefaultTo(keys); err != nil {
			return err
		}
		fmt.Fprintf(out, "Reports will be sent to %s\n", strings.Join(cfg.Notify.To, ", "))

	default:
		return fmt.Errorf("unknown entity type %q. Use sender or to", entityType)
	}

	return nil
}
