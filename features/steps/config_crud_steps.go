//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"video-transcriber/cmd"
	"video-transcriber/infrastructure/config"

	"github.com/cucumber/godog"
)

type configCrudContext struct {
	tempDir    string
	configPath string
	config     *config.Config
	output     *bytes.Buffer
	err        error
}

var SharedConfigCrudContext = &configCrudContext{}

func InitializeConfigCrudScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedConfigCrudContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "config-crud-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config.yaml")
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		testCtx.config = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	// Background
	ctx.Step(`^a config file exists with initial data$`, testCtx.aConfigFileExistsWithInitialData)

	// Recipient steps
	ctx.Step(`^I run config add recipient with key "([^"]*)" name "([^"]*)" and email "([^"]*)"$`, testCtx.iRunConfigAddRecipient)
	ctx.Step(`^I run config list recipients$`, testCtx.iRunConfigListRecipients)
	ctx.Step(`^I run config remove recipient "([^"]*)"$`, testCtx.iRunConfigRemoveRecipient)
	ctx.Step(`^the config should contain recipient "([^"]*)" with name "([^"]*)" and email "([^"]*)"$`, testCtx.theConfigShouldContainRecipient)
	ctx.Step(`^the config should not contain recipient "([^"]*)"$`, testCtx.theConfigShouldNotContainRecipient)

	// CC steps
	ctx.Step(`^I run config add cc with name "([^"]*)" and email "([^"]*)"$`, testCtx.iRunConfigAddCC)
	ctx.Step(`^I run config list ccs$`, testCtx.iRunConfigListCCs)
	ctx.Step(`^I run config remove cc "([^"]*)"$`, testCtx.iRunConfigRemoveCC)
	ctx.Step(`^the config should contain cc with name "([^"]*)" and email "([^"]*)"$`, testCtx.theConfigShouldContainCC)
	ctx.Step(`^the config should not contain cc with name "([^"]*)"$`, testCtx.theConfigShouldNotContainCC)

	// Set steps
	ctx.Step(`^I run config set sender with name "([^"]*)" and email "([^"]*)"$`, testCtx.iRunConfigSetSender)
	ctx.Step(`^I run config set to "([^"]*)"$`, testCtx.iRunConfigSetTo)
	ctx.Step(`^the config sender should be "([^"]*)" <([^>]*)>$`, testCtx.theConfigSenderShouldBe)
	ctx.Step(`^reports should go to "([^"]*)"$`, testCtx.reportsShouldGoTo)

	// Common assertions
	ctx.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	ctx.Step(`^the command should fail with "([^"]*)"$`, testCtx.theCommandShouldFailWith)
	ctx.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
}

func (c *configCrudContext) loadConfig() error {
	cfg, _, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.config = cfg
	return nil
}

// --- Background ---

func (c *configCrudContext) aConfigFileExistsWithInitialData() error {
	cfg := config.Default()
	cfg.Notify.Enabled = true
	cfg.Notify.FromName = "Transcripts"
	cfg.Notify.FromAddress = "transcripts@example.com"
	cfg.Notify.Recipients = map[string]config.RecipientConfig{
		"jane": {Name: "Jane Doe", Address: "jane@example.com"},
	}
	cfg.Notify.To = []string{"jane"}
	cfg.Notify.DefaultCC = []config.RecipientConfig{
		{Name: "Mary Jones", Address: "mary@example.com"},
	}
	c.config = &cfg
	return config.Save(c.config, c.configPath)
}

// --- Recipients ---

func (c *configCrudContext) iRunConfigAddRecipient(key, name, email string) error {
	c.err = cmd.RunConfigAddWithDependencies(c.config, c.configPath, "recipient", key, name, email, c.output)
	return nil
}

func (c *configCrudContext) iRunConfigListRecipients() error {
	c.err = cmd.RunConfigListWithDependencies(c.config, c.configPath, "recipients", c.output)
	return nil
}

func (c *configCrudContext) iRunConfigRemoveRecipient(key string) error {
	c.err = cmd.RunConfigRemoveWithDependencies(c.config, c.configPath, "recipient", key, c.output)
	return nil
}

func (c *configCrudContext) theConfigShouldContainRecipient(key, name, email string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	r, ok := c.config.Notify.Recipients[key]
	if !ok {
		return fmt.Errorf("recipient %q not found", key)
	}
	if r.Name != name || r.Address != email {
		return fmt.Errorf("expected %s <%s>, got %s <%s>", name, email, r.Name, r.Address)
	}
	return nil
}

func (c *configCrudContext) theConfigShouldNotContainRecipient(key string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	if _, ok := c.config.Notify.Recipients[key]; ok {
		return fmt.Errorf("recipient %q should have been removed", key)
	}
	for _, k := range c.config.Notify.To {
		if k == key {
			return fmt.Errorf("recipient %q is still a default recipient", key)
		}
	}
	return nil
}

// --- CCs ---

func (c *configCrudContext) iRunConfigAddCC(name, email string) error {
	c.err = cmd.RunConfigAddWithDependencies(c.config, c.configPath, "cc", "", name, email, c.output)
	return nil
}

func (c *configCrudContext) iRunConfigListCCs() error {
	c.err = cmd.RunConfigListWithDependencies(c.config, c.configPath, "ccs", c.output)
	return nil
}

func (c *configCrudContext) iRunConfigRemoveCC(key string) error {
	c.err = cmd.RunConfigRemoveWithDependencies(c.config, c.configPath, "cc", key, c.output)
	return nil
}

func (c *configCrudContext) theConfigShouldContainCC(name, email string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	for _, cc := range c.config.Notify.DefaultCC {
		if cc.Name == name && cc.Address == email {
			return nil
		}
	}
	return fmt.Errorf("cc %s <%s> not found in %v", name, email, c.config.Notify.DefaultCC)
}

func (c *configCrudContext) theConfigShouldNotContainCC(name string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	for _, cc := range c.config.Notify.DefaultCC {
		if cc.Name == name {
			return fmt.Errorf("cc %q should have been removed", name)
		}
	}
	return nil
}

// --- Set ---

func (c *configCrudContext) iRunConfigSetSender(name, email string) error {
	c.err = cmd.RunConfigSetWithDependencies(c.config, c.configPath, "sender", nil, name, email, c.output)
	return nil
}

func (c *configCrudContext) iRunConfigSetTo(keys string) error {
	c.err = cmd.RunConfigSetWithDependencies(c.config, c.configPath, "to", strings.Fields(keys), "", "", c.output)
	return nil
}

func (c *configCrudContext) theConfigSenderShouldBe(name, email string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	if c.config.Notify.FromName != name || c.config.Notify.FromAddress != email {
		return fmt.Errorf("expected sender %s <%s>, got %s <%s>", name, email, c.config.Notify.FromName, c.config.Notify.FromAddress)
	}
	return nil
}

func (c *configCrudContext) reportsShouldGoTo(keys string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	if got := strings.Join(c.config.Notify.To, " "); got != keys {
		return fmt.Errorf("expected default recipients %q, got %q", keys, got)
	}
	return nil
}

// --- Common ---

func (c *configCrudContext) theCommandShouldSucceed() error {
	if c.err != nil {
		return fmt.Errorf("expected success, got: %v", c.err)
	}
	return nil
}

func (c *configCrudContext) theCommandShouldFailWith(expected string) error {
	if c.err == nil {
		return fmt.Errorf("expected error containing %q, got success", expected)
	}
	if !strings.Contains(c.err.Error(), expected) {
		return fmt.Errorf("expected error containing %q, got: %v", expected, c.err)
	}
	return nil
}

func (c *configCrudContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(c.output.String(), expected) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", expected, c.output.String())
	}
	return nil
}
