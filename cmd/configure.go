/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stegokey/backend-go/internal/tui"
)

// configCmd represents the configure command
var configCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure the stegokey server and CLI",
	// Reads the current config without validating it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return readConfig(viper.GetViper(), cfgFile)
	},
	RunE: configure,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func configure(cmd *cobra.Command, args []string) error {
	current := make(map[string]string, len(tui.Keys))
	for _, k := range tui.Keys {
		if k == "video.encoders" {
			current[k] = strings.Join(viper.GetStringSlice(k), ",")
			continue
		}
		current[k] = viper.GetString(k)
	}

	p := tea.NewProgram(tui.InitialModel(current))
	m, err := p.Run()
	if err != nil {
		return fmt.Errorf("the tea is rotten: %w", err)
	}
	// Assert the final tea.Model to our local model and print the choice.
	model, ok := m.(tui.Model)
	if !ok {
		return fmt.Errorf("can't assert tui model")
	}
	if model.Quit {
		fmt.Fprintln(cmd.OutOrStdout(), "Not saving configuration...")
		return nil
	}

	yamlConfig, err := answersYAML(model.Values())
	if err != nil {
		return fmt.Errorf("could not marshal configuration to []byte: %w", err)
	}
	if err := viper.MergeConfig(bytes.NewReader(yamlConfig)); err != nil {
		return fmt.Errorf("could not merge existing configuration: %w", err)
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("viper could not save configuration: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Config saved!", path)
	return nil
}

// answersYAML nests dotted config keys into a YAML document.
func answersYAML(values map[string]string) ([]byte, error) {
	root := map[string]any{}
	for key, value := range values {
		parts := strings.Split(key, ".")
		node := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[p] = child
			}
			node = child
		}
		last := parts[len(parts)-1]
		if key == "video.encoders" {
			var list []string
			for _, e := range strings.Split(value, ",") {
				if e = strings.TrimSpace(e); e != "" {
					list = append(list, e)
				}
			}
			node[last] = list
			continue
		}
		node[last] = value
	}
	return yaml.Marshal(root)
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir, configName), nil
}
