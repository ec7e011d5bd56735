package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"report-harvester/internal/config"
	"report-harvester/internal/prompt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// stdin is shared by every reader of the terminal so buffered input is never lost
// between prompts.
var stdin = bufio.NewReader(os.Stdin)

// promptLine asks for one line on stdin. If defaultVal is not empty it is shown and used
// when the operator just presses Enter.
func promptLine(label string, defaultVal string) string {
	input, _ := readLine(stdin, os.Stdout, label, defaultVal)
	return input
}

// readLine is promptLine over any reader. It returns io.EOF (or the read error) only when
// the input ended before anything was typed; defaultVal is returned alongside.
func readLine(r *bufio.Reader, out io.Writer, label, defaultVal string) (string, error) {
	msg := label
	if defaultVal != "" {
		msg = fmt.Sprintf("%s [%s]", label, defaultVal)
	}
	fmt.Fprintf(out, "%s: ", msg)

	input, err := r.ReadString('\n')
	input = strings.TrimSpace(input)
	if err != nil && input == "" {
		fmt.Fprintln(out)
		return defaultVal, err
	}

	if input == "" {
		return defaultVal, nil
	}
	return input, nil
}

// identifiersFromFlags returns --ids, else the --ids-file content, else the configured list.
// An empty result means the operator is asked after login.
func identifiersFromFlags(cmd *cobra.Command, cfg *config.Config) ([]string, error) {
	if ids, _ := cmd.Flags().GetStringSlice("ids"); len(ids) > 0 {
		return ids, nil
	}
	if path, _ := cmd.Flags().GetString("ids-file"); path != "" {
		return readIdentifiersFile(path)
	}
	return cfg.Identifiers, nil
}

// readIdentifiersFile accepts a YAML list (or a mapping with an "identifiers" list) for
// .yaml/.yml files and free text separated by commas, semicolons or whitespace otherwise.
func readIdentifiersFile(path string) ([]string, error) {
	data, err := os.ReadFile(config.ExpandPath(path))
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var list []string
		if err := yaml.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		var doc struct {
			Identifiers []string `yaml:"identifiers"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return doc.Identifiers, nil
	}
	return prompt.SplitList(string(data)), nil
}
