package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// output pairs a dataset with its published file name.
type output struct {
	name string
	data any
}

// writeOutputs publishes the datasets using the write-to-temp-then-rename
// pattern, staging every file before renaming any of them: a failure
// while serializing or writing one dataset leaves the whole previous
// snapshot in place instead of a mixed one.
func writeOutputs(dir string, outputs []output) error {
	staged := make([]string, 0, len(outputs))
	committed := false
	defer func() {
		if !committed {
			for _, tmp := range staged {
				_ = os.Remove(tmp)
			}
		}
	}()

	for _, out := range outputs {
		tmp, err := stageJSONFile(dir, out.data)
		if err != nil {
			return fmt.Errorf("stage %s: %w", out.name, err)
		}
		staged = append(staged, tmp)
	}
	for i, out := range outputs {
		if err := os.Rename(staged[i], filepath.Join(dir, out.name)); err != nil {
			return fmt.Errorf("publish %s: %w", out.name, err)
		}
	}

	committed = true
	return nil
}

// stageJSONFile marshals v with indentation into a temp file in the
// target directory, so the later rename stays on one filesystem.
func stageJSONFile(dir string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".proxyprice-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), nil
}
