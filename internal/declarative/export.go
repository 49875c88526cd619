package declarative

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ExportDirectory writes the state as a manifest tree that LoadDirectory can
// read back: datasets/<name>.yaml and macros/<name>.yaml. Unless overwrite is
// set, it refuses to write into a non-empty directory.
func ExportDirectory(dir string, state *DesiredState, overwrite bool) error {
	if !overwrite {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read output directory: %w", err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("output directory %s is not empty (use --overwrite)", dir)
		}
	}

	for _, d := range state.Datasets {
		doc := DatasetDoc{
			APIVersion: SupportedAPIVersion,
			Kind:       KindNameDataset,
			Metadata:   ObjectMeta{Name: d.Name},
			Spec:       d.Spec,
		}
		if err := writeYAMLFile(filepath.Join(dir, "datasets", d.Name+".yaml"), doc); err != nil {
			return err
		}
	}

	for _, m := range state.Macros {
		doc := MacroDoc{
			APIVersion: SupportedAPIVersion,
			Kind:       KindNameMacro,
			Metadata:   ObjectMeta{Name: m.Name},
			Spec:       m.Spec,
		}
		if err := writeYAMLFile(filepath.Join(dir, "macros", m.Name+".yaml"), doc); err != nil {
			return err
		}
	}

	return nil
}

func writeYAMLFile(path string, doc any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
