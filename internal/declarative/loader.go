package declarative

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadDirectory reads all manifests under dir and returns the desired state.
// Layout: datasets/<name>.yaml and macros/<name>.yaml; both directories are
// optional. File names must match metadata.name.
func LoadDirectory(dir string) (*DesiredState, error) {
	return LoadDirectoryWithOptions(dir, LoadOptions{})
}

// LoadDirectoryWithOptions reads all manifests under dir using the given
// loading options.
func LoadDirectoryWithOptions(dir string, opts LoadOptions) (*DesiredState, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("manifest directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("manifest directory: %s is not a directory", dir)
	}

	state := &DesiredState{}
	if err := loadDatasets(dir, state, opts); err != nil {
		return nil, err
	}
	if err := loadMacros(dir, state, opts); err != nil {
		return nil, err
	}
	return state, nil
}

// loadYAMLFile reads and unmarshals a YAML file into target. Unknown fields
// are rejected unless opts allows them.
func loadYAMLFile(path string, target any, opts LoadOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if opts.AllowUnknownFields {
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path, apiVersion, kind, expectedKind string) error {
	if apiVersion != SupportedAPIVersion {
		return fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	if kind != expectedKind {
		return fmt.Errorf("%s: unexpected kind %q (expected %q)", path, kind, expectedKind)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// yamlFiles lists the .yaml files directly under dir, sorted by name.
func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// loadDatasets walks datasets/. Each .yaml file declares one dataset.
func loadDatasets(root string, state *DesiredState, opts LoadOptions) error {
	dsDir := filepath.Join(root, "datasets")
	if !dirExists(dsDir) {
		return nil
	}

	files, err := yamlFiles(dsDir)
	if err != nil {
		return err
	}
	for _, name := range files {
		path := filepath.Join(dsDir, name)
		var doc DatasetDoc
		if err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind, KindNameDataset); err != nil {
			return err
		}
		want := strings.TrimSuffix(name, ".yaml")
		if doc.Metadata.Name != want {
			return fmt.Errorf("%s: metadata.name %q does not match file name %q", path, doc.Metadata.Name, want)
		}
		state.Datasets = append(state.Datasets, DatasetResource{
			Name:     doc.Metadata.Name,
			FilePath: path,
			Spec:     doc.Spec,
		})
	}
	return nil
}

// loadMacros walks macros/. Each .yaml file declares one macro.
func loadMacros(root string, state *DesiredState, opts LoadOptions) error {
	macroDir := filepath.Join(root, "macros")
	if !dirExists(macroDir) {
		return nil
	}

	files, err := yamlFiles(macroDir)
	if err != nil {
		return err
	}
	for _, name := range files {
		path := filepath.Join(macroDir, name)
		var doc MacroDoc
		if err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind, KindNameMacro); err != nil {
			return err
		}
		want := strings.TrimSuffix(name, ".yaml")
		if doc.Metadata.Name != want {
			return fmt.Errorf("%s: metadata.name %q does not match file name %q", path, doc.Metadata.Name, want)
		}
		state.Macros = append(state.Macros, MacroResource{
			Name:     doc.Metadata.Name,
			FilePath: path,
			Spec:     doc.Spec,
		})
	}
	return nil
}
