package config

// manifest.go loads the ordered dataset list the pipeline runs. Datasets are
// declared in YAML rather than compiled in, so adding or retiring one is a
// configuration change, not a release:
//
//	datasets:
//	  - name: cards
//	    schema_file: schemas/card.json
//	    data_dir: incoming/cards
//	    output_file: out/cards.csv
//	    schema_mismatch_dir: quarantine/cards
//	    options:
//	      pattern: "*.json"
//	      normalize:
//	        holder.job: [comma_swap, title]

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/ETL/internal/core"
)

// Manifest mirrors the on-disk YAML document.
type Manifest struct {
	Datasets []ManifestDataset `yaml:"datasets"`
}

// ManifestDataset is one dataset declaration. The five descriptor fields are
// all required; options may be omitted entirely.
type ManifestDataset struct {
	Name        string          `yaml:"name"`
	SchemaFile  string          `yaml:"schema_file"`
	DataDir     string          `yaml:"data_dir"`
	OutputFile  string          `yaml:"output_file"`
	MismatchDir string          `yaml:"schema_mismatch_dir"`
	Options     ManifestOptions `yaml:"options"`
}

// ManifestOptions carries the optional per-dataset switches.
type ManifestOptions struct {
	Pattern        string              `yaml:"pattern"`
	SalvageMissing bool                `yaml:"salvage_missing"`
	Normalize      map[string][]string `yaml:"normalize"`
}

// LoadManifest reads and validates the manifest at path, resolving relative
// paths against baseDir, and returns the ordered jobs for the pipeline.
// Every problem is collected into one error.
func LoadManifest(path, baseDir string) ([]core.DatasetJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if len(manifest.Datasets) == 0 {
		return nil, fmt.Errorf("manifest %s declares no datasets", path)
	}

	var errs []string
	seen := make(map[string]bool, len(manifest.Datasets))
	jobs := make([]core.DatasetJob, 0, len(manifest.Datasets))
	for i, ds := range manifest.Datasets {
		label := ds.Name
		if label == "" {
			label = fmt.Sprintf("dataset %d", i+1)
		}

		if ds.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: name is required", label))
		} else if seen[ds.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate dataset name", label))
		}
		seen[ds.Name] = true

		if ds.SchemaFile == "" {
			errs = append(errs, fmt.Sprintf("%s: schema_file is required", label))
		}
		if ds.DataDir == "" {
			errs = append(errs, fmt.Sprintf("%s: data_dir is required", label))
		}
		if ds.OutputFile == "" {
			errs = append(errs, fmt.Sprintf("%s: output_file is required", label))
		}
		if ds.MismatchDir == "" {
			errs = append(errs, fmt.Sprintf("%s: schema_mismatch_dir is required", label))
		}

		if ds.Options.Pattern != "" {
			if _, err := filepath.Match(ds.Options.Pattern, "probe"); err != nil {
				errs = append(errs, fmt.Sprintf("%s: invalid pattern %q", label, ds.Options.Pattern))
			}
		}
		for _, column := range sortedKeys(ds.Options.Normalize) {
			for _, name := range ds.Options.Normalize[column] {
				if _, ok := core.LookupNormalizer(name); !ok {
					errs = append(errs, fmt.Sprintf("%s: unknown normalizer %q for column %q (have: %s)",
						label, name, column, strings.Join(core.NormalizerNames(), ", ")))
				}
			}
		}

		jobs = append(jobs, core.DatasetJob{
			Descriptor: core.DatasetDescriptor{
				Name:        ds.Name,
				SchemaFile:  resolvePath(baseDir, ds.SchemaFile),
				DataDir:     resolvePath(baseDir, ds.DataDir),
				OutputFile:  resolvePath(baseDir, ds.OutputFile),
				MismatchDir: resolvePath(baseDir, ds.MismatchDir),
			},
			Options: core.DatasetOptions{
				Pattern:        ds.Options.Pattern,
				SalvageMissing: ds.Options.SalvageMissing,
				Normalizers:    ds.Options.Normalize,
			},
		})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("manifest validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return jobs, nil
}

// resolvePath anchors relative manifest paths at baseDir.
func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" || baseDir == "." {
		return p
	}
	return filepath.Join(baseDir, p)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
