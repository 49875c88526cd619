package engine

import (
	"quarry/internal/domain"
	"quarry/internal/expr"
)

// PruneFiles drops the files whose partition values already falsify a filter.
// A file survives unless some filter evaluates to FALSE or NULL for it with
// certainty; filters that depend on row data keep every file. Returned order
// follows the input.
func PruneFiles(filters []expr.Expr, d *domain.Dataset, files []domain.DatasetFile) (kept []domain.DatasetFile, prunedPaths []string) {
	if len(filters) == 0 || len(d.PartitionKeys) == 0 {
		return files, nil
	}
	keys := make(map[string]bool, len(d.PartitionKeys))
	for _, k := range d.PartitionKeys {
		keys[k] = true
	}
	for _, f := range files {
		if fileMatches(filters, keys, f) {
			kept = append(kept, f)
		} else {
			prunedPaths = append(prunedPaths, f.Path)
		}
	}
	return kept, prunedPaths
}

// fileMatches evaluates every filter against the file's partition values.
// Filters combine with AND, so one certain exclusion prunes the file.
func fileMatches(filters []expr.Expr, keys map[string]bool, f domain.DatasetFile) bool {
	env := partitionEnv(keys, f)
	for _, flt := range filters {
		if expr.EvalPartition(flt, env).ExcludesAllRows() {
			return false
		}
	}
	return true
}

// partitionEnv exposes a file's partition values to the evaluator. Keys the
// path lacks, and keys carrying the Hive null sentinel, read as NULL.
func partitionEnv(keys map[string]bool, f domain.DatasetFile) expr.MapEnv {
	values := make(map[string]string, len(f.Partition))
	for k, v := range f.Partition {
		if keys[k] && v != domain.HiveNullSentinel {
			values[k] = v
		}
	}
	return expr.MapEnv{Keys: keys, Values: values}
}
