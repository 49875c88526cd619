package registry

import (
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"quarry/internal/domain"
)

// datasetRelPath strips the dataset location prefix from a discovered file
// path so partition segments can be read from the remainder. Paths are
// slash-normalized; remote URIs pass through unchanged.
func datasetRelPath(location, path string) string {
	loc := strings.TrimSuffix(filepath.ToSlash(location), "/")
	if !strings.Contains(loc, "://") {
		loc = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(location)), "/")
	}
	p := filepath.ToSlash(path)
	if rest, ok := strings.CutPrefix(p, loc); ok {
		return strings.TrimPrefix(rest, "/")
	}
	return p
}

// hivePartition extracts key=value directory segments from a relative file
// path. Keys come back in path order; the trailing filename segment is never
// a partition. Values are percent-decoded the way hive writers encode them.
func hivePartition(rel string) ([]string, map[string]string) {
	segs := strings.Split(rel, "/")
	if len(segs) > 0 {
		segs = segs[:len(segs)-1]
	}
	var keys []string
	part := make(map[string]string)
	for _, seg := range segs {
		k, v, ok := strings.Cut(seg, "=")
		if !ok || k == "" {
			continue
		}
		if dec, err := url.PathUnescape(v); err == nil {
			v = dec
		}
		if _, dup := part[k]; !dup {
			keys = append(keys, k)
		}
		part[k] = v
	}
	return keys, part
}

// inferPartitionKeys derives partition keys from the discovered paths: the
// first file's key=value segments set the layout and every other file must
// carry the same keys in the same order. Datasets with irregular layouts
// must declare partition_keys explicitly.
func inferPartitionKeys(location string, objects []domain.StorageObject) ([]string, error) {
	if len(objects) == 0 {
		return nil, nil
	}
	keys, _ := hivePartition(datasetRelPath(location, objects[0].Path))
	for _, obj := range objects[1:] {
		got, _ := hivePartition(datasetRelPath(location, obj.Path))
		if !equalKeys(keys, got) {
			return nil, domain.ErrValidation(
				"file %s has partition keys [%s], expected [%s]; declare partition_keys to override",
				obj.Path, strings.Join(got, " "), strings.Join(keys, " "))
		}
	}
	return keys, nil
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// projectFiles builds the dataset file listing, keeping only the partition
// values for the given keys. A file whose path lacks a key simply omits it
// and reads NULL for that column.
func projectFiles(location string, keys []string, objects []domain.StorageObject) []domain.DatasetFile {
	files := make([]domain.DatasetFile, 0, len(objects))
	for _, obj := range objects {
		_, part := hivePartition(datasetRelPath(location, obj.Path))
		proj := make(map[string]string, len(keys))
		for _, k := range keys {
			if v, ok := part[k]; ok {
				proj[k] = v
			}
		}
		files = append(files, domain.DatasetFile{
			Path:      obj.Path,
			SizeBytes: obj.SizeBytes,
			Partition: proj,
		})
	}
	return files
}

// inferPartitionType picks a column type for a partition key from its
// observed values: BIGINT when every value parses as an integer, DOUBLE when
// every value is numeric, VARCHAR otherwise. NULL markers are skipped.
// ISO dates stay VARCHAR, which still orders correctly in comparisons.
func inferPartitionType(files []domain.DatasetFile, key string) string {
	allInt, allNum := true, true
	seen := false
	for i := range files {
		v, ok := files[i].Partition[key]
		if !ok || v == domain.HiveNullSentinel {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allNum = false
		}
		if !allNum {
			break
		}
	}
	switch {
	case !seen:
		return "VARCHAR"
	case allInt:
		return "BIGINT"
	case allNum:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}
