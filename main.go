// Demo: registers a hive-partitioned CSV dataset from a generated local
// file tree, builds lazy plans against it, and materializes them through
// the embedded DuckDB engine — including one plan whose partition filter
// prunes files without touching them.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"

	"quarry/internal/db"
	"quarry/internal/db/repository"
	"quarry/internal/domain"
	"quarry/internal/engine"
	"quarry/internal/objstore"
	"quarry/internal/plan"
	"quarry/internal/registry"
)

// seedFiles writes a small flights dataset partitioned by year. The
// distance value 0 in the 2023 file stands in for the implausible-sentinel
// case: it is recoded to NULL at scan time, not averaged as a real zero.
func seedFiles(root string) error {
	files := map[string]string{
		"year=2022/part-0.csv": "carrier,distance,dep_delay\nUA,2475,12\nAA,1389,-3\nDL,2475,0\n",
		"year=2023/part-0.csv": "carrier,distance,dep_delay\nUA,2475,41\nAA,0,7\nUA,733,-2\n",
		"year=2024/part-0.csv": "carrier,distance,dep_delay\nDL,1089,3\nUA,2475,88\nAA,1389,19\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func printResult(res *domain.Result) {
	fmt.Println(strings.Join(res.Columns, "\t"))
	fmt.Println(strings.Repeat("-", 60))
	for _, row := range res.Rows {
		parts := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				parts[i] = "NULL"
			} else {
				parts[i] = fmt.Sprintf("%v", v)
			}
		}
		fmt.Println(strings.Join(parts, "\t"))
	}
	fmt.Printf("(%d rows; %d/%d files scanned, %d pruned)\n\n",
		res.Stats.RowsReturned, res.Stats.FilesScanned, res.Stats.FilesTotal, res.Stats.FilesPruned)
}

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	workDir, err := os.MkdirTemp("", "quarry-demo-*")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(workDir)

	dataDir := filepath.Join(workDir, "flights")
	if err := seedFiles(dataDir); err != nil {
		log.Fatalf("seed demo files: %v", err)
	}

	writeDB, _, err := db.OpenSQLitePair(filepath.Join(workDir, "quarry.sqlite"), 0)
	if err != nil {
		log.Fatalf("open control plane: %v", err)
	}
	defer writeDB.Close()
	if err := db.RunMigrations(writeDB); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	eng, err := engine.Open(ctx, engine.Settings{}, logger)
	if err != nil {
		log.Fatalf("open engine: %v", err)
	}
	defer eng.Close()

	reg := registry.New(registry.Deps{
		Repo:     repository.NewDatasetRepo(writeDB),
		Lister:   objstore.NewRouter(),
		Inferrer: eng,
		Logger:   logger,
	})

	fmt.Println("Registering dataset 'flights' (CSV, partitioned by year)...")
	ds, err := reg.Register(ctx, domain.RegisterDatasetRequest{
		Name:          "flights",
		Location:      dataDir,
		Format:        domain.FormatCSV,
		PartitionKeys: []string{"year"},
		Columns: []domain.ColumnSchema{
			{Name: "dep_delay", Type: "DOUBLE", Declared: true},
			{Name: "distance", Type: "BIGINT", Declared: true, Sentinels: []string{"0"}},
		},
	})
	if err != nil {
		log.Fatalf("register: %v", err)
	}
	fmt.Printf("Registered %s: %d files, %d columns\n\n", ds.Name, ds.FileCount, len(ds.Columns))

	files, err := reg.Files(ctx, ds.Name)
	if err != nil {
		log.Fatalf("files: %v", err)
	}

	fmt.Println("=== Average delay per carrier (all partitions) ===")
	byCarrier := plan.New("flights").
		Filter("dep_delay > -10").
		GroupBy("carrier").
		Aggregate(
			plan.Aggregate{Func: "avg", Column: "dep_delay", As: "avg_delay"},
			plan.Aggregate{Func: "count", As: "flights"},
		).
		Sort(plan.SortKey{Column: "avg_delay", Desc: true})
	res, err := eng.Materialize(ctx, byCarrier, ds, files)
	if err != nil {
		log.Fatalf("materialize: %v", err)
	}
	printResult(res)

	fmt.Println("=== 2024 flights only (partition filter prunes two files) ===")
	recent := plan.New("flights").
		Filter("year = 2024").
		Select("carrier", "distance", "dep_delay").
		Sort(plan.SortKey{Column: "dep_delay", Desc: true})
	res, err = eng.Materialize(ctx, recent, ds, files)
	if err != nil {
		log.Fatalf("materialize: %v", err)
	}
	printResult(res)

	fmt.Println("=== Sentinel recoding: distance 0 reads as NULL ===")
	distances := plan.New("flights").
		Filter("year = 2023").
		Select("carrier", "distance")
	res, err = eng.Materialize(ctx, distances, ds, files)
	if err != nil {
		log.Fatalf("materialize: %v", err)
	}
	printResult(res)

	fmt.Println("=== Unknown column fails before execution ===")
	bad := plan.New("flights").Filter("altitude > 10000")
	if _, err := eng.Materialize(ctx, bad, ds, files); err != nil {
		fmt.Printf("rejected: %v\n", err)
	}
}
