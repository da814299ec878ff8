package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/config"
	"field-route-service/internal/kml"
	"field-route-service/internal/platform/db"
)

func main() {
	validateDir := flag.String("validate", "", "parse and validate every .kml file in `dir`, then exit")
	skipSeed := flag.Bool("no-seed", false, "initialize the schema without seeding")
	flag.Parse()

	if *validateDir != "" {
		failed, err := validateAll(*validateDir)
		if err != nil {
			slog.Error("validation aborted", "err", err)
			os.Exit(1)
		}
		if failed > 0 {
			os.Exit(2)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if err := initDB(cfg, !*skipSeed); err != nil {
		slog.Error("database setup failed", "err", err)
		os.Exit(1)
	}
}

func initDB(cfg config.Config, seed bool) error {
	dialect, err := repositories.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}

	var conn *sql.DB
	if dialect == repositories.Postgres {
		conn, err = db.Open(cfg.DatabaseURL)
	} else {
		conn, err = db.OpenSQLite(cfg.DBPath)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	slog.Info("initializing database schema", "driver", cfg.DBDriver)
	if err := repositories.InitSchema(conn, dialect); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	slog.Info("schema ready")

	if !seed {
		return nil
	}
	slog.Info("seeding database", "path", cfg.SeedPath)
	if err := repositories.Seed(conn, dialect, cfg.SeedPath); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	slog.Info("seeding complete")
	return nil
}

// validateAll prints a validation report for every KML file under dir and
// returns how many files failed to parse or validate.
func validateAll(dir string) (int, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".kml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)

	failed := 0
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return failed, fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := kml.Parse(string(content))
		if err != nil {
			failed++
			fmt.Printf("%s: parse error: %v\n\n", path, err)
			continue
		}
		res := kml.Validate(doc)
		if !res.IsValid {
			failed++
		}
		fmt.Println(kml.Report(filepath.Base(path), res))
		fmt.Println()
	}
	fmt.Printf("%d files checked, %d failed\n", len(files), failed)
	return failed, nil
}
