package store

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var migrationName = regexp.MustCompile(`^(\d+)_[a-z0-9_]+\.(up|down)\.sql$`)

// Every up migration needs a matching down, and names must follow the
// NNNN_description convention the runner sorts on.
func TestMigrationFilesPairUp(t *testing.T) {
	dir := filepath.Join("..", "..", "db", "migrations")
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no migrations discovered")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, file := range files {
		name := filepath.Base(file)
		match := migrationName.FindStringSubmatch(name)
		if match == nil {
			t.Errorf("migration %q does not follow NNNN_description.{up,down}.sql", name)
			continue
		}
		version, direction := match[1], match[2]
		set := ups
		if direction == "down" {
			set = downs
		}
		if set[version] {
			t.Errorf("duplicate %s migration for version %s", direction, version)
		}
		set[version] = true
	}

	for version := range ups {
		if !downs[version] {
			t.Errorf("version %s has no down migration", version)
		}
	}
	for version := range downs {
		if !ups[version] {
			t.Errorf("version %s has no up migration", version)
		}
	}
}

func TestInitialMigrationCreatesCoreTables(t *testing.T) {
	contents := readMigration(t, "0001_init.up.sql")
	for _, table := range []string{"tags", "entries", "cards", "albums", "photos"} {
		if !strings.Contains(contents, "CREATE TABLE "+table) {
			t.Errorf("0001_init.up.sql missing table %s", table)
		}
	}
	if !strings.Contains(contents, "filter_tags") {
		t.Error("0001_init.up.sql missing the filter_tags column")
	}
}
