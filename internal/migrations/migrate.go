package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	pg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const migrationsDir = "migrations"

// RunMigrations applies the SQL files under ./migrations in order. A database
// provisioned before version tracking existed (players table present, no
// tracking table) is baselined to the newest known version first so the
// initial DDL is not replayed against live tables.
func RunMigrations(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("database URL is empty")
	}

	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open DB: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pg.WithInstance(sqlDB, &pg.Config{MigrationsTable: "schema_migrations_migrate"})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	baselineIfUntracked(sqlDB, m)

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	log.Printf("[MIGRATE] Schema is up to date")
	return nil
}

// baselineIfUntracked force-sets the schema version when the tables already
// exist but migrate has never run against this database. Baseline failures
// are left to the subsequent Up call to surface.
func baselineIfUntracked(sqlDB *sql.DB, m *migrate.Migrate) {
	if !tableExists(sqlDB, "players") || tableExists(sqlDB, "schema_migrations_migrate") {
		return
	}
	latest := latestVersion(migrationsDir)
	if latest == 0 {
		return
	}
	log.Printf("[MIGRATE] Untracked schema detected, baselining to version %d", latest)
	if err := m.Force(int(latest)); err != nil {
		log.Printf("[MIGRATE] Baseline to version %d failed: %v", latest, err)
	}
}

func tableExists(sqlDB *sql.DB, name string) bool {
	var exists bool
	row := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", name)
	if err := row.Scan(&exists); err != nil {
		return false
	}
	return exists
}

// latestVersion returns the highest numeric prefix among the migration files
// (e.g. 000003_tournaments.up.sql yields 3).
func latestVersion(dir string) int64 {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	re := regexp.MustCompile(`^0*([0-9]+)_`)
	var max int64
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		sub := re.FindStringSubmatch(f.Name())
		if len(sub) < 2 {
			continue
		}
		if v, _ := strconv.ParseInt(sub[1], 10, 64); v > max {
			max = v
		}
	}
	return max
}
