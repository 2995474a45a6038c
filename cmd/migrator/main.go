package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/linemk/farm-market/internal/config"
)

const migrationsTable = "schema_migrations"

func main() {
	var configPath, migrationsPath string
	var down bool
	var steps int
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&migrationsPath, "migrations-path", "", "path to migration files")
	flag.BoolVar(&down, "down", false, "roll back migrations instead of applying them")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply or roll back (0 = all)")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		log.Fatal("config path is required: use -config or CONFIG_PATH")
	}
	cfg := config.MustLoadMigratorByPath(configPath)

	if migrationsPath == "" {
		migrationsPath = cfg.Migrations.Path
	}

	// Создаем объект мигратора
	m, err := migrate.New(
		"file://"+migrationsPath,
		cfg.Database.DSN()+"&x-migrations-table="+migrationsTable,
	)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}
	defer m.Close()

	if err := run(m, down, steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("no migrations to apply")
			return
		}
		log.Fatalf("migration failed: %v", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatalf("failed to read migration version: %v", err)
	}
	log.Printf("migrations applied, version %d (dirty: %t)", version, dirty)
}

func run(m *migrate.Migrate, down bool, steps int) error {
	switch {
	case steps > 0 && down:
		return m.Steps(-steps)
	case steps > 0:
		return m.Steps(steps)
	case down:
		return m.Down()
	}
	return m.Up()
}
