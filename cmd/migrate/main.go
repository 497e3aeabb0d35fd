package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"

	"github.com/freightdesk/backend/internal/infrastructure/config"
	"github.com/freightdesk/backend/internal/infrastructure/logger"
	"github.com/freightdesk/backend/internal/infrastructure/migration"
	"github.com/freightdesk/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

// errNotCurrent is returned by check when the schema lags the binary or is dirty
var errNotCurrent = errors.New("schema is not current")

// schemaCommand runs against a connected migrator. Commands that only read
// the migration files are handled before the database is opened.
type schemaCommand struct {
	usage string
	run   func(m *migration.Migrator, args []string) (migration.Status, error)
}

var schemaCommands = map[string]schemaCommand{
	"up": {"Apply all pending migrations", func(m *migration.Migrator, _ []string) (migration.Status, error) {
		return m.Up()
	}},
	"down": {"Roll back every migration", func(m *migration.Migrator, _ []string) (migration.Status, error) {
		return m.Down()
	}},
	"step": {"step <n>: apply n migrations, negative rolls back", func(m *migration.Migrator, args []string) (migration.Status, error) {
		n, err := intArg(args, "step count")
		if err != nil {
			return migration.Status{}, err
		}
		return m.Steps(n)
	}},
	"goto": {"goto <version>: migrate up or down to version", func(m *migration.Migrator, args []string) (migration.Status, error) {
		v, err := intArg(args, "version")
		if err != nil || v < 0 {
			return migration.Status{}, fmt.Errorf("goto needs a non-negative version")
		}
		return m.GoTo(uint(v))
	}},
	"force": {"force <version>: mark version applied after a manual repair", func(m *migration.Migrator, args []string) (migration.Status, error) {
		v, err := intArg(args, "version")
		if err != nil {
			return migration.Status{}, err
		}
		return m.Force(v)
	}},
	"status": {"Show applied and pending migrations", func(m *migration.Migrator, _ []string) (migration.Status, error) {
		return m.Status()
	}},
	"check": {"Exit non-zero unless the schema matches this binary", func(m *migration.Migrator, _ []string) (migration.Status, error) {
		st, err := m.Status()
		if err == nil && !st.Current() {
			err = errNotCurrent
		}
		return st, err
	}},
	"drop": {"drop -confirm: remove every table and all freight data", func(m *migration.Migrator, args []string) (migration.Status, error) {
		if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
			return migration.Status{}, errors.New("drop needs -confirm")
		}
		if err := m.Drop(); err != nil {
			return migration.Status{}, err
		}
		return m.Status()
	}},
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func main() {
	var migrationsPath, logLevel string
	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	name, rest := args[0], args[1:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(config.LogConfig{Level: logLevel, Format: "console", Output: "stdout"}, cfg.App)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// The binary carries its schema; -path is for migrations still being written
	var source fs.FS = migrations.FS
	if migrationsPath != "" {
		source = os.DirFS(migrationsPath)
	}

	switch name {
	case "create":
		dir := migrationsPath
		if dir == "" {
			dir = defaultMigrationsPath
		}
		if len(rest) == 0 {
			log.Fatal("Migration name required: migrate create <name> [description]")
		}
		description := ""
		if len(rest) > 1 {
			description = rest[1]
		}
		mf, err := migration.CreateMigration(dir, rest[0], description)
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created", zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return
	case "list":
		available, err := migration.ListMigrations(source)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		for _, base := range available {
			fmt.Println(base)
		}
		return
	}

	cmd, ok := schemaCommands[name]
	if !ok {
		log.Error("Unknown command", zap.String("command", name))
		printUsage()
		os.Exit(2)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to reach database", zap.Error(err))
	}
	m, err := migration.New(db, source, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer func() { _ = m.Close() }()

	st, err := cmd.run(m, rest)
	log.Info("Schema status",
		zap.String("command", name),
		zap.Uint("version", st.Version),
		zap.Uint("latest", st.Latest),
		zap.Bool("dirty", st.Dirty),
		zap.Strings("pending", st.Pending),
	)
	if err != nil {
		log.Error("Migration command failed", zap.String("command", name), zap.Error(err))
		_ = m.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Freight back office schema tool\n\nUsage: migrate [flags] <command> [arguments]\n\nCommands:")
	names := make([]string, 0, len(schemaCommands))
	for name := range schemaCommands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, schemaCommands[name].usage)
	}
	fmt.Fprintln(os.Stderr, `  create   create <name> [description]: write a new up/down pair
  list     List the migrations in the source

Flags:
  -path       Read migrations from a directory (default: embedded set)
  -log-level  debug, info, warn or error (default: info)

The database is configured through FREIGHT_DATABASE_HOST, _PORT, _USER,
_PASSWORD, _DBNAME and _SSLMODE.`)
}
