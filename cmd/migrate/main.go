// Command migrate manages the invoicing PostgreSQL schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/infrastructure/config"
	"github.com/ledgerly/invoicing/internal/infrastructure/logger"
	"github.com/ledgerly/invoicing/internal/infrastructure/migration"
	"github.com/ledgerly/invoicing/migrations"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("usage")

// offline commands work on migration files and never touch the database.
type offline func(dir string, args []string, log *zap.Logger) error

// online commands act on a connected schema.
type online func(schema *migration.Schema, args []string, log *zap.Logger) error

type command struct {
	usage   string
	summary string
	offline offline
	online  online
}

var commands = []struct {
	name string
	command
}{
	{"up", command{"up", "Apply all pending migrations", nil, migrateTo(func([]string) (migration.Target, error) {
		return migration.Latest(), nil
	})}},
	{"down", command{"down", "Roll back all migrations", nil, migrateTo(func([]string) (migration.Target, error) {
		return migration.Empty(), nil
	})}},
	{"step", command{"step <n>", "Apply n migrations (negative rolls back)", nil, migrateTo(func(args []string) (migration.Target, error) {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return migration.Target{}, fmt.Errorf("invalid step count %q", args[0])
		}
		return migration.Relative(n), nil
	})}},
	{"goto", command{"goto <version>", "Migrate up or down to a version", nil, migrateTo(func(args []string) (migration.Target, error) {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return migration.Target{}, fmt.Errorf("invalid version %q", args[0])
		}
		return migration.Version(uint(v)), nil
	})}},
	{"version", command{"version", "Show the applied version", nil, showVersion}},
	{"force", command{"force <version>", "Record a version after a failed run", nil, forceVersion}},
	{"drop", command{"drop -confirm", "Drop every database object", nil, dropAll}},
	{"create", command{"create <name> [desc]", "Scaffold a new up/down pair", createPair, nil}},
	{"list", command{"list", "List available migrations", listPairs, nil}},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c.command, true
		}
	}
	return command{}, false
}

// arity is the number of required arguments named in usage.
func (c command) arity() int {
	return strings.Count(c.usage, "<")
}

func main() {
	var migrationsPath, logLevel string
	flag.StringVar(&migrationsPath, "path", "", "Migrations directory (default: the set embedded in this binary)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	if len(args)-1 < cmd.arity() {
		fmt.Fprintf(os.Stderr, "usage: migrate %s\n", cmd.usage)
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := execute(cmd, migrationsPath, args[1:], log); err != nil {
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func execute(cmd command, path string, args []string, log *zap.Logger) error {
	if cmd.offline != nil {
		return cmd.offline(path, args, log)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	src := migration.FromFS(migrations.FS, ".")
	if path != "" {
		src = migration.FromDir(path)
	}
	schema, err := migration.New(db, src, log)
	if err != nil {
		return err
	}
	defer schema.Close()
	return cmd.online(schema, args, log)
}

func migrateTo(target func(args []string) (migration.Target, error)) online {
	return func(schema *migration.Schema, args []string, _ *zap.Logger) error {
		t, err := target(args)
		if err != nil {
			return err
		}
		return schema.Migrate(t)
	}
}

func showVersion(schema *migration.Schema, _ []string, log *zap.Logger) error {
	st, err := schema.State()
	if err != nil {
		return err
	}
	log.Info("Applied schema version", zap.Uint("version", st.Version), zap.Bool("dirty", st.Dirty))
	return nil
}

func forceVersion(schema *migration.Schema, args []string, _ *zap.Logger) error {
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}
	return schema.Force(v)
}

func dropAll(schema *migration.Schema, args []string, _ *zap.Logger) error {
	if len(args) == 0 || strings.TrimLeft(args[0], "-") != "confirm" {
		return fmt.Errorf("%w: drop needs -confirm", errUsage)
	}
	return schema.Drop()
}

func createPair(dir string, args []string, log *zap.Logger) error {
	if dir == "" {
		dir = defaultMigrationsDir
	}
	var description string
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath))
	return nil
}

func listPairs(dir string, _ []string, _ *zap.Logger) error {
	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	names, err := migration.ListMigrations(fsys)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

func printUsage() {
	fmt.Println("Invoicing database migration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  %-22s%s\n", c.usage, c.summary)
	}
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Database settings come from config.toml or INV_DATABASE_* variables.")
}
