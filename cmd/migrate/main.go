package main

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// executor runs statements against the warehouse.
type executor interface {
	Exec(ctx context.Context, sql string, params ...bigquery.QueryParameter) error
	Applied(ctx context.Context) ([]AppliedMigration, error)
}

func main() {
	var (
		projectID = flag.String("project", "", "GCP project ID (default EXTRACTOR_BIGQUERY_PROJECT_ID)")
		datasetID = flag.String("dataset", "", "BigQuery dataset ID (default EXTRACTOR_BIGQUERY_DATASET_ID)")
		appliedBy = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dryRun    = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *projectID == "" {
		*projectID = cfg.BigQuery.ProjectID
	}
	if *datasetID == "" {
		*datasetID = cfg.BigQuery.DatasetID
	}
	if *projectID == "" {
		log.Fatal().Msg("-project flag or EXTRACTOR_BIGQUERY_PROJECT_ID is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	migrations, err := readMigrations(embedded, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	exec := &bqExecutor{client: client, table: fmt.Sprintf("`%s.%s.schema_migrations`", *projectID, *datasetID)}

	if *dryRun {
		applied, err := exec.Applied(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to get applied migrations")
		}
		for _, m := range pending(migrations, applied, log) {
			log.Info().Msgf("  [PENDING] %04d_%s", m.Version, m.Name)
		}
		return
	}

	count, err := apply(ctx, exec, migrations, *appliedBy, log)
	if err != nil {
		log.Error().Err(err).Msg("Migration failed")
		os.Exit(1)
	}

	if count == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", count).Msg("Successfully applied migrations")
	}
}

// readMigrations reads all migration files from fsys, substituting the
// project and dataset placeholders.
func readMigrations(fsys fs.FS, projectID, datasetID string) ([]Migration, error) {
	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, path := range files {
		filename := path[strings.LastIndex(path, "/")+1:]
		version, name, ok := parseFilename(filename)
		if !ok {
			return nil, fmt.Errorf("invalid migration filename %q (want 0001_name.sql)", filename)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, filename)
		}
		seen[version] = filename

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", filename, err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		// Checksum the file before substitution so the same migration matches
		// across projects.
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: filename,
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	// Sort by version
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func parseFilename(filename string) (int, string, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// pending returns migrations not yet recorded, warning about applied ones
// whose file has since changed.
func pending(migrations []Migration, applied []AppliedMigration, log zerolog.Logger) []Migration {
	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}

	var out []Migration
	for _, m := range migrations {
		am, ok := byVersion[m.Version]
		if !ok {
			out = append(out, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			log.Warn().
				Int("version", m.Version).
				Str("name", m.Name).
				Msg("Applied migration differs from the file on disk")
		}
	}
	return out
}

// apply runs every pending migration in order and records it. The
// schema_migrations table is created by the first migration, so the applied
// set is read after it.
func apply(ctx context.Context, exec executor, migrations []Migration, appliedBy string, log zerolog.Logger) (int, error) {
	if len(migrations) == 0 {
		return 0, nil
	}
	if err := exec.Exec(ctx, migrations[0].SQL); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	applied, err := exec.Applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting applied migrations: %w", err)
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	count := 0
	for _, m := range pending(migrations, applied, log) {
		log.Info().Msgf("  [RUN]  %04d_%s", m.Version, m.Name)

		if err := exec.Exec(ctx, m.SQL); err != nil {
			return count, fmt.Errorf("executing migration %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := exec.Exec(ctx, recordSQL,
			bigquery.QueryParameter{Name: "version", Value: m.Version},
			bigquery.QueryParameter{Name: "name", Value: m.Name},
			bigquery.QueryParameter{Name: "checksum", Value: m.Checksum},
			bigquery.QueryParameter{Name: "applied_by", Value: appliedBy},
		); err != nil {
			return count, fmt.Errorf("recording migration %04d_%s: %w", m.Version, m.Name, err)
		}

		log.Info().Msgf("  [OK]   %04d_%s", m.Version, m.Name)
		count++
	}
	return count, nil
}

// recordSQL inserts into the schema_migrations table; {{TABLE}} is filled in
// by bqExecutor.
const recordSQL = `
	INSERT INTO {{TABLE}}
	(version, name, applied_at, checksum, applied_by)
	VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
`

type bqExecutor struct {
	client *bigquery.Client
	table  string
}

func (e *bqExecutor) Exec(ctx context.Context, sql string, params ...bigquery.QueryParameter) error {
	query := e.client.Query(strings.ReplaceAll(sql, "{{TABLE}}", e.table))
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

func (e *bqExecutor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	query := e.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, e.table))

	it, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		am := AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
		}
		if row.Checksum.Valid {
			am.Checksum = row.Checksum.StringVal
		}
		if row.AppliedBy.Valid {
			am.AppliedBy = row.AppliedBy.StringVal
		}

		applied = append(applied, am)
	}

	return applied, nil
}
