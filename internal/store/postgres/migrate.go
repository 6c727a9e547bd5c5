package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"sale-service/internal/util"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every embedded migration for direction ("up" or "down").
// Down migrations run in reverse order.
func Migrate(ctx context.Context, db *sqlx.DB, direction string) (int, error) {
	if direction != "up" && direction != "down" {
		return 0, fmt.Errorf("direction must be 'up' or 'down', got %q", direction)
	}

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/*.%s.sql", direction))
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}

	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	logger := util.GetLogger()
	for _, name := range files {
		content, err := migrationFS.ReadFile(name)
		if err != nil {
			return 0, fmt.Errorf("read migration %s: %w", name, err)
		}

		logger.Info("Running migration", zap.String("file", strings.TrimPrefix(name, "migrations/")))
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return 0, fmt.Errorf("execute migration %s: %w", name, err)
		}
	}

	return len(files), nil
}
