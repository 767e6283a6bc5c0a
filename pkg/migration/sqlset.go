package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/boundary/pkg/schema"
)

// ExecFunc runs one SQL script on a bound connection.
type ExecFunc[C schema.Conn] func(ctx context.Context, conn C, sql string) error

type sqlFile struct {
	Migrations []sqlMigration `yaml:"migrations"`
}

type sqlMigration struct {
	Version int64  `yaml:"version"`
	Name    string `yaml:"name"`
	Up      string `yaml:"up"`
	Down    string `yaml:"down"`
}

// LoadSQLSet builds a Set from a YAML document of the form:
//
//	migrations:
//	  - version: 1
//	    name: create_notes
//	    up: CREATE TABLE notes (id uuid PRIMARY KEY, body text NOT NULL);
//	    down: DROP TABLE notes;
//
// Scripts run unqualified: the engine has already selected the namespace.
func LoadSQLSet[C schema.Conn](data []byte, exec ExecFunc[C]) (*Set[C], error) {
	if exec == nil {
		return nil, errors.Join(ErrInvalidMigrationFile, errors.New("exec func is nil"))
	}

	var f sqlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidMigrationFile, err)
	}

	migrations := make([]Migration[C], 0, len(f.Migrations))
	for _, sm := range f.Migrations {
		up := strings.TrimSpace(sm.Up)
		if up == "" {
			return nil, fmt.Errorf("%w: version %d has an empty up script", ErrInvalidMigrationFile, sm.Version)
		}

		m := Migration[C]{
			Version: sm.Version,
			Name:    sm.Name,
			Up: func(ctx context.Context, conn C) error {
				return exec(ctx, conn, up)
			},
		}
		if down := strings.TrimSpace(sm.Down); down != "" {
			m.Down = func(ctx context.Context, conn C) error {
				return exec(ctx, conn, down)
			}
		}
		migrations = append(migrations, m)
	}

	set, err := NewSet(migrations...)
	if err != nil {
		return nil, errors.Join(ErrInvalidMigrationFile, err)
	}
	return set, nil
}

// LoadSQLSetFile reads a YAML migration file from disk.
func LoadSQLSetFile[C schema.Conn](path string, exec ExecFunc[C]) (*Set[C], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidMigrationFile, err)
	}
	return LoadSQLSet(data, exec)
}
