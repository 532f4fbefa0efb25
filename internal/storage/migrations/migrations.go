// Package migrations holds the embedded record schema for each SQL backend
// and applies it in file name order.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"cloudboost-metrics/internal/logging"
)

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

func logger() *slog.Logger { return logging.Component("migrations") }

type migration struct {
	name string
	body string
}

// load reads the .sql files in dir sorted by name, skipping empty files.
func load(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s migrations: %w", dir, err)
	}
	var out []migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, migration{name: e.Name(), body: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// statements splits a script on semicolons that are outside single-quoted
// literals and $$ bodies. Line comments are dropped.
func statements(script string) []string {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		dollars bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case quoted:
			cur.WriteByte(c)
			if c == '\'' {
				if i+1 < len(script) && script[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
					continue
				}
				quoted = false
			}
		case dollars:
			if strings.HasPrefix(script[i:], "$$") {
				cur.WriteString("$$")
				i++
				dollars = false
				continue
			}
			cur.WriteByte(c)
		case c == '\'':
			quoted = true
			cur.WriteByte(c)
		case strings.HasPrefix(script[i:], "$$"):
			dollars = true
			cur.WriteString("$$")
			i++
		case strings.HasPrefix(script[i:], "--"):
			for i < len(script) && script[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}
