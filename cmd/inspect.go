package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iksnae/chat-session/internal"
)

var (
	inspectFormat string
	inspectDrop   string
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [database-path]",
	Short: "Inspect the tab-scoped session store",
	Long: `Inspect the SQLite database that keeps session ids per scope.

This command shows:
  • The session_storage schema
  • Every scope with its stored keys (session id, page-load flag)

Examples:
  chat-session inspect                       # Inspect the configured store
  chat-session inspect --scope tab-1         # Only one scope
  chat-session inspect --format json         # Machine-readable rows
  chat-session inspect --drop tab-1          # Forget a scope, like closing its tab`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dbPath string
		if len(args) > 0 {
			dbPath = args[0]
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("database not found: %w", err)
			}
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dbPath = cfg.Storage.Path
		}

		db, err := internal.OpenDatabase(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()

		out := cmd.OutOrStdout()
		if inspectDrop != "" {
			n, err := internal.DeleteScope(db, inspectDrop)
			if err != nil {
				return err
			}
			internal.PrintSuccess(out, fmt.Sprintf("Removed %d entr(ies) from scope %s", n, inspectDrop))
			return nil
		}

		entries, err := internal.QueryEntries(db, scope)
		if err != nil {
			return err
		}

		switch inspectFormat {
		case "json":
			if entries == nil {
				entries = []internal.StoredEntry{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		case "text":
			return inspectStore(out, db, dbPath, entries)
		default:
			return fmt.Errorf("unsupported format: %s (use text or json)", inspectFormat)
		}
	},
}

func inspectStore(w io.Writer, db *sql.DB, dbPath string, entries []internal.StoredEntry) error {
	_, _ = fmt.Fprintf(w, "📋 Database: %s\n\n", dbPath)

	columns, err := getTableSchema(db, "session_storage")
	if err != nil {
		return fmt.Errorf("failed to get schema: %w", err)
	}
	_, _ = fmt.Fprintf(w, "📐 Schema:\n")
	for _, col := range columns {
		pk := ""
		if col.PrimaryKey {
			pk = " [PRIMARY KEY]"
		}
		notNull := ""
		if col.NotNull {
			notNull = " NOT NULL"
		}
		_, _ = fmt.Fprintf(w, "  • %s: %s%s%s\n", col.Name, col.Type, notNull, pk)
	}
	_, _ = fmt.Fprintln(w)

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "⚠️  No entries stored")
		return nil
	}

	var current string
	for i, e := range entries {
		if e.Scope != current {
			current = e.Scope
			count := 0
			for _, other := range entries[i:] {
				if other.Scope == current {
					count++
				}
			}
			_, _ = fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			_, _ = fmt.Fprintf(w, "📦 Scope: %s (%d entr(ies))\n", current, count)
			_, _ = fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		}

		value := e.Value
		if len(value) > 200 {
			value = value[:200] + "..."
		}
		_, _ = fmt.Fprintf(w, "  • %s: %s (updated %s)\n", e.Key, value, e.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
}

func getTableSchema(db *sql.DB, tableName string) ([]ColumnInfo, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var cid int
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultValue, &pk); err != nil {
			continue
		}
		col.NotNull = notNull == 1
		// composite keys number their columns 1..n
		col.PrimaryKey = pk > 0
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
	inspectCmd.Flags().StringVar(&inspectDrop, "drop", "", "Remove every entry of this scope")
}
