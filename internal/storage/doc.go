// Package storage provides SQLite-based persistence for indexed Python
// workspaces.
//
// The storage layer manages:
//   - Workspace metadata
//   - File information and content hashes
//   - Declarations (functions, classes, methods) with docstrings
//
// # Database Schema
//
// Tables:
//   - workspaces: Workspace metadata (root path, index version)
//   - files: File paths, SHA-256 hashes, and last parse errors
//   - declarations: Extracted declarations with line/offset spans
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.introspector/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	ws := &storage.Workspace{RootPath: "/home/me/project", IndexVersion: "1"}
//	if err := db.CreateWorkspace(ctx, ws); err != nil {
//	    log.Fatal(err)
//	}
//
// # Transactions
//
// Use transactions for atomic per-file updates:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	if err := tx.ReplaceDeclarations(ctx, file.ID, decls); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Drivers
//
// Two SQLite drivers are supported behind build tags: modernc.org/sqlite
// (pure Go, the default) and github.com/mattn/go-sqlite3 (CGO, enabled
// with -tags sqlite_cgo). Both run the same schema and SQL.
package storage
