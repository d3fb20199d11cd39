package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the index database at dbPath
// and brings its schema up to date.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Workspace operations

func (s *SQLiteStorage) createWorkspaceWithQuerier(ctx context.Context, q querier, ws *Workspace) error {
	query := `
		INSERT INTO workspaces (root_path, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query, ws.RootPath, ws.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	ws.ID = id
	ws.CreatedAt = now
	ws.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	return s.createWorkspaceWithQuerier(ctx, s.querier(), ws)
}

func scanWorkspace(row *sql.Row) (*Workspace, error) {
	var ws Workspace
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&ws.ID, &ws.RootPath, &ws.TotalFiles, &ws.IndexVersion,
		&lastIndexedAt, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		ws.LastIndexedAt = lastIndexedAt.Time
	}
	return &ws, nil
}

const workspaceColumns = `id, root_path, total_files, index_version, last_indexed_at, created_at, updated_at`

func (s *SQLiteStorage) getWorkspaceWithQuerier(ctx context.Context, q querier, rootPath string) (*Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE root_path = ?`
	return scanWorkspace(q.QueryRowContext(ctx, query, rootPath))
}

func (s *SQLiteStorage) GetWorkspace(ctx context.Context, rootPath string) (*Workspace, error) {
	return s.getWorkspaceWithQuerier(ctx, s.querier(), rootPath)
}

func (s *SQLiteStorage) getWorkspaceByIDWithQuerier(ctx context.Context, q querier, workspaceID int64) (*Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE id = ?`
	return scanWorkspace(q.QueryRowContext(ctx, query, workspaceID))
}

func (s *SQLiteStorage) GetWorkspaceByID(ctx context.Context, workspaceID int64) (*Workspace, error) {
	return s.getWorkspaceByIDWithQuerier(ctx, s.querier(), workspaceID)
}

func (s *SQLiteStorage) updateWorkspaceWithQuerier(ctx context.Context, q querier, ws *Workspace) error {
	query := `
		UPDATE workspaces
		SET total_files = ?, index_version = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		ws.TotalFiles, ws.IndexVersion, ws.LastIndexedAt, now, ws.ID)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	ws.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateWorkspace(ctx context.Context, ws *Workspace) error {
	return s.updateWorkspaceWithQuerier(ctx, s.querier(), ws)
}

// File operations

func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (workspace_id, path, content_hash, mod_time, size_bytes, parse_error, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			parse_error = excluded.parse_error,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.WorkspaceID, file.Path, file.ContentHash[:],
		file.ModTime, file.SizeBytes, file.ParseError, now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

const fileColumns = `id, workspace_id, path, content_hash, mod_time, size_bytes, parse_error, last_indexed_at, created_at, updated_at`

func scanFile(scan func(dest ...interface{}) error) (*File, error) {
	var file File
	var hash []byte
	var parseError sql.NullString
	err := scan(
		&file.ID, &file.WorkspaceID, &file.Path,
		&hash, &file.ModTime, &file.SizeBytes, &parseError,
		&file.LastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	if parseError.Valid {
		file.ParseError = &parseError.String
	}
	return &file, nil
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, workspaceID int64, path string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE workspace_id = ? AND path = ?`
	return scanFile(q.QueryRowContext(ctx, query, workspaceID, path).Scan)
}

func (s *SQLiteStorage) GetFile(ctx context.Context, workspaceID int64, path string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), workspaceID, path)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, workspaceID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE workspace_id = ? ORDER BY path`
	rows, err := q.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, workspaceID int64) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), workspaceID)
}

func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, workspaceID int64, path string) error {
	query := `DELETE FROM files WHERE workspace_id = ? AND path = ?`
	_, err := q.ExecContext(ctx, query, workspaceID, path)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, workspaceID int64, path string) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), workspaceID, path)
}

// Declaration operations

// replaceDeclarationsWithQuerier swaps a file's declarations wholesale;
// declarations have no identity across parses.
func (s *SQLiteStorage) replaceDeclarationsWithQuerier(ctx context.Context, q querier, fileID int64, decls []*Declaration) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM declarations WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("failed to clear declarations: %w", err)
	}

	query := `
		INSERT INTO declarations (
			file_id, name, title, kind, start_line, end_line,
			start_offset, end_offset, docstring, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for _, d := range decls {
		result, err := q.ExecContext(ctx, query,
			fileID, d.Name, d.Title, d.Kind, d.StartLine, d.EndLine,
			d.StartOffset, d.EndOffset, d.Docstring, now)
		if err != nil {
			return fmt.Errorf("failed to insert declaration: %w", err)
		}
		if id, err := result.LastInsertId(); err == nil {
			d.ID = id
		}
		d.FileID = fileID
		d.CreatedAt = now
	}
	return nil
}

func (s *SQLiteStorage) ReplaceDeclarations(ctx context.Context, fileID int64, decls []*Declaration) error {
	return s.replaceDeclarationsWithQuerier(ctx, s.querier(), fileID, decls)
}

const declarationColumns = `id, file_id, name, title, kind, start_line, end_line, start_offset, end_offset, docstring, created_at`

func scanDeclaration(scan func(dest ...interface{}) error) (*Declaration, error) {
	var d Declaration
	err := scan(
		&d.ID, &d.FileID, &d.Name, &d.Title, &d.Kind,
		&d.StartLine, &d.EndLine, &d.StartOffset, &d.EndOffset,
		&d.Docstring, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStorage) listDeclarationsByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Declaration, error) {
	query := `SELECT ` + declarationColumns + ` FROM declarations WHERE file_id = ? ORDER BY start_offset`
	rows, err := q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	decls := make([]*Declaration, 0)
	for rows.Next() {
		d, err := scanDeclaration(rows.Scan)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

func (s *SQLiteStorage) ListDeclarationsByFile(ctx context.Context, fileID int64) ([]*Declaration, error) {
	return s.listDeclarationsByFileWithQuerier(ctx, s.querier(), fileID)
}

// searchDeclarationsWithQuerier does case-insensitive substring matching
// over declaration names, ranking prefix matches first.
func (s *SQLiteStorage) searchDeclarationsWithQuerier(ctx context.Context, q querier, workspaceID int64, query string, limit int) ([]*SearchResult, error) {
	pattern := "%" + escapeLike(query) + "%"
	prefix := escapeLike(query) + "%"
	sqlQuery := `
		SELECT d.id, d.file_id, d.name, d.title, d.kind, d.start_line, d.end_line,
		       d.start_offset, d.end_offset, d.docstring, d.created_at, f.path
		FROM declarations d
		JOIN files f ON d.file_id = f.id
		WHERE f.workspace_id = ? AND d.name LIKE ? ESCAPE '\'
		ORDER BY (d.name LIKE ? ESCAPE '\') DESC, d.name, f.path, d.start_line
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, workspaceID, pattern, prefix, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]*SearchResult, 0)
	for rows.Next() {
		var r SearchResult
		err := rows.Scan(
			&r.ID, &r.FileID, &r.Name, &r.Title, &r.Kind,
			&r.StartLine, &r.EndLine, &r.StartOffset, &r.EndOffset,
			&r.Docstring, &r.CreatedAt, &r.FilePath,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) SearchDeclarations(ctx context.Context, workspaceID int64, query string, limit int) ([]*SearchResult, error) {
	return s.searchDeclarationsWithQuerier(ctx, s.querier(), workspaceID, query, limit)
}

// escapeLike escapes LIKE metacharacters in user-supplied query text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context, workspaceID int64) (*WorkspaceStatus, error) {
	ws, err := s.GetWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	status := &WorkspaceStatus{
		Workspace:     ws,
		LastIndexedAt: ws.LastIndexedAt,
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE workspace_id = ?", workspaceID).Scan(&status.FilesCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE workspace_id = ? AND parse_error IS NOT NULL", workspaceID).Scan(&status.ParseErrorCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM declarations d
		JOIN files f ON d.file_id = f.id
		WHERE f.workspace_id = ?
	`, workspaceID).Scan(&status.DeclarationsCount)
	if err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}

// Transaction implementations delegate to the internal helpers that take
// a querier, so the same SQL runs inside and outside transactions.

func (t *sqliteTx) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	return t.storage.createWorkspaceWithQuerier(ctx, t.querier(), ws)
}

func (t *sqliteTx) GetWorkspace(ctx context.Context, rootPath string) (*Workspace, error) {
	return t.storage.getWorkspaceWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) GetWorkspaceByID(ctx context.Context, workspaceID int64) (*Workspace, error) {
	return t.storage.getWorkspaceByIDWithQuerier(ctx, t.querier(), workspaceID)
}

func (t *sqliteTx) UpdateWorkspace(ctx context.Context, ws *Workspace) error {
	return t.storage.updateWorkspaceWithQuerier(ctx, t.querier(), ws)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, workspaceID int64, path string) (*File, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), workspaceID, path)
}

func (t *sqliteTx) ListFiles(ctx context.Context, workspaceID int64) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), workspaceID)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, workspaceID int64, path string) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), workspaceID, path)
}

func (t *sqliteTx) ReplaceDeclarations(ctx context.Context, fileID int64, decls []*Declaration) error {
	return t.storage.replaceDeclarationsWithQuerier(ctx, t.querier(), fileID, decls)
}

func (t *sqliteTx) ListDeclarationsByFile(ctx context.Context, fileID int64) ([]*Declaration, error) {
	return t.storage.listDeclarationsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) SearchDeclarations(ctx context.Context, workspaceID int64, query string, limit int) ([]*SearchResult, error) {
	return t.storage.searchDeclarationsWithQuerier(ctx, t.querier(), workspaceID, query, limit)
}

func (t *sqliteTx) GetStatus(ctx context.Context, workspaceID int64) (*WorkspaceStatus, error) {
	return t.storage.GetStatus(ctx, workspaceID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite has no true nested transactions; refuse rather than mislead
	return nil, errors.New("nested transactions not supported")
}
