package storage

import (
	"context"
	"time"
)

// Storage persists indexed Python workspaces: tracked files and the
// declarations extracted from them.
type Storage interface {
	// Workspace operations
	CreateWorkspace(ctx context.Context, ws *Workspace) error
	GetWorkspace(ctx context.Context, rootPath string) (*Workspace, error)
	GetWorkspaceByID(ctx context.Context, workspaceID int64) (*Workspace, error)
	UpdateWorkspace(ctx context.Context, ws *Workspace) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, workspaceID int64, path string) (*File, error)
	ListFiles(ctx context.Context, workspaceID int64) ([]*File, error)
	DeleteFile(ctx context.Context, workspaceID int64, path string) error

	// Declaration operations
	ReplaceDeclarations(ctx context.Context, fileID int64, decls []*Declaration) error
	ListDeclarationsByFile(ctx context.Context, fileID int64) ([]*Declaration, error)
	SearchDeclarations(ctx context.Context, workspaceID int64, query string, limit int) ([]*SearchResult, error)

	// Status operations
	GetStatus(ctx context.Context, workspaceID int64) (*WorkspaceStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transactional view of Storage.
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// Workspace is one indexed Python source tree.
type Workspace struct {
	ID            int64
	RootPath      string
	TotalFiles    int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File is one tracked Python source file. Path is relative to the
// workspace root. ParseError holds the message of the last failed parse;
// nil means the file parsed cleanly.
type File struct {
	ID            int64
	WorkspaceID   int64
	Path          string
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	ParseError    *string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Declaration is one function, class, or method extracted from a file's
// navigation index, with its docstring when present.
type Declaration struct {
	ID          int64
	FileID      int64
	Name        string
	Title       string
	Kind        string // function, class, method
	StartLine   int
	EndLine     int
	StartOffset int
	EndOffset   int
	Docstring   string
	CreatedAt   time.Time
}

// SearchResult is one declaration match with the file it came from.
type SearchResult struct {
	Declaration
	FilePath string
}

// WorkspaceStatus aggregates index statistics for one workspace.
type WorkspaceStatus struct {
	Workspace         *Workspace
	FilesCount        int
	DeclarationsCount int
	ParseErrorCount   int
	IndexSizeMB       float64
	LastIndexedAt     time.Time
}
