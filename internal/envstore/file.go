package envstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bcnelson/env-manager/internal/domain"
)

// fileDocument is the on-disk layout of a File backend.
type fileDocument struct {
	User   map[string]string `json:"user"`
	System map[string]string `json:"system"`
}

func (d *fileDocument) scope(scope domain.Scope) (map[string]string, error) {
	switch scope {
	case domain.ScopeUser:
		if d.User == nil {
			d.User = make(map[string]string)
		}
		return d.User, nil
	case domain.ScopeSystem:
		if d.System == nil {
			d.System = make(map[string]string)
		}
		return d.System, nil
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", domain.ErrInvalidInput, scope)
	}
}

// File keeps the environment in a JSON file. It stands in for the registry
// on hosts without one and in tests.
type File struct {
	filePath string
	mu       sync.RWMutex
	logger   *slog.Logger
}

// Ensure File implements Backend.
var _ Backend = (*File)(nil)

// NewFile creates a file backend. The file is created on first write.
func NewFile(filePath string, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{filePath: filePath, logger: logger}
}

// List returns every variable in the file.
func (f *File) List(ctx context.Context) ([]domain.EnvironmentVariable, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}

	vars := make([]domain.EnvironmentVariable, 0, len(doc.User)+len(doc.System))
	for name, value := range doc.System {
		vars = append(vars, domain.EnvironmentVariable{Name: name, Value: value, Scope: domain.ScopeSystem})
	}
	for name, value := range doc.User {
		vars = append(vars, domain.EnvironmentVariable{Name: name, Value: value, Scope: domain.ScopeUser})
	}
	SortVariables(vars)
	return vars, nil
}

// Set creates or overwrites a variable.
func (f *File) Set(ctx context.Context, scope domain.Scope, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	vars, err := doc.scope(scope)
	if err != nil {
		return err
	}
	vars[name] = value
	if err := f.write(doc); err != nil {
		return err
	}

	f.logger.Debug("variable written", "scope", scope, "name", name, "file", f.filePath)
	return nil
}

// Delete removes a variable.
func (f *File) Delete(ctx context.Context, scope domain.Scope, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	vars, err := doc.scope(scope)
	if err != nil {
		return err
	}
	if _, ok := vars[name]; !ok {
		return fmt.Errorf("variable %s (%s): %w", name, scope, domain.ErrNotFound)
	}
	delete(vars, name)
	if err := f.write(doc); err != nil {
		return err
	}

	f.logger.Debug("variable deleted", "scope", scope, "name", name, "file", f.filePath)
	return nil
}

func (f *File) read() (*fileDocument, error) {
	doc := &fileDocument{}
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("reading environment file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing environment file: %w", err)
	}
	return doc, nil
}

func (f *File) write(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling environment: %w", err)
	}

	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating environment directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".environment-*.json")
	if err != nil {
		return fmt.Errorf("writing environment file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing environment file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing environment file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.filePath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing environment file: %w", err)
	}
	return nil
}
