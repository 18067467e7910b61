package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if driver == "sqlite3" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ============================================
// Groups
// ============================================

type groupRow struct {
	Name      string    `db:"name"`
	Remark    string    `db:"remark"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type itemRow struct {
	GroupName string `db:"group_name"`
	Name      string `db:"name"`
	Position  int    `db:"position"`
	Remark    string `db:"remark"`
	Selected  bool   `db:"selected"`
}

type variableRow struct {
	GroupName string `db:"group_name"`
	ItemName  string `db:"item_name"`
	Position  int    `db:"position"`
	Name      string `db:"name"`
	Value     string `db:"value"`
	Scope     string `db:"scope"`
	Remark    string `db:"remark"`
}

func saveGroup(ctx context.Context, db dbInterface, group *domain.Group) error {
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	_, err := db.ExecContext(ctx,
		`INSERT INTO env_groups (name, remark, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET remark = excluded.remark, updated_at = excluded.updated_at`,
		group.Name, group.Remark, group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return wrapUniqueError(err)
	}
	if err := db.GetContext(ctx, &group.CreatedAt,
		`SELECT created_at FROM env_groups WHERE name = $1`, group.Name); err != nil {
		return err
	}

	// Replace the items wholesale; children first so foreign keys hold.
	if _, err := db.ExecContext(ctx, `DELETE FROM env_item_variables WHERE group_name = $1`, group.Name); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM env_group_items WHERE group_name = $1`, group.Name); err != nil {
		return err
	}
	for i, item := range group.Items {
		_, err := db.ExecContext(ctx,
			`INSERT INTO env_group_items (group_name, name, position, remark, selected)
			 VALUES ($1, $2, $3, $4, $5)`,
			group.Name, item.Name, i, item.Remark, item.Selected)
		if err != nil {
			return fmt.Errorf("item %q: %w", item.Name, wrapUniqueError(err))
		}
		for j, v := range item.Variables {
			_, err := db.ExecContext(ctx,
				`INSERT INTO env_item_variables (group_name, item_name, position, name, value, scope, remark)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				group.Name, item.Name, j, v.Name, v.Value, string(v.Scope), v.Remark)
			if err != nil {
				return fmt.Errorf("item %q variable %q: %w", item.Name, v.Name, err)
			}
		}
	}
	return nil
}

func (s *Store) SaveGroup(ctx context.Context, group *domain.Group) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveGroup(ctx, tx, group); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *Tx) SaveGroup(ctx context.Context, group *domain.Group) error {
	return saveGroup(ctx, t.tx, group)
}

// assembleGroups builds groups from their rows, keeping the row order of
// groups and the stored position of items and variables.
func assembleGroups(groups []groupRow, items []itemRow, vars []variableRow) []*domain.Group {
	result := make([]*domain.Group, 0, len(groups))
	byName := make(map[string]*domain.Group, len(groups))
	for _, g := range groups {
		group := &domain.Group{
			Name:      g.Name,
			Remark:    g.Remark,
			Items:     []domain.GroupItem{},
			CreatedAt: g.CreatedAt,
			UpdatedAt: g.UpdatedAt,
		}
		byName[g.Name] = group
		result = append(result, group)
	}

	type itemKey struct{ group, item string }
	itemIndex := make(map[itemKey]int, len(items))
	for _, it := range items {
		group, ok := byName[it.GroupName]
		if !ok {
			continue
		}
		itemIndex[itemKey{it.GroupName, it.Name}] = len(group.Items)
		group.Items = append(group.Items, domain.GroupItem{
			Name:      it.Name,
			Remark:    it.Remark,
			Selected:  it.Selected,
			Variables: []domain.EnvironmentVariable{},
		})
	}

	for _, v := range vars {
		group, ok := byName[v.GroupName]
		if !ok {
			continue
		}
		idx, ok := itemIndex[itemKey{v.GroupName, v.ItemName}]
		if !ok {
			continue
		}
		group.Items[idx].Variables = append(group.Items[idx].Variables, domain.EnvironmentVariable{
			Name:   v.Name,
			Value:  v.Value,
			Scope:  domain.Scope(v.Scope),
			Remark: v.Remark,
		})
	}
	return result
}

func getGroup(ctx context.Context, db dbInterface, name string) (*domain.Group, error) {
	var group groupRow
	err := db.GetContext(ctx, &group,
		`SELECT name, remark, created_at, updated_at FROM env_groups WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var items []itemRow
	if err := db.SelectContext(ctx, &items,
		`SELECT group_name, name, position, remark, selected FROM env_group_items
		 WHERE group_name = $1 ORDER BY position`, name); err != nil {
		return nil, err
	}
	var vars []variableRow
	if err := db.SelectContext(ctx, &vars,
		`SELECT group_name, item_name, position, name, value, scope, remark FROM env_item_variables
		 WHERE group_name = $1 ORDER BY item_name, position`, name); err != nil {
		return nil, err
	}
	return assembleGroups([]groupRow{group}, items, vars)[0], nil
}

func (s *Store) GetGroup(ctx context.Context, name string) (*domain.Group, error) {
	return getGroup(ctx, s.db, name)
}

func (t *Tx) GetGroup(ctx context.Context, name string) (*domain.Group, error) {
	return getGroup(ctx, t.tx, name)
}

func listGroups(ctx context.Context, db dbInterface) ([]*domain.Group, error) {
	var groups []groupRow
	if err := db.SelectContext(ctx, &groups,
		`SELECT name, remark, created_at, updated_at FROM env_groups ORDER BY name`); err != nil {
		return nil, err
	}
	var items []itemRow
	if err := db.SelectContext(ctx, &items,
		`SELECT group_name, name, position, remark, selected FROM env_group_items
		 ORDER BY group_name, position`); err != nil {
		return nil, err
	}
	var vars []variableRow
	if err := db.SelectContext(ctx, &vars,
		`SELECT group_name, item_name, position, name, value, scope, remark FROM env_item_variables
		 ORDER BY group_name, item_name, position`); err != nil {
		return nil, err
	}
	return assembleGroups(groups, items, vars), nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	return listGroups(ctx, s.db)
}

func (t *Tx) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	return listGroups(ctx, t.tx)
}

func deleteGroup(ctx context.Context, db dbInterface, name string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM env_item_variables WHERE group_name = $1`, name); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM env_group_items WHERE group_name = $1`, name); err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, `DELETE FROM env_groups WHERE name = $1`, name)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, name string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteGroup(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *Tx) DeleteGroup(ctx context.Context, name string) error {
	return deleteGroup(ctx, t.tx, name)
}

// ============================================
// Properties
// ============================================

func setProperty(ctx context.Context, db dbInterface, prop *domain.Property) error {
	prop.UpdatedAt = time.Now().UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO env_properties (name, scope, remark, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name, scope) DO UPDATE SET remark = excluded.remark, updated_at = excluded.updated_at`,
		prop.Name, string(prop.Scope), prop.Remark, prop.UpdatedAt)
	return err
}

func (s *Store) SetProperty(ctx context.Context, prop *domain.Property) error {
	return setProperty(ctx, s.db, prop)
}

func (t *Tx) SetProperty(ctx context.Context, prop *domain.Property) error {
	return setProperty(ctx, t.tx, prop)
}

func getProperty(ctx context.Context, db dbInterface, name string, scope domain.Scope) (*domain.Property, error) {
	var prop domain.Property
	err := db.GetContext(ctx, &prop,
		`SELECT name, scope, remark, updated_at FROM env_properties WHERE name = $1 AND scope = $2`,
		name, string(scope))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return &prop, err
}

func (s *Store) GetProperty(ctx context.Context, name string, scope domain.Scope) (*domain.Property, error) {
	return getProperty(ctx, s.db, name, scope)
}

func (t *Tx) GetProperty(ctx context.Context, name string, scope domain.Scope) (*domain.Property, error) {
	return getProperty(ctx, t.tx, name, scope)
}

func listProperties(ctx context.Context, db dbInterface) ([]*domain.Property, error) {
	props := []*domain.Property{}
	err := db.SelectContext(ctx, &props,
		`SELECT name, scope, remark, updated_at FROM env_properties ORDER BY scope, name`)
	return props, err
}

func (s *Store) ListProperties(ctx context.Context) ([]*domain.Property, error) {
	return listProperties(ctx, s.db)
}

func (t *Tx) ListProperties(ctx context.Context) ([]*domain.Property, error) {
	return listProperties(ctx, t.tx)
}

func deleteProperty(ctx context.Context, db dbInterface, name string, scope domain.Scope) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM env_properties WHERE name = $1 AND scope = $2`, name, string(scope))
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProperty(ctx context.Context, name string, scope domain.Scope) error {
	return deleteProperty(ctx, s.db, name, scope)
}

func (t *Tx) DeleteProperty(ctx context.Context, name string, scope domain.Scope) error {
	return deleteProperty(ctx, t.tx, name, scope)
}

// ============================================
// Activations
// ============================================

func createActivation(ctx context.Context, db dbInterface, a *domain.Activation) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO activations (id, group_name, item_name, status, error, applied_count, created_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.GroupName, a.ItemName, a.Status, a.Error, a.AppliedCount, a.CreatedAt, a.FinishedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateActivation(ctx context.Context, a *domain.Activation) error {
	return createActivation(ctx, s.db, a)
}

func (t *Tx) CreateActivation(ctx context.Context, a *domain.Activation) error {
	return createActivation(ctx, t.tx, a)
}

func getActivation(ctx context.Context, db dbInterface, id string) (*domain.Activation, error) {
	var a domain.Activation
	err := db.GetContext(ctx, &a,
		`SELECT id, group_name, item_name, status, error, applied_count, created_at, finished_at
		 FROM activations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return &a, err
}

func (s *Store) GetActivation(ctx context.Context, id string) (*domain.Activation, error) {
	return getActivation(ctx, s.db, id)
}

func (t *Tx) GetActivation(ctx context.Context, id string) (*domain.Activation, error) {
	return getActivation(ctx, t.tx, id)
}

func listActivations(ctx context.Context, db dbInterface, limit, offset int) ([]*domain.Activation, error) {
	activations := []*domain.Activation{}
	err := db.SelectContext(ctx, &activations,
		`SELECT id, group_name, item_name, status, error, applied_count, created_at, finished_at
		 FROM activations ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	return activations, err
}

func (s *Store) ListActivations(ctx context.Context, limit, offset int) ([]*domain.Activation, error) {
	return listActivations(ctx, s.db, limit, offset)
}

func (t *Tx) ListActivations(ctx context.Context, limit, offset int) ([]*domain.Activation, error) {
	return listActivations(ctx, t.tx, limit, offset)
}

func updateActivation(ctx context.Context, db dbInterface, a *domain.Activation) error {
	result, err := db.ExecContext(ctx,
		`UPDATE activations SET status = $1, error = $2, applied_count = $3, finished_at = $4 WHERE id = $5`,
		a.Status, a.Error, a.AppliedCount, a.FinishedAt, a.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateActivation(ctx context.Context, a *domain.Activation) error {
	return updateActivation(ctx, s.db, a)
}

func (t *Tx) UpdateActivation(ctx context.Context, a *domain.Activation) error {
	return updateActivation(ctx, t.tx, a)
}
