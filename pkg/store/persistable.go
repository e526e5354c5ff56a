package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/football"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by FindByPrimaryKey when no row matches
var ErrNotFound = errors.New("record not found")

// Persistable interface defines methods that persistent objects must implement.
// Columns are described with struct tags: column, dbtype, primary and index.
type Persistable interface {
	GetTableName() string
	GetPrimaryKey() map[string]interface{}
	SetPrimaryKey(map[string]interface{}) error
	BeforeSave() error
	AfterSave() error
	BeforeDelete() error
	AfterDelete() error
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Session runs persistence operations against a database or an open transaction
type Session struct {
	q      querier
	driver string
}

// Store owns the database connection
type Store struct {
	Session
	db *sql.DB
}

// Open connects to the configured database and creates the tables
func Open(cfg config.StoreConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverSQLite
	}
	if driver == config.DriverSQLite && cfg.DSN != ":memory:" && !strings.HasPrefix(cfg.DSN, "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == config.DriverSQLite {
		// a single connection serialises writers and keeps :memory: databases alive
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database initialized successfully", driver)

	s := &Store{Session: Session{q: db, driver: driver}, db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Transaction runs fn inside a transaction, committing only when fn succeeds
func (s *Store) Transaction(fn func(tx *Session) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Session{q: tx, driver: s.driver}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// BulkSave saves multiple objects in a single transaction
func (s *Store) BulkSave(objects []Persistable) error {
	return s.Transaction(func(tx *Session) error {
		for _, obj := range objects {
			if err := tx.Save(obj); err != nil {
				return fmt.Errorf("failed to save object: %w", err)
			}
		}
		return nil
	})
}

// createTables creates all necessary database tables
func (s *Store) createTables() error {
	logger.Debug("Creating database tables")
	for _, obj := range []Persistable{&football.Match{}, &Artifact{}, &Head{}, &PredictionRecord{}} {
		if err := s.CreateTable(obj); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders into the $N form postgres expects
func (s *Session) rebind(query string) string {
	if s.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Session) exec(query string, args ...interface{}) (sql.Result, error) {
	return s.q.Exec(s.rebind(query), args...)
}

// CreateTable creates a table for the given persistable object using struct tags
func (s *Session) CreateTable(obj Persistable) error {
	tableName := obj.GetTableName()
	createSQL := generateCreateTableSQL(obj, tableName)

	logger.Debug("Creating table with SQL", createSQL)

	if _, err := s.exec(createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	for _, query := range generateIndexSQL(obj, tableName) {
		logger.Debug("Creating index with SQL", query)
		if _, err := s.exec(query); err != nil {
			logger.Warn("Failed to create index", err)
		}
	}
	return nil
}

// persistedFields walks the exported fields that carry a dbtype tag
func persistedFields(t reflect.Type, fn func(i int, field reflect.StructField, column string)) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Tag.Get("persist") == "false" || field.Tag.Get("db") == "-" {
			continue
		}
		if field.Tag.Get("dbtype") == "" {
			continue
		}
		columnName := field.Tag.Get("column")
		if columnName == "" {
			columnName = strings.ToLower(field.Name)
		}
		fn(i, field, columnName)
	}
}

func structOf(obj interface{}) (reflect.Value, reflect.Type) {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v, v.Type()
}

// generateCreateTableSQL generates CREATE TABLE SQL from struct tags
func generateCreateTableSQL(obj interface{}, tableName string) string {
	_, objType := structOf(obj)

	var columns []string
	var primaryKeys []string

	persistedFields(objType, func(_ int, field reflect.StructField, columnName string) {
		dbType := field.Tag.Get("dbtype")
		if field.Tag.Get("primary") == "true" {
			primaryKeys = append(primaryKeys, columnName)
			dbType = strings.TrimSpace(strings.ReplaceAll(dbType, "PRIMARY KEY", ""))
		}
		columns = append(columns, fmt.Sprintf("%s %s", columnName, dbType))
	})

	if len(primaryKeys) > 0 {
		columns = append(columns, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primaryKeys, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName, strings.Join(columns, ", "))
}

// generateIndexSQL generates index creation SQL from struct tags
func generateIndexSQL(obj interface{}, tableName string) []string {
	_, objType := structOf(obj)
	var indexSQL []string
	persistedFields(objType, func(_ int, field reflect.StructField, columnName string) {
		if field.Tag.Get("index") == "" {
			return
		}
		indexName := fmt.Sprintf("idx_%s_%s", tableName, columnName)
		indexSQL = append(indexSQL, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", indexName, tableName, columnName))
	})
	return indexSQL
}

// Save persists the object to the database (INSERT or UPDATE)
func (s *Session) Save(obj Persistable) error {
	if err := obj.BeforeSave(); err != nil {
		return fmt.Errorf("before save hook failed: %w", err)
	}

	exists, err := s.Exists(obj)
	if err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	if exists {
		err = s.update(obj)
	} else {
		err = s.insert(obj)
	}
	if err != nil {
		return err
	}

	if err := obj.AfterSave(); err != nil {
		return fmt.Errorf("after save hook failed: %w", err)
	}
	return nil
}

// Insert adds a new record, failing if it already exists
func (s *Session) Insert(obj Persistable) error {
	if err := obj.BeforeSave(); err != nil {
		return fmt.Errorf("before save hook failed: %w", err)
	}
	if err := s.insert(obj); err != nil {
		return err
	}
	return obj.AfterSave()
}

func (s *Session) insert(obj Persistable) error {
	tableName := obj.GetTableName()
	columns, placeholders, values := getInsertData(obj)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	logger.Debug("Insert SQL", query)

	if _, err := s.exec(query, values...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", tableName, err)
	}
	return nil
}

func (s *Session) update(obj Persistable) error {
	tableName := obj.GetTableName()
	setPairs, values := getUpdateData(obj)
	if len(setPairs) == 0 {
		return nil
	}

	whereClause, whereValues := buildWhereClause(obj.GetPrimaryKey())
	values = append(values, whereValues...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", tableName, strings.Join(setPairs, ", "), whereClause)
	logger.Debug("Update SQL", query)

	if _, err := s.exec(query, values...); err != nil {
		return fmt.Errorf("failed to update %s: %w", tableName, err)
	}
	return nil
}

// getInsertData extracts column names, placeholders, and values for INSERT
func getInsertData(obj interface{}) ([]string, []string, []interface{}) {
	objValue, objType := structOf(obj)

	var columns []string
	var placeholders []string
	var values []interface{}
	persistedFields(objType, func(i int, _ reflect.StructField, columnName string) {
		columns = append(columns, columnName)
		placeholders = append(placeholders, "?")
		values = append(values, objValue.Field(i).Interface())
	})
	return columns, placeholders, values
}

// getUpdateData extracts SET pairs and values for UPDATE, primary key fields excluded
func getUpdateData(obj interface{}) ([]string, []interface{}) {
	objValue, objType := structOf(obj)

	var setPairs []string
	var values []interface{}
	persistedFields(objType, func(i int, field reflect.StructField, columnName string) {
		if field.Tag.Get("primary") == "true" {
			return
		}
		setPairs = append(setPairs, fmt.Sprintf("%s = ?", columnName))
		values = append(values, objValue.Field(i).Interface())
	})
	return setPairs, values
}

// getSelectData extracts column names and scan destinations for SELECT
func getSelectData(obj interface{}) ([]string, []interface{}) {
	objValue, objType := structOf(obj)

	var columns []string
	var destinations []interface{}
	persistedFields(objType, func(i int, _ reflect.StructField, columnName string) {
		columns = append(columns, columnName)
		destinations = append(destinations, objValue.Field(i).Addr().Interface())
	})
	return columns, destinations
}

// Exists checks if the object exists in the database
func (s *Session) Exists(obj Persistable) (bool, error) {
	tableName := obj.GetTableName()
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", tableName, whereClause)

	var count int
	if err := s.q.QueryRow(s.rebind(query), values...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence in %s: %w", tableName, err)
	}
	return count > 0, nil
}

// Delete removes the object from the database
func (s *Session) Delete(obj Persistable) error {
	if err := obj.BeforeDelete(); err != nil {
		return fmt.Errorf("before delete hook failed: %w", err)
	}

	tableName := obj.GetTableName()
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())

	query := fmt.Sprintf("DELETE FROM %s WHERE %s", tableName, whereClause)
	if _, err := s.exec(query, values...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", tableName, err)
	}

	if err := obj.AfterDelete(); err != nil {
		return fmt.Errorf("after delete hook failed: %w", err)
	}
	return nil
}

// FindByPrimaryKey fills obj from the row with the given primary key
func (s *Session) FindByPrimaryKey(obj Persistable, primaryKey map[string]interface{}) error {
	tableName := obj.GetTableName()
	columns, destinations := getSelectData(obj)
	whereClause, values := buildWhereClause(primaryKey)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), tableName, whereClause)
	logger.Debug("FindByPrimaryKey SQL", query)

	err := s.q.QueryRow(s.rebind(query), values...).Scan(destinations...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w in %s", ErrNotFound, tableName)
		}
		return fmt.Errorf("failed to scan row from %s: %w", tableName, err)
	}
	return nil
}

// FindAll retrieves all records of the given type, ordered by orderBy when it is not empty
func (s *Session) FindAll(obj Persistable, orderBy string) ([]interface{}, error) {
	if orderBy == "" {
		return s.find(obj, "", nil)
	}
	return s.find(obj, " ORDER BY "+orderBy, nil)
}

// FindWhere executes a custom WHERE query, which may carry an ORDER BY
func (s *Session) FindWhere(obj Persistable, whereClause string, args ...interface{}) ([]interface{}, error) {
	return s.find(obj, " WHERE "+whereClause, args)
}

func (s *Session) find(obj Persistable, suffix string, args []interface{}) ([]interface{}, error) {
	tableName := obj.GetTableName()
	columns, _ := getSelectData(obj)

	query := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(columns, ", "), tableName, suffix)
	logger.Debug("Find SQL", query)

	rows, err := s.q.Query(s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableName, err)
	}
	defer rows.Close()

	_, objType := structOf(obj)
	var results []interface{}
	for rows.Next() {
		newObj := reflect.New(objType).Interface()
		_, destinations := getSelectData(newObj)
		if err := rows.Scan(destinations...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", tableName, err)
		}
		results = append(results, newObj)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from %s: %w", tableName, err)
	}
	return results, nil
}

// buildWhereClause builds a WHERE clause from a primary key map, columns in name order
func buildWhereClause(primaryKey map[string]interface{}) (string, []interface{}) {
	keys := make([]string, 0, len(primaryKey))
	for column := range primaryKey {
		keys = append(keys, column)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	values := make([]interface{}, 0, len(keys))
	for _, column := range keys {
		conditions = append(conditions, fmt.Sprintf("%s = ?", column))
		values = append(values, primaryKey[column])
	}
	return strings.Join(conditions, " AND "), values
}
