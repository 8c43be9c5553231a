package catalog

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrTableNotFound is returned when the targeted table doesn't exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableAlreadyExists is returned when creating a table with the name
	// of an existing one.
	ErrTableAlreadyExists = errors.New("table already exists")

	// ErrIndexNotFound is returned when the targeted index doesn't exist.
	ErrIndexNotFound = errors.New("index not found")
)

// Catalog is the registry of tables. It owns every TableInfo
// and outlives the cursors that reference them.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*TableInfo
	byID   map[uint32]*TableInfo
	nextID uint32
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		tables: make(map[string]*TableInfo),
		byID:   make(map[uint32]*TableInfo),
		nextID: 1,
	}
}

// CreateTable registers a table and assigns it an id.
func (c *Catalog) CreateTable(info *TableInfo) (*TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tables[info.Name]; ok {
		return nil, errors.Wrapf(ErrTableAlreadyExists, "table %q", info.Name)
	}

	ti := *info
	ti.Columns = append([]ColumnInfo(nil), info.Columns...)
	ti.Indexes = append([]IndexInfo(nil), info.Indexes...)
	err := ti.init()
	if err != nil {
		return nil, err
	}

	ti.ID = c.nextID
	c.nextID++

	c.tables[ti.Name] = &ti
	c.byID[ti.ID] = &ti
	return &ti, nil
}

// GetTable returns a table by name.
func (c *Catalog) GetTable(name string) (*TableInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ti, ok := c.tables[name]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "table %q", name)
	}

	return ti, nil
}

// GetTableByID returns a table by id.
func (c *Catalog) GetTableByID(id uint32) (*TableInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ti, ok := c.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "table #%d", id)
	}

	return ti, nil
}

// ListTables returns the names of all the tables, sorted.
func (c *Catalog) ListTables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// DropTable removes a table from the catalog.
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ti, ok := c.tables[name]
	if !ok {
		return errors.Wrapf(ErrTableNotFound, "table %q", name)
	}

	delete(c.tables, name)
	delete(c.byID, ti.ID)
	return nil
}
