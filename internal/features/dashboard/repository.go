package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go-chainwatch/internal/config"
	"go-chainwatch/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DashboardRepository persists the whole dashboard collection as a single
// JSON document under a fixed key.
type DashboardRepository interface {
	// Load returns nil when nothing has been stored yet.
	Load(ctx context.Context) ([]Dashboard, error)
	Save(ctx context.Context, dashboards []Dashboard) error
	Driver() string
}

// NewDashboardRepository selects the backend named by STORAGE_DRIVER.
func NewDashboardRepository(cfg *config.Config, db *database.MongodbDB) (DashboardRepository, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMongo:
		if !db.Enabled() {
			return nil, errors.New("mongo storage selected but no database connection")
		}
		return NewMongoDashboardRepository(db, cfg.StorageKey), nil
	case config.StorageDriverMemory:
		return NewMemoryDashboardRepository(), nil
	case config.StorageDriverFile, "":
		return NewFileDashboardRepository(cfg.StoragePath, cfg.StorageKey), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func encodeCollection(dashboards []Dashboard) ([]byte, error) {
	if dashboards == nil {
		dashboards = []Dashboard{}
	}
	return json.Marshal(dashboards)
}

func decodeCollection(data []byte) ([]Dashboard, error) {
	var dashboards []Dashboard
	if err := json.Unmarshal(data, &dashboards); err != nil {
		return nil, fmt.Errorf("decode dashboards: %w", err)
	}
	return dashboards, nil
}

// FileDashboardRepository stores the document at <dir>/<key>.json.
type FileDashboardRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileDashboardRepository(dir, key string) *FileDashboardRepository {
	return &FileDashboardRepository{path: filepath.Join(dir, key+".json")}
}

func (r *FileDashboardRepository) Driver() string { return config.StorageDriverFile }

func (r *FileDashboardRepository) Load(ctx context.Context) ([]Dashboard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCollection(data)
}

// Save writes to a temp file and renames it over the document so readers
// never see a partial write.
func (r *FileDashboardRepository) Save(ctx context.Context, dashboards []Dashboard) error {
	data, err := encodeCollection(dashboards)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}

type storedDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoDashboardRepository keeps the document in the local_storage
// collection as {_id: key, value: <json>}.
type MongoDashboardRepository struct {
	collection *mongo.Collection
	key        string
}

func NewMongoDashboardRepository(db *database.MongodbDB, key string) *MongoDashboardRepository {
	return &MongoDashboardRepository{
		collection: db.DB.Collection("local_storage"),
		key:        key,
	}
}

func (r *MongoDashboardRepository) Driver() string { return config.StorageDriverMongo }

func (r *MongoDashboardRepository) Load(ctx context.Context) ([]Dashboard, error) {
	var doc storedDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": r.key}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return decodeCollection([]byte(doc.Value))
}

func (r *MongoDashboardRepository) Save(ctx context.Context, dashboards []Dashboard) error {
	data, err := encodeCollection(dashboards)
	if err != nil {
		return err
	}

	doc := storedDocument{Key: r.key, Value: string(data), UpdatedAt: time.Now().UTC()}
	_, err = r.collection.ReplaceOne(ctx, bson.M{"_id": r.key}, doc, options.Replace().SetUpsert(true))
	return err
}

// MemoryDashboardRepository keeps the encoded document in memory.
type MemoryDashboardRepository struct {
	mu   sync.Mutex
	data []byte
	// FailSave makes the next saves fail with this error when set.
	FailSave error
}

func NewMemoryDashboardRepository() *MemoryDashboardRepository {
	return &MemoryDashboardRepository{}
}

func (r *MemoryDashboardRepository) Driver() string { return config.StorageDriverMemory }

func (r *MemoryDashboardRepository) Load(ctx context.Context) ([]Dashboard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		return nil, nil
	}
	return decodeCollection(r.data)
}

func (r *MemoryDashboardRepository) Save(ctx context.Context, dashboards []Dashboard) error {
	data, err := encodeCollection(dashboards)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	r.data = data
	return nil
}

// Raw returns the stored document.
func (r *MemoryDashboardRepository) Raw() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.data...)
}
