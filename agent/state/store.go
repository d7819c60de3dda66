package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

var (
	ErrTaskNotFound  = errors.New("task output not found")
	ErrNilTaskOutput = errors.New("task output is nil")
	ErrInvalidTaskID = errors.New("task id is empty")
)

// TaskOutput is the persisted result of one task inside one crew kickoff.
type TaskOutput struct {
	bun.BaseModel `bun:"table:task_outputs,alias:t"`

	TaskID    string            `bun:"task_id,pk" json:"task_id"`
	KickoffID string            `bun:"kickoff_id,notnull" json:"kickoff_id"`
	Crew      string            `bun:"crew,notnull" json:"crew"`
	Index     int               `bun:"task_index,notnull" json:"index"`
	Name      string            `bun:"task_name,notnull" json:"name"`
	Agent     string            `bun:"agent,notnull" json:"agent"`
	Raw       string            `bun:"raw" json:"raw"`
	Inputs    map[string]string `bun:"inputs" json:"inputs,omitempty"`
	CreatedAt time.Time         `bun:"created_at,notnull" json:"created_at"`
}

// Store is the persistence contract for kickoff task outputs used by replay.
type Store interface {
	Save(ctx context.Context, out *TaskOutput) error
	KickoffByTask(ctx context.Context, taskID string) ([]TaskOutput, error)
	LatestKickoff(ctx context.Context) ([]TaskOutput, error)
}

type StoreConfig struct {
	DSN string `envconfig:"DSN" split_words:"true" default:"file:voiceboard.db"`
}

// BunStore persists task outputs through bun. A postgres:// DSN selects the
// postgres dialect, anything else is opened with the pure-Go sqlite driver.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(ctx context.Context, cfg StoreConfig) (*BunStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("store dsn is required")
	}

	var db *bun.DB
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if _, err := db.NewCreateTable().Model((*TaskOutput)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create task_outputs table: %w", err)
	}

	return &BunStore{db: db}, nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func (s *BunStore) Save(ctx context.Context, out *TaskOutput) error {
	if err := prepareOutput(out); err != nil {
		return err
	}
	if _, err := s.db.NewInsert().Model(out).Exec(ctx); err != nil {
		return fmt.Errorf("insert task output: %w", err)
	}
	return nil
}

func (s *BunStore) KickoffByTask(ctx context.Context, taskID string) ([]TaskOutput, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, ErrInvalidTaskID
	}

	var rec TaskOutput
	err := s.db.NewSelect().Model(&rec).Where("task_id = ?", taskID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("select task output: %w", err)
	}
	return s.kickoff(ctx, rec.KickoffID)
}

func (s *BunStore) LatestKickoff(ctx context.Context) ([]TaskOutput, error) {
	var rec TaskOutput
	err := s.db.NewSelect().Model(&rec).Order("created_at DESC", "task_index DESC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select latest task output: %w", err)
	}
	return s.kickoff(ctx, rec.KickoffID)
}

func (s *BunStore) kickoff(ctx context.Context, kickoffID string) ([]TaskOutput, error) {
	var outs []TaskOutput
	if err := s.db.NewSelect().Model(&outs).Where("kickoff_id = ?", kickoffID).Order("task_index ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select kickoff %s: %w", kickoffID, err)
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("%w: kickoff %s", ErrTaskNotFound, kickoffID)
	}
	return outs, nil
}

// MemoryStore keeps task outputs for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	outs []TaskOutput
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(ctx context.Context, out *TaskOutput) error {
	if err := prepareOutput(out); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outs = append(m.outs, cloneOutput(*out))
	return nil
}

func (m *MemoryStore) KickoffByTask(ctx context.Context, taskID string) ([]TaskOutput, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, ErrInvalidTaskID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.outs {
		if o.TaskID == taskID {
			return m.kickoffLocked(o.KickoffID), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

func (m *MemoryStore) LatestKickoff(ctx context.Context) ([]TaskOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.outs) == 0 {
		return nil, ErrTaskNotFound
	}
	return m.kickoffLocked(m.outs[len(m.outs)-1].KickoffID), nil
}

func (m *MemoryStore) kickoffLocked(kickoffID string) []TaskOutput {
	var outs []TaskOutput
	for _, o := range m.outs {
		if o.KickoffID == kickoffID {
			outs = append(outs, cloneOutput(o))
		}
	}
	sort.SliceStable(outs, func(i, j int) bool { return outs[i].Index < outs[j].Index })
	return outs
}

func prepareOutput(out *TaskOutput) error {
	if out == nil {
		return ErrNilTaskOutput
	}
	if strings.TrimSpace(out.TaskID) == "" {
		return ErrInvalidTaskID
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	} else {
		out.CreatedAt = out.CreatedAt.UTC()
	}
	return nil
}

func cloneOutput(o TaskOutput) TaskOutput {
	if o.Inputs != nil {
		inputs := make(map[string]string, len(o.Inputs))
		for k, v := range o.Inputs {
			inputs[k] = v
		}
		o.Inputs = inputs
	}
	return o
}
