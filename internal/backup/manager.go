package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"user-admin/internal/storage"
)

// ErrInProgress is returned when an on-demand backup overlaps a running one.
var ErrInProgress = errors.New("backup already in progress")

// Snapshotter produces a consistent copy of the user store.
type Snapshotter interface {
	Snapshot(ctx context.Context, dest string) error
}

// Backup describes one stored snapshot.
type Backup struct {
	Key          string    `json:"key"`
	Location     string    `json:"location,omitempty"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Manager takes database snapshots and ships them to object storage.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Run(ctx context.Context) (*Backup, error)
	List(ctx context.Context) ([]Backup, error)
}

type Config struct {
	Bucket    string
	KeyPrefix string
	Interval  time.Duration
	TempDir   string
	Logger    *logrus.Logger
	Now       func() time.Time
}

type manager struct {
	cfg     Config
	store   Snapshotter
	storage storage.Service

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg Config, store Snapshotter, storage storage.Service) Manager {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &manager{
		cfg:     cfg,
		store:   store,
		storage: storage,
		sem:     make(chan struct{}, 1),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.cfg.Bucket == "" {
		return fmt.Errorf("backup bucket is required")
	}
	if err := os.MkdirAll(m.cfg.TempDir, 0o755); err != nil {
		return fmt.Errorf("create backup temp dir: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	if m.cfg.Interval <= 0 {
		m.cfg.Logger.Info("backup manager started, periodic backups disabled")
		return nil
	}

	m.wg.Add(1)
	go m.loop()
	m.cfg.Logger.Infof("backup manager started, interval: %s", m.cfg.Interval)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("backup manager stopped")
}

func (m *manager) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Run(m.ctx); err != nil && !errors.Is(err, ErrInProgress) && !errors.Is(err, context.Canceled) {
				m.cfg.Logger.Errorf("scheduled backup failed: %v", err)
			}
		}
	}
}

// Run takes one snapshot and uploads it. Only one run may be in flight.
func (m *manager) Run(ctx context.Context) (*Backup, error) {
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	default:
		return nil, ErrInProgress
	}

	now := m.cfg.Now().UTC()
	name := fmt.Sprintf("%s-%s.db", now.Format("20060102T150405Z"), uuid.NewString())
	key := name
	if m.cfg.KeyPrefix != "" {
		key = path.Join(m.cfg.KeyPrefix, name)
	}
	logger := m.cfg.Logger.WithField("key", key)

	local := filepath.Join(m.cfg.TempDir, name)
	defer func() {
		if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
			logger.Warnf("remove local snapshot: %v", err)
		}
	}()

	if err := m.store.Snapshot(ctx, local); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	location, err := m.storage.UploadFile(ctx, local, storage.UploadOptions{
		Bucket: m.cfg.Bucket,
		Key:    key,
		ProgressCallback: func(done, total int64) {
			logger.Debugf("upload progress %d/%d bytes", done, total)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	logger.Infof("backup stored at %s (%d bytes)", location, info.Size())
	return &Backup{
		Key:          key,
		Location:     location,
		Size:         info.Size(),
		LastModified: now,
	}, nil
}

// List returns stored backups, newest first.
func (m *manager) List(ctx context.Context) ([]Backup, error) {
	prefix := ""
	if m.cfg.KeyPrefix != "" {
		prefix = m.cfg.KeyPrefix + "/"
	}
	objects, err := m.storage.ListObjects(ctx, m.cfg.Bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	backups := make([]Backup, 0, len(objects))
	for _, obj := range objects {
		b := Backup{Key: obj.Key, Size: obj.Size}
		if obj.LastModified != nil {
			b.LastModified = obj.LastModified.UTC()
		}
		backups = append(backups, b)
	}
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].Key > backups[j].Key
	})
	return backups, nil
}
