package persistence

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
)

const docPrefix = "doc:"

// BadgerEngine implements Engine using BadgerDB
type BadgerEngine struct {
	db   *badger.DB
	log  logger.Logger
	stop chan struct{}
}

// NewBadgerEngine creates a new BadgerDB persistence engine
func NewBadgerEngine(dataDir string, syncWrites bool, log logger.Logger) (*BadgerEngine, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := badger.DefaultOptions(dataDir)
	opts.SyncWrites = syncWrites
	opts.Logger = nil
	opts.ValueLogFileSize = 64 << 20
	opts.MemTableSize = 64 << 20
	opts.NumMemtables = 5
	opts.NumLevelZeroTables = 5
	opts.NumLevelZeroTablesStall = 10

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	engine := &BadgerEngine{
		db:   db,
		log:  log,
		stop: make(chan struct{}),
	}

	go engine.runGarbageCollection()

	log.Info("BadgerDB persistence engine initialized",
		logger.String("data_dir", dataDir),
		logger.Bool("sync_writes", syncWrites))

	return engine, nil
}

func (b *BadgerEngine) runGarbageCollection() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.log.Warn("BadgerDB garbage collection failed", logger.Error(err))
			}
		case <-b.stop:
			return
		}
	}
}

func (b *BadgerEngine) Get(key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(docPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (b *BadgerEngine) Set(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(docPrefix+key), value)
	})
}

func (b *BadgerEngine) SetWithTTL(key string, value []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(docPrefix+key), value).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

func (b *BadgerEngine) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(docPrefix + key))
	})
}

func (b *BadgerEngine) List(prefix string) ([]string, error) {
	var keys []string
	searchPrefix := []byte(docPrefix + prefix)

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(searchPrefix); it.ValidForPrefix(searchPrefix); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), docPrefix))
		}
		return nil
	})
	return keys, err
}

func (b *BadgerEngine) BatchSet(items map[string][]byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for key, value := range items {
			if err := txn.Set([]byte(docPrefix+key), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerEngine) BatchDelete(keys []string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(docPrefix + key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerEngine) Close() error {
	close(b.stop)
	return b.db.Close()
}
