package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"uta-go/logcolors"
	"uta-go/utils"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "catalog"

// Options tune a Store
type Options struct {
	// BackupDir receives copies made by Backup. Empty means next to the database.
	BackupDir string

	// Compression gzips values before they are written
	Compression bool

	// TTL after which an entry reads as a miss. Zero keeps entries forever.
	TTL time.Duration
}

// Store is a BoltDB-backed cache of catalog responses with an in-memory front
type Store struct {
	db       *bolt.DB
	memCache sync.Map
	dbPath   string
	opts     Options
	now      func() time.Time
}

// Entry is what gets persisted per key
type Entry struct {
	Value    string `json:"value"`
	StoredAt int64  `json:"storedAt"`
}

// Key builds the cache key of one catalog lookup
func Key(storefront, kind, id, language string) string {
	return strings.Join([]string{storefront, kind, id, language}, ":")
}

// Open opens or creates the database at dbPath and preloads it into memory
func Open(dbPath string, opts Options) (*Store, error) {
	if opts.BackupDir == "" {
		opts.BackupDir = filepath.Join(filepath.Dir(dbPath), "backups")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	s := &Store{
		db:     db,
		dbPath: dbPath,
		opts:   opts,
		now:    time.Now,
	}

	if err := s.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload cache to memory: %v", logcolors.LogCache, err)
	}

	log.Infof("%s Catalog cache opened at %s (compression: %v, ttl: %v)", logcolors.LogCacheInit, dbPath, opts.Compression, opts.TTL)
	return s, nil
}

func (s *Store) loadToMemory() error {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Skipping unreadable entry %s: %v", logcolors.LogCache, string(k), err)
				return nil
			}
			s.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Debugf("%s Loaded %d entries from disk", logcolors.LogCache, count)
	return nil
}

func (s *Store) expired(e Entry) bool {
	if s.opts.TTL <= 0 {
		return false
	}
	return s.now().Sub(time.Unix(e.StoredAt, 0)) > s.opts.TTL
}

func (s *Store) decode(key string, e Entry) (string, bool) {
	if !s.opts.Compression {
		return e.Value, true
	}
	v, err := utils.Decompress(e.Value)
	if err != nil {
		log.Errorf("%s Error decompressing value for key %s: %v", logcolors.LogCache, key, err)
		return "", false
	}
	return v, true
}

// Get returns the cached value of key. Memory is checked first, then disk.
// Expired entries are dropped and read as a miss.
func (s *Store) Get(key string) (string, bool) {
	var entry Entry
	if v, ok := s.memCache.Load(key); ok {
		entry = v.(Entry)
	} else {
		found := false
		err := s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(bucketName))
			if b == nil {
				return nil
			}
			data := b.Get([]byte(key))
			if data == nil {
				return nil
			}
			found = true
			return json.Unmarshal(data, &entry)
		})
		if err != nil || !found {
			return "", false
		}
		s.memCache.Store(key, entry)
	}

	if s.expired(entry) {
		log.Debugf("%s Entry %s expired", logcolors.LogCacheCatalog, key)
		if err := s.Delete(key); err != nil {
			log.Warnf("%s Failed to drop expired entry %s: %v", logcolors.LogCache, key, err)
		}
		return "", false
	}

	return s.decode(key, entry)
}

// Set stores value under key in memory and on disk
func (s *Store) Set(key, value string) error {
	stored := value
	if s.opts.Compression {
		var err error
		if stored, err = utils.Compress(value); err != nil {
			return fmt.Errorf("compress %s: %w", key, err)
		}
	}

	entry := Entry{Value: stored, StoredAt: s.now().Unix()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return err
	}

	s.memCache.Store(key, entry)
	return nil
}

// Delete removes key from memory and disk
func (s *Store) Delete(key string) error {
	s.memCache.Delete(key)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(key))
	})
}

// Clear removes every entry
func (s *Store) Clear() error {
	s.memCache.Range(func(key, _ interface{}) bool {
		s.memCache.Delete(key)
		return true
	})

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Stats returns the number of entries and their stored size in KB
func (s *Store) Stats() (numKeys int, sizeInKB int) {
	size := 0
	s.memCache.Range(func(k, v interface{}) bool {
		numKeys++
		size += len(k.(string)) + len(v.(Entry).Value)
		return true
	})
	return numKeys, size / 1024
}

// Backup copies the database file into the backup directory and returns
// the copy's path. Bolt's read transaction gives a consistent snapshot
// without closing the database.
func (s *Store) Backup() (string, error) {
	if err := os.MkdirAll(s.opts.BackupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("catalog_backup_%s.db", s.now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(s.opts.BackupDir, name)

	err := s.db.View(func(tx *bolt.Tx) error {
		return writeSnapshot(tx, path)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	log.Infof("%s Backup written to %s", logcolors.LogCacheBackup, path)
	return path, nil
}

func writeSnapshot(tx *bolt.Tx, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := tx.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// BackupAndClear writes a backup and then empties the cache
func (s *Store) BackupAndClear() (string, error) {
	path, err := s.Backup()
	if err != nil {
		return "", err
	}
	if err := s.Clear(); err != nil {
		return path, fmt.Errorf("backup created but failed to clear cache: %w", err)
	}

	log.Infof("%s Cache cleared (backup: %s)", logcolors.LogCacheClear, path)
	return path, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
