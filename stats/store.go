package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"uta-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "counters"
)

// Store persists a Stats value to its own BoltDB file so counters survive
// restarts of the server
type Store struct {
	db       *bolt.DB
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// persisted is the on-disk form
type persisted struct {
	Counters        map[string]int64 `json:"counters"`
	MinResponseTime int64            `json:"min_response_time"`
	MaxResponseTime int64            `json:"max_response_time"`
	FirstStarted    time.Time        `json:"first_started"`
	LastSaved       time.Time        `json:"last_saved"`
}

// NewStore opens the stats database at dbPath for s
func NewStore(dbPath string, s *Stats) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{db: db, stats: s, stopChan: make(chan struct{})}, nil
}

// Load applies previously saved counters. Unknown names are ignored.
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var p persisted
	found := false
	err := st.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(statsBucketName)).Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if !found {
		return nil
	}

	counters := st.stats.counters()
	for name, v := range p.Counters {
		if c, ok := counters[name]; ok {
			c.Store(v)
		}
	}
	if p.MinResponseTime > 0 {
		st.stats.minResponseTime.Store(p.MinResponseTime)
	}
	if p.MaxResponseTime > 0 {
		st.stats.maxResponseTime.Store(p.MaxResponseTime)
	}
	if !p.FirstStarted.IsZero() {
		st.stats.StartTime = p.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, st.stats.TotalRequests.Load(), p.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save writes the current counters
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	p := persisted{
		Counters:        make(map[string]int64),
		MinResponseTime: st.stats.minResponseTime.Load(),
		MaxResponseTime: st.stats.maxResponseTime.Load(),
		FirstStarted:    st.stats.StartTime,
		LastSaved:       time.Now(),
	}
	for name, c := range st.stats.counters() {
		p.Counters[name] = c.Load()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	return st.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(statsBucketName)).Put([]byte(statsKey), data)
	})
}

// StartAutoSave saves every interval until Close
func (st *Store) StartAutoSave(interval time.Duration) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := st.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-st.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close stops auto-save, saves once more and closes the database
func (st *Store) Close() error {
	close(st.stopChan)
	st.wg.Wait()

	if err := st.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}
	return st.db.Close()
}
