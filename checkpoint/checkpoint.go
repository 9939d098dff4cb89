// checkpoint creates CheckpointIO which stores the best tree of every
// search chain, so that an interrupted search can be resumed.
package checkpoint

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// CHAINS is the bucket name for the chain checkpoints.
var CHAINS = []byte("chains")

// CheckpointData stores checkpoint data.
type CheckpointData struct {
	// Tree is the best tree of the chain in Newick format.
	Tree  string
	Score float64
	Iter  int
	Round int
	Final bool
}

// CheckpointIO saves and loads checkpoints.
type CheckpointIO struct {
	db      *bolt.DB
	prefix  []byte
	seconds float64
	mu      sync.Mutex
	last    map[int]time.Time
}

// NewCheckpointIO creates a new CheckpointIO. Keys of all the chains
// start with prefix. A chain checkpoint is considered old after the
// given number of seconds.
func NewCheckpointIO(db *bolt.DB, prefix []byte, seconds float64) (s *CheckpointIO) {
	s = &CheckpointIO{
		db:      db,
		prefix:  prefix,
		seconds: seconds,
		last:    make(map[int]time.Time),
	}
	return
}

func (s *CheckpointIO) key(chain int) []byte {
	key := append([]byte(nil), s.prefix...)
	key = append(key, '/')
	return strconv.AppendInt(key, int64(chain), 10)
}

// Save saves checkpoint of a chain to the database.
func (s *CheckpointIO) Save(chain int, data *CheckpointData) error {
	// Even if saving fails, we do not want to run this code too often.
	s.SetNow(chain)
	dataB, err := json.Marshal(data)
	if err != nil {
		log.Error("Error serializing checkpoint", err)
		return err
	}
	err = SaveData(s.db, s.key(chain), dataB)
	if err != nil {
		log.Error("Error saving checkpoint", err)
	}
	return err
}

// Load returns the checkpoint of a chain, nil if there is none.
func (s *CheckpointIO) Load(chain int) (*CheckpointData, error) {
	var data *CheckpointData

	b, err := LoadData(s.db, s.key(chain))

	if err != nil || b == nil {
		return nil, err
	}

	err = json.Unmarshal(b, &data)

	if err != nil {
		return nil, err
	}

	if data == nil || data.Tree == "" {
		return nil, nil
	}

	if data.Final {
		log.Noticef("Found finished search checkpoint for chain %d (iter=%v, score=%v)", chain, data.Iter, data.Score)
	} else {
		log.Noticef("Found unfinished search checkpoint for chain %d (iter=%v, score=%v)", chain, data.Iter, data.Score)
	}

	return data, nil
}

// Old returns true if the last checkpoint of the chain was saved too
// long ago.
func (s *CheckpointIO) Old(chain int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.last[chain]).Seconds() > s.seconds
}

// SetNow sets last checkpoint time of the chain to now.
func (s *CheckpointIO) SetNow(chain int) {
	s.mu.Lock()
	s.last[chain] = time.Now()
	s.mu.Unlock()
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(CHAINS)
		if err != nil {
			return err
		}

		err = b.Put(key, data)
		return err
	})
	return err
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(CHAINS)
		if b == nil {
			return nil
		}

		// v is only valid inside the transaction
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
