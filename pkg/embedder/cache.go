package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/noirgraph/pkg/nlp"
)

// CachedClient memoizes embeddings in a Badger store keyed by model and text.
// Re-running a session over the same document then costs no embedding calls.
type CachedClient struct {
	client Client
	db     *badger.DB
	model  string
}

// OpenCache opens (or creates) a Badger embedding cache in dir. An empty dir
// keeps the cache in memory.
func OpenCache(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return db, nil
}

// NewCachedClient wraps client. model namespaces the cache keys so vectors
// from different models never mix.
func NewCachedClient(client Client, db *badger.DB, model string) *CachedClient {
	return &CachedClient{client: client, db: db, model: model}
}

func (c *CachedClient) key(task TaskType, text string) []byte {
	sum := sha256.Sum256([]byte(c.model + "\x00" + string(task) + "\x00" + text))
	return append([]byte("emb:"), sum[:]...)
}

// Embed returns cached vectors and embeds only the misses, in one call.
func (c *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	task := TaskTypeFrom(ctx)
	var (
		missing []string
		slots   []int
	)

	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			item, err := txn.Get(c.key(task, text))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missing = append(missing, text)
				slots = append(slots, i)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				out[i] = decodeVector(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.client.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		for j, v := range vectors {
			out[slots[j]] = v
			if len(v) == 0 {
				continue
			}
			if err := txn.Set(c.key(task, missing[j]), encodeVector(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("write embedding cache: %w", err)
	}

	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *CachedClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions returns the number of dimensions in the embeddings.
func (c *CachedClient) Dimensions() int {
	return c.client.Dimensions()
}

// GetCapabilities returns the list of capabilities supported by this client.
func (c *CachedClient) GetCapabilities() []nlp.TaskCapability {
	return c.client.GetCapabilities()
}

// Close closes the wrapped client and the cache.
func (c *CachedClient) Close() error {
	return errors.Join(c.client.Close(), c.db.Close())
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
