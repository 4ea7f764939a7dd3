// Package audit records what a pipeline run produced: a manifest tying
// the run ID and config hash to every artifact file with its checksum,
// so any output can be traced back to the exact inputs that made it.
// ⭐ SSOT: 런 추적/아티팩트 체크섬은 여기서만
package audit

import (
	cryptoRand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wonhyo-e/argos/internal/store"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	// Monotonic entropy keeps IDs within one millisecond
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewRunID returns a time-sortable ULID string.
func NewRunID() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Artifact is one recorded output file.
type Artifact struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// Manifest ties one run to its config and artifacts.
type Manifest struct {
	RunID      string     `json:"run_id"`
	CreatedAt  time.Time  `json:"created_at"`
	StrategyID string     `json:"strategy_id"`
	ConfigHash string     `json:"config_hash"`
	AsOf       string     `json:"as_of"`
	Artifacts  []Artifact `json:"artifacts"`
}

// NewManifest starts a manifest for one run.
func NewManifest(strategyID, configHash, asOf string) *Manifest {
	return &Manifest{
		RunID:      NewRunID(),
		CreatedAt:  time.Now().UTC(),
		StrategyID: strategyID,
		ConfigHash: configHash,
		AsOf:       asOf,
	}
}

// Add checksums an artifact file and records it under name.
func (m *Manifest) Add(name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", name, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("failed to checksum artifact %s: %w", name, err)
	}

	m.Artifacts = append(m.Artifacts, Artifact{
		Name:   name,
		Path:   path,
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Bytes:  n,
	})
	return nil
}

// Save writes the manifest with artifacts in name order.
func (m *Manifest) Save(path string) error {
	sort.Slice(m.Artifacts, func(i, j int) bool {
		return m.Artifacts[i].Name < m.Artifacts[j].Name
	})
	return store.WriteJSON(path, m)
}

// Load reads a manifest back.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if err := store.ReadJSON(path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
