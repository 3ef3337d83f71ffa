// Package synthetic generates deterministic workloads that seed
// controlled conflict patterns between objects, to stress the
// scheduler's conflict resolution without external input.
package synthetic

import (
	"fmt"

	"github.com/puppetmaster-fpga/pm-host/common/logging"
	scheduler "github.com/puppetmaster-fpga/pm-host/scheduler/api"
	workload "github.com/puppetmaster-fpga/pm-host/workload/api"
)

// Conflict patterns seeded by the generator, selected per transaction
// by its index modulo 4.
const (
	// patternSelfPair writes the object adjacent to the one just read,
	// so the pair conflicts only with itself.
	patternSelfPair = 0
	// patternNeighbor writes an object owned by the even-aligned
	// predecessor transaction, conflicting with a neighbor.
	patternNeighbor = 1
	// patternPeriodic writes an object owned by transaction index
	// i mod 2, producing a recurring conflict across alternating
	// transactions.
	patternPeriodic = 2
	// patternHotObject writes a fixed-offset object independent of the
	// transaction index, shared by many transactions.
	patternHotObject = 3
)

// Config is the synthetic generator configuration.
type Config struct {
	// NumTests is the number of test groups to generate.
	NumTests uint64

	// MaxScheduledObjects is the number of transactions per test group.
	MaxScheduledObjects uint64

	// ObjSetSize is the number of read/write access pairs per
	// transaction. It must not exceed half the transaction capacity.
	ObjSetSize uint64
}

// DefaultConfig returns the default generator configuration.
func DefaultConfig() Config {
	return Config{
		NumTests:            4,
		MaxScheduledObjects: 8,
		ObjSetSize:          scheduler.MaxTransactionObjects / 2,
	}
}

// Builder is a synthetic workload builder.
type Builder struct {
	logger *logging.Logger
	cfg    Config
}

// Name implements api.Builder.
func (b *Builder) Name() string {
	return "synthetic"
}

// Build implements api.Builder.
func (b *Builder) Build() (workload.Workload, error) {
	if b.cfg.ObjSetSize > scheduler.MaxTransactionObjects/2 {
		return nil, fmt.Errorf(
			"workload/synthetic: object set size %d exceeds transaction capacity (max %d pairs)",
			b.cfg.ObjSetSize,
			scheduler.MaxTransactionObjects/2,
		)
	}

	numTransactions := b.cfg.NumTests * b.cfg.MaxScheduledObjects
	b.logger.Debug("generating workload",
		"transactions", numTransactions,
		"obj_set_size", b.cfg.ObjSetSize,
	)

	wl := make(workload.Workload, 0, numTransactions)
	for i := uint64(0); i < numTransactions; i++ {
		tx := scheduler.NewTransaction()
		for j := uint64(0); j < b.cfg.ObjSetSize; j++ {
			if err := tx.SetSlot(int(2*j), scheduler.ObjectAccess{
				Valid:  true,
				Object: readObject(b.cfg.ObjSetSize, i, j),
			}); err != nil {
				return nil, err
			}
			if err := tx.SetSlot(int(2*j+1), scheduler.ObjectAccess{
				Valid:  true,
				Write:  true,
				Object: writeObject(b.cfg.ObjSetSize, i, j),
			}); err != nil {
				return nil, err
			}
		}
		wl = append(wl, tx)
	}

	return wl, nil
}

// readObject computes the read target for pair j of transaction i.
func readObject(objSetSize, i, j uint64) uint64 {
	return objSetSize*i*2 + j*2
}

// writeObject computes the write target for pair j of transaction i,
// rotating through the four conflict patterns.
func writeObject(objSetSize, i, j uint64) uint64 {
	switch i % 4 {
	case patternSelfPair:
		return objSetSize*i*2 + j*2 + 1
	case patternNeighbor:
		return objSetSize*(i-i%2)*2 + j*2 + 1
	case patternPeriodic:
		return objSetSize*(i%2)*2 + j*2 + 1
	case patternHotObject:
		return objSetSize*2 + j*2 + 1
	default:
		panic("workload/synthetic: unreachable")
	}
}

// New creates a new synthetic workload builder.
func New(cfg Config) *Builder {
	return &Builder{
		logger: logging.GetLogger("workload/synthetic"),
		cfg:    cfg,
	}
}
