package intervention

import (
	"sync"

	"github.com/google/uuid"
)

// caseLocks serializes mutating transitions per intervention id. Striped so
// the lock table stays fixed-size regardless of how many cases exist;
// contention between unrelated cases sharing a stripe is acceptable because
// transitions are short and CPU-bound.
type caseLocks struct {
	stripes [64]sync.Mutex
}

func (l *caseLocks) lock(id uuid.UUID) *sync.Mutex {
	return &l.stripes[int(id[0])%len(l.stripes)]
}
