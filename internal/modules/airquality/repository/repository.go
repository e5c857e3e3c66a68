package repository

import (
	"math"
	"sort"
	"sync"

	"airquality-server/internal/modules/airquality/types"
)

// FilterTolerance is the absolute tolerance used when matching coordinates.
const FilterTolerance = 1e-9

type MeasurementRepository interface {
	GetAll() []types.Entry
	GetByID(id int) (types.Measurement, bool)
	Insert(m types.Measurement) int
	Replace(id int, m types.Measurement)
	Delete(id int)
	Filter(lat, lon float64) []types.Entry
	Stats() types.Stats
	Count() int
	Reset(records []types.Measurement)
}

type repositoryImpl struct {
	mu      sync.RWMutex
	ids     []int // ascending
	records map[int]types.Measurement
	// nextID is one past the highest id ever assigned; ids are never reused.
	nextID int
}

// NewRepository builds the store from a snapshot. Records get ids 0..n-1 in order.
func NewRepository(records []types.Measurement) MeasurementRepository {
	r := &repositoryImpl{}
	r.load(records)
	return r
}

func (r *repositoryImpl) load(records []types.Measurement) {
	r.ids = make([]int, len(records))
	r.records = make(map[int]types.Measurement, len(records))
	for i, m := range records {
		r.ids[i] = i
		r.records[i] = m
	}
	r.nextID = len(records)
}

func (r *repositoryImpl) GetAll() []types.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Entry, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, types.NewEntry(id, r.records[id]))
	}
	return out
}

func (r *repositoryImpl) GetByID(id int) (types.Measurement, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.records[id]
	return m, ok
}

// Insert stores m under the next id. Ids stay monotonic after deletes, so the
// new id equals the store size only while nothing has been deleted.
func (r *repositoryImpl) Insert(m types.Measurement) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.ids = append(r.ids, id)
	r.records[id] = m
	return id
}

// Replace writes m at id whether or not id exists. Callers that need
// update-only semantics check GetByID first.
func (r *repositoryImpl) Replace(id int, m types.Measurement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		i := sort.SearchInts(r.ids, id)
		r.ids = append(r.ids, 0)
		copy(r.ids[i+1:], r.ids[i:])
		r.ids[i] = id
		if id >= r.nextID {
			r.nextID = id + 1
		}
	}
	r.records[id] = m
}

func (r *repositoryImpl) Delete(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return
	}
	delete(r.records, id)
	i := sort.SearchInts(r.ids, id)
	r.ids = append(r.ids[:i], r.ids[i+1:]...)
}

func (r *repositoryImpl) Filter(lat, lon float64) []types.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Entry, 0)
	for _, id := range r.ids {
		m := r.records[id]
		if isClose(m.Lat, lat) && isClose(m.Lon, lon) {
			out = append(out, types.NewEntry(id, m))
		}
	}
	return out
}

func (r *repositoryImpl) Stats() types.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := types.Stats{Count: len(r.ids)}
	if stats.Count == 0 {
		return stats
	}

	var sum float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, id := range r.ids {
		v := r.records[id].PM25
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	avg := sum / float64(stats.Count)
	stats.Average = &avg
	stats.Min = &lo
	stats.Max = &hi
	return stats
}

func (r *repositoryImpl) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Reset swaps in a freshly loaded snapshot, discarding in-memory writes.
func (r *repositoryImpl) Reset(records []types.Measurement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(records)
}

func isClose(a, b float64) bool {
	return math.Abs(a-b) <= FilterTolerance
}
