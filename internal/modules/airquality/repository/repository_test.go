package repository

import (
	"math"
	"reflect"
	"sync"
	"testing"

	"airquality-server/internal/modules/airquality/types"
)

func fixture() []types.Measurement {
	return []types.Measurement{
		{Lat: 44.355, Lon: 176.255005, PM25: 6.2},
		{Lat: -44.2222, Lon: -176.2222, PM25: 5.2},
	}
}

func TestNewRepository(t *testing.T) {
	repo := NewRepository(fixture())
	if repo == nil {
		t.Fatal("NewRepository returned nil")
	}
	if got := repo.Count(); got != 2 {
		t.Fatalf("Count() = %d; want 2", got)
	}
}

func TestGetAll(t *testing.T) {
	t.Run("returns entries in id order", func(t *testing.T) {
		repo := NewRepository(fixture())
		got := repo.GetAll()
		want := []types.Entry{
			{ID: 0, Lat: 44.355, Lon: 176.255005, PM25: 6.2},
			{ID: 1, Lat: -44.2222, Lon: -176.2222, PM25: 5.2},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("GetAll() = %+v; want %+v", got, want)
		}
	})

	t.Run("is idempotent without mutation", func(t *testing.T) {
		repo := NewRepository(fixture())
		first := repo.GetAll()
		second := repo.GetAll()
		if !reflect.DeepEqual(first, second) {
			t.Errorf("GetAll() differs between calls: %+v vs %+v", first, second)
		}
	})

	t.Run("empty store returns empty slice", func(t *testing.T) {
		repo := NewRepository(nil)
		got := repo.GetAll()
		if got == nil || len(got) != 0 {
			t.Errorf("GetAll() = %#v; want empty non-nil slice", got)
		}
	})
}

func TestGetByID(t *testing.T) {
	repo := NewRepository(fixture())

	t.Run("existing id", func(t *testing.T) {
		got, ok := repo.GetByID(1)
		if !ok {
			t.Fatal("GetByID(1) ok = false; want true")
		}
		if got.PM25 != 5.2 {
			t.Errorf("GetByID(1).PM25 = %v; want 5.2", got.PM25)
		}
	})

	for _, id := range []int{-1, 2, 100} {
		if _, ok := repo.GetByID(id); ok {
			t.Errorf("GetByID(%d) ok = true; want false", id)
		}
	}
}

func TestInsert(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		repo := NewRepository(nil)
		m := types.Measurement{Lat: 12.5, Lon: -3.25, PM25: 17.1}
		id := repo.Insert(m)
		got, ok := repo.GetByID(id)
		if !ok {
			t.Fatalf("GetByID(%d) ok = false after Insert", id)
		}
		if got != m {
			t.Errorf("GetByID(%d) = %+v; want %+v", id, got, m)
		}
	})

	t.Run("ids follow call order", func(t *testing.T) {
		repo := NewRepository(nil)
		for want := 0; want < 5; want++ {
			if got := repo.Insert(types.Measurement{PM25: float64(want)}); got != want {
				t.Fatalf("Insert #%d returned id %d", want, got)
			}
		}
	})

	t.Run("continues after snapshot", func(t *testing.T) {
		repo := NewRepository(fixture())
		if got := repo.Insert(types.Measurement{}); got != 2 {
			t.Errorf("Insert() = %d; want 2", got)
		}
	})

	t.Run("ids are never reused after delete", func(t *testing.T) {
		repo := NewRepository(fixture())
		repo.Delete(1)
		id := repo.Insert(types.Measurement{PM25: 9})
		if id != 2 {
			t.Fatalf("Insert() after Delete(1) = %d; want 2", id)
		}
		if _, ok := repo.GetByID(1); ok {
			t.Error("GetByID(1) ok = true; deleted id came back")
		}
		ids := entryIDs(repo.GetAll())
		if !reflect.DeepEqual(ids, []int{0, 2}) {
			t.Errorf("ids = %v; want [0 2]", ids)
		}
	})
}

func TestReplace(t *testing.T) {
	t.Run("existing id keeps identifier", func(t *testing.T) {
		repo := NewRepository(fixture())
		m := types.Measurement{Lat: 1, Lon: 2, PM25: 3}
		repo.Replace(0, m)
		got, _ := repo.GetByID(0)
		if got != m {
			t.Errorf("GetByID(0) = %+v; want %+v", got, m)
		}
		if repo.Count() != 2 {
			t.Errorf("Count() = %d; want 2", repo.Count())
		}
	})

	t.Run("absent id is created in order", func(t *testing.T) {
		repo := NewRepository(fixture())
		repo.Insert(types.Measurement{PM25: 1})
		repo.Delete(1)
		repo.Replace(1, types.Measurement{PM25: 7})
		ids := entryIDs(repo.GetAll())
		if !reflect.DeepEqual(ids, []int{0, 1, 2}) {
			t.Errorf("ids = %v; want [0 1 2]", ids)
		}
	})

	t.Run("id beyond range advances next id", func(t *testing.T) {
		repo := NewRepository(fixture())
		repo.Replace(10, types.Measurement{PM25: 7})
		if got := repo.Insert(types.Measurement{}); got != 11 {
			t.Errorf("Insert() after Replace(10) = %d; want 11", got)
		}
	})
}

func TestDelete(t *testing.T) {
	t.Run("removes from GetAll and GetByID", func(t *testing.T) {
		repo := NewRepository(fixture())
		repo.Delete(0)
		if _, ok := repo.GetByID(0); ok {
			t.Error("GetByID(0) ok = true after Delete(0)")
		}
		ids := entryIDs(repo.GetAll())
		if !reflect.DeepEqual(ids, []int{1}) {
			t.Errorf("ids = %v; want [1]", ids)
		}
	})

	t.Run("absent id is a no-op", func(t *testing.T) {
		repo := NewRepository(fixture())
		repo.Delete(42)
		repo.Delete(-1)
		if repo.Count() != 2 {
			t.Errorf("Count() = %d; want 2", repo.Count())
		}
	})
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		wantIDs  []int
	}{
		{name: "exact match", lat: 44.355, lon: 176.255005, wantIDs: []int{0}},
		{name: "within tolerance", lat: 44.355 + 5e-10, lon: 176.255005 - 5e-10, wantIDs: []int{0}},
		{name: "outside tolerance", lat: 44.355 + 1e-6, lon: 176.255005, wantIDs: []int{}},
		{name: "lat matches lon does not", lat: -44.2222, lon: 176.255005, wantIDs: []int{}},
		{name: "negative coordinates", lat: -44.2222, lon: -176.2222, wantIDs: []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRepository(fixture())
			got := repo.Filter(tt.lat, tt.lon)
			if got == nil {
				t.Fatal("Filter() = nil; want non-nil slice")
			}
			if ids := entryIDs(got); !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("Filter(%v, %v) ids = %v; want %v", tt.lat, tt.lon, ids, tt.wantIDs)
			}
		})
	}

	t.Run("fixture match has pm25 6.2", func(t *testing.T) {
		repo := NewRepository(fixture())
		got := repo.Filter(44.355, 176.255005)
		if len(got) != 1 || got[0].PM25 != 6.2 {
			t.Errorf("Filter() = %+v; want one entry with pm25 6.2", got)
		}
	})

	t.Run("matches every duplicate in id order", func(t *testing.T) {
		repo := NewRepository(fixture())
		repo.Insert(types.Measurement{Lat: 44.355, Lon: 176.255005, PM25: 8})
		ids := entryIDs(repo.Filter(44.355, 176.255005))
		if !reflect.DeepEqual(ids, []int{0, 2}) {
			t.Errorf("ids = %v; want [0 2]", ids)
		}
	})
}

func TestStats(t *testing.T) {
	t.Run("fixture", func(t *testing.T) {
		repo := NewRepository(fixture())
		got := repo.Stats()
		if got.Count != 2 {
			t.Errorf("Count = %d; want 2", got.Count)
		}
		assertFloat(t, "Average", got.Average, 5.7)
		assertFloat(t, "Min", got.Min, 5.2)
		assertFloat(t, "Max", got.Max, 6.2)
	})

	t.Run("empty store has no aggregates", func(t *testing.T) {
		got := NewRepository(nil).Stats()
		if got.Count != 0 {
			t.Errorf("Count = %d; want 0", got.Count)
		}
		if got.Average != nil || got.Min != nil || got.Max != nil {
			t.Errorf("Stats() = %+v; want nil aggregates", got)
		}
	})

	t.Run("follows mutations", func(t *testing.T) {
		repo := NewRepository(fixture())
		repo.Insert(types.Measurement{PM25: 10})
		repo.Delete(1)
		got := repo.Stats()
		if got.Count != 2 {
			t.Errorf("Count = %d; want 2", got.Count)
		}
		assertFloat(t, "Min", got.Min, 6.2)
		assertFloat(t, "Max", got.Max, 10)
	})
}

func TestReset(t *testing.T) {
	repo := NewRepository(fixture())
	repo.Insert(types.Measurement{PM25: 1})
	repo.Reset([]types.Measurement{{Lat: 1, Lon: 1, PM25: 1}})

	if repo.Count() != 1 {
		t.Fatalf("Count() = %d; want 1", repo.Count())
	}
	if got := repo.Insert(types.Measurement{}); got != 1 {
		t.Errorf("Insert() after Reset = %d; want 1", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	repo := NewRepository(fixture())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := repo.Insert(types.Measurement{PM25: float64(j)})
				repo.Replace(id, types.Measurement{PM25: 1})
				repo.Delete(id)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				repo.GetAll()
				repo.Stats()
				repo.Filter(44.355, 176.255005)
			}
		}()
	}
	wg.Wait()

	if repo.Count() != 2 {
		t.Errorf("Count() = %d; want 2", repo.Count())
	}
	if got := repo.Insert(types.Measurement{}); got != 802 {
		t.Errorf("Insert() = %d; want 802", got)
	}
}

func entryIDs(entries []types.Entry) []int {
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func assertFloat(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil; want %v", name, want)
		return
	}
	if math.Abs(*got-want) > 1e-12 {
		t.Errorf("%s = %v; want %v", name, *got, want)
	}
}
