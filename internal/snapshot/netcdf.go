package snapshot

import (
	"context"
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"airquality-server/internal/modules/airquality/types"
)

// DefaultGridVariable is the pm25 variable of the annual GWR NetCDF grids.
const DefaultGridVariable = "GWRPM25"

// ReadGrid reads the 2-D variable varName over the lat and lon coordinate
// variables, one latitude row at a time, and returns the cells that hold a
// value in row-major (lat, lon) order. NaN and _FillValue/missing_value
// cells are dropped.
func ReadGrid(ctx context.Context, path, varName string) ([]types.Measurement, error) {
	if varName == "" {
		varName = DefaultGridVariable
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer nc.Close()

	lats, err := coordinate(nc, "lat")
	if err != nil {
		return nil, err
	}
	lons, err := coordinate(nc, "lon")
	if err != nil {
		return nil, err
	}

	vg, err := nc.GetVarGetter(varName)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", varName, err)
	}
	if n := vg.Len(); n != int64(len(lats)) {
		return nil, fmt.Errorf("variable %s has %d rows; lat has %d", varName, n, len(lats))
	}
	missing := missingValues(vg.Attributes())

	records := []types.Measurement{}
	for i := range lats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slice, err := vg.GetSlice(int64(i), int64(i)+1)
		if err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", varName, i, err)
		}
		row, err := floatRow(slice)
		if err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", varName, i, err)
		}
		if len(row) != len(lons) {
			return nil, fmt.Errorf("%s row %d has %d cells; lon has %d", varName, i, len(row), len(lons))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) || missing[v] {
				continue
			}
			records = append(records, types.Measurement{Lat: lats[i], Lon: lons[j], PM25: v})
		}
	}
	return records, nil
}

func coordinate(nc api.Group, name string) ([]float64, error) {
	v, err := nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	values, err := floatRow(v.Values)
	if err != nil {
		return nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	return values, nil
}

// floatRow flattens one row of a float grid. GetSlice on a 2-D variable
// yields a one-element outer slice.
func floatRow(values any) ([]float64, error) {
	switch t := values.(type) {
	case []float64:
		return t, nil
	case []float32:
		out := make([]float64, len(t))
		for i, v := range t {
			out[i] = float64(v)
		}
		return out, nil
	case [][]float64:
		if len(t) != 1 {
			return nil, fmt.Errorf("expected one row, got %d", len(t))
		}
		return t[0], nil
	case [][]float32:
		if len(t) != 1 {
			return nil, fmt.Errorf("expected one row, got %d", len(t))
		}
		return floatRow(t[0])
	default:
		return nil, fmt.Errorf("unsupported value type %T", values)
	}
}

func missingValues(attrs api.AttributeMap) map[float64]bool {
	out := make(map[float64]bool)
	if attrs == nil {
		return out
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		raw, ok := attrs.Get(key)
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			out[v] = true
		case float32:
			out[float64(v)] = true
		case []float64:
			for _, f := range v {
				out[f] = true
			}
		case []float32:
			for _, f := range v {
				out[float64(f)] = true
			}
		}
	}
	return out
}
