package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report json names ("gwrpm25") instead of Go field names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// DecodeMeasurement decodes a {lat, lon, gwrpm25} JSON object. Each field may
// be a number or a numeric string. All failures wrap ErrInvalidInput.
func DecodeMeasurement(data []byte) (Measurement, error) {
	var req EntryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return Measurement{}, err
		}
		return Measurement{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := ValidateEntryRequest(req); err != nil {
		return Measurement{}, err
	}
	return req.Measurement(), nil
}

func ValidateEntryRequest(req EntryRequest) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return fmt.Errorf("%w: %w: %s", ErrInvalidInput, ErrMissingField, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
