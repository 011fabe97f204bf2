package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/gocarina/gocsv"

	"mt5-bridge/internal/orders"
)

// table renders rows as CSV with a header line.
func table(rows interface{}) (*Output, error) {
	if reflect.ValueOf(rows).Len() == 0 {
		return &Output{Content: "", Format: FormatCSV, Data: rows}, nil
	}
	content, err := gocsv.MarshalString(rows)
	if err != nil {
		return nil, fmt.Errorf("encoding table: %w", err)
	}
	return &Output{Content: content, Format: FormatCSV, Data: rows}, nil
}

// object renders v as JSON.
func object(v interface{}) (*Output, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return &Output{Content: string(b), Format: FormatJSON, Data: v}, nil
}

// number renders a scalar result.
func number(v float64) *Output {
	return &Output{Content: strconv.FormatFloat(v, 'f', -1, 64), Format: FormatText, Data: v}
}

// result renders a trade outcome. A failed outcome is an error output that
// still carries the {"error", "message", "data"} document.
func result(r *orders.Result, err error) (*Output, error) {
	if err != nil {
		return nil, err
	}
	out, err := object(r)
	if err != nil {
		return nil, err
	}
	out.IsError = !r.Success
	return out, nil
}
