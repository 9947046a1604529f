package input

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/util"
)

// ReadJSONL reads JSONL records from r.
// Each line must be a JSON object with "date" and "value" fields; value may
// be a number, null or a missing-value string.
func ReadJSONL(r io.Reader) ([]model.Observation, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	type row struct {
		Date  string          `json:"date"`
		Value json.RawMessage `json:"value"`
	}

	var obs []model.Observation
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rec row
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}

		date, err := util.ParseSeriesDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		val, err := jsonValue(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		obs = append(obs, model.Observation{Date: date, Value: val})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("no observations read from input (is stdin empty?)")
	}
	return obs, nil
}

func jsonValue(raw json.RawMessage) (model.Value, error) {
	if len(raw) == 0 {
		return model.Null(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return util.ParseValue(s)
	}
	var v model.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.Null(), fmt.Errorf("unexpected value %s", raw)
	}
	return v, nil
}

// WriteJSONL writes observations as JSONL to w; missing values are null.
func WriteJSONL(w io.Writer, obs []model.Observation) error {
	enc := json.NewEncoder(w)
	for _, o := range obs {
		rec := struct {
			Date  string      `json:"date"`
			Value model.Value `json:"value"`
		}{util.FormatDate(o.Date), o.Value}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
