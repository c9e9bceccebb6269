package mapreduce

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	LABEL_R = "R" // side 0
	LABEL_S = "S" // any other side
)

// SetDiffJob computes R - S over records tagged with the relation they come
// from. Workers group origin labels by value, the master keeps the values
// that were only ever seen in R.
type SetDiffJob struct{}

// SetDiffRecord is one value of either relation. A missing side counts as S.
type SetDiffRecord struct {
	Value json.RawMessage `json:"v"`
	Side  *float64        `json:"s"`
}

// SetDiffResult lists the values of R - S. They come back as JSON numbers
// when every one of them is numeric and as JSON strings otherwise.
type SetDiffResult struct {
	Difference []json.RawMessage   `json:"difference"`
	Labels     map[string][]string `json:"labels"`
}

func (job *SetDiffJob) Type() JobType { return JOB_SETDIFF }

func (job *SetDiffJob) Params() interface{} { return nil }

func (job *SetDiffJob) Check(records []json.RawMessage) error {
	_, err := job.decode(records)
	return err
}

func (job *SetDiffJob) decode(records []json.RawMessage) ([]SetDiffRecord, error) {
	values, err := decodeRecords[SetDiffRecord](records)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if v.Value == nil {
			return nil, fmt.Errorf("%w: record %d: missing value", ErrDecode, i)
		}
	}
	return values, nil
}

func (job *SetDiffJob) Map(records []json.RawMessage, _ json.RawMessage) (interface{}, error) {
	values, err := job.decode(records)
	if err != nil {
		return nil, err
	}

	local := make(map[string][]string)
	for _, record := range values {
		label := LABEL_S
		if record.Side != nil && *record.Side == 0 {
			label = LABEL_R
		}
		key := valueKey(record.Value)
		local[key] = append(local[key], label)
	}
	return local, nil
}

func (job *SetDiffJob) Reduce(partials []json.RawMessage) (interface{}, error) {
	results, err := decodePartials[map[string][]string](partials)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]map[string]bool)
	for _, local := range results {
		for key, labels := range local {
			if seen[key] == nil {
				seen[key] = make(map[string]bool)
			}
			for _, label := range labels {
				seen[key][label] = true
			}
		}
	}

	reduced := &SetDiffResult{
		Difference: make([]json.RawMessage, 0),
		Labels:     make(map[string][]string, len(seen)),
	}
	difference := make([]string, 0)
	for key, labels := range seen {
		for label := range labels {
			reduced.Labels[key] = append(reduced.Labels[key], label)
		}
		sort.Strings(reduced.Labels[key])

		if len(labels) == 1 && labels[LABEL_R] {
			difference = append(difference, key)
		}
	}

	numeric := sortValues(difference)
	for _, key := range difference {
		if numeric {
			reduced.Difference = append(reduced.Difference, json.RawMessage(key))
			continue
		}
		buffer, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		reduced.Difference = append(reduced.Difference, buffer)
	}

	return reduced, nil
}

// valueKey is the map key of a record value: strings as-is, anything else as
// its JSON text.
func valueKey(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// sortValues sorts numerically when every key is a number in its canonical
// JSON form, lexicographically otherwise. It reports which order it used.
func sortValues(keys []string) bool {
	numbers := make(map[string]float64, len(keys))
	for _, key := range keys {
		n, ok := numberKey(key)
		if !ok {
			sort.Strings(keys)
			return false
		}
		numbers[key] = n
	}
	sort.Slice(keys, func(i, j int) bool { return numbers[keys[i]] < numbers[keys[j]] })
	return true
}

// numberKey parses key as a JSON number. Forms such as "NaN", "inf", "0x10"
// or " 5" are not numbers, nor is any text json.Marshal would write
// differently.
func numberKey(key string) (float64, bool) {
	var n float64
	if err := json.Unmarshal([]byte(key), &n); err != nil {
		return 0, false
	}
	buffer, err := json.Marshal(n)
	if err != nil || string(buffer) != key {
		return 0, false
	}
	return n, true
}
