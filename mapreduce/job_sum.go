package mapreduce

import (
	"encoding/json"
	"fmt"
)

// SumJob adds up the "value" field of every record. It answers to the
// untagged store_data / map_task commands.
type SumJob struct{}

type SumRecord struct {
	Value *float64 `json:"value"`
}

type SumPartial struct {
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

type SumResult struct {
	TotalSum   float64      `json:"total_sum"`
	TotalCount int          `json:"total_count"`
	Average    *float64     `json:"average"`
	MapResults []SumPartial `json:"map_results"`
}

func (job *SumJob) Type() JobType { return JOB_SUM }

func (job *SumJob) Params() interface{} { return nil }

func (job *SumJob) Check(records []json.RawMessage) error {
	_, err := job.decode(records)
	return err
}

func (job *SumJob) decode(records []json.RawMessage) ([]SumRecord, error) {
	values, err := decodeRecords[SumRecord](records)
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

func (job *SumJob) Map(records []json.RawMessage, _ json.RawMessage) (interface{}, error) {
	values, err := job.decode(records)
	if err != nil {
		return nil, err
	}

	partial := SumPartial{Count: len(values)}
	for _, v := range values {
		partial.Sum += *v.Value
	}
	return partial, nil
}

func (job *SumJob) Reduce(partials []json.RawMessage) (interface{}, error) {
	results, err := decodePartials[SumPartial](partials)
	if err != nil {
		return nil, err
	}

	reduced := &SumResult{MapResults: results}
	for _, r := range results {
		reduced.TotalSum += r.Sum
		reduced.TotalCount += r.Count
	}
	if reduced.TotalCount > 0 {
		average := reduced.TotalSum / float64(reduced.TotalCount)
		reduced.Average = &average
	}
	return reduced, nil
}
