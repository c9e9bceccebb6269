package mapreduce

import (
	"encoding/json"
)

// MeanJob computes the mean of a numeric column. Workers report their local
// mean and count; the master weights each local mean by its count.
type MeanJob struct{}

type MeanPartial struct {
	LocalMean float64 `json:"local_mean"`
	Count     int     `json:"count"`
}

// MeanResult holds the global mean, nil when no worker had any value.
type MeanResult struct {
	TotalSum   float64       `json:"total_sum"`
	TotalCount int           `json:"total_count"`
	GlobalMean *float64      `json:"global_mean"`
	MapResults []MeanPartial `json:"map_results"`
}

func (job *MeanJob) Type() JobType { return JOB_MEAN }

func (job *MeanJob) Params() interface{} { return nil }

func (job *MeanJob) Check(records []json.RawMessage) error {
	_, err := decodeRecords[float64](records)
	return err
}

func (job *MeanJob) Map(records []json.RawMessage, _ json.RawMessage) (interface{}, error) {
	values, err := decodeRecords[float64](records)
	if err != nil {
		return nil, err
	}

	if len(values) == 0 {
		return MeanPartial{}, nil
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return MeanPartial{LocalMean: sum / float64(len(values)), Count: len(values)}, nil
}

func (job *MeanJob) Reduce(partials []json.RawMessage) (interface{}, error) {
	results, err := decodePartials[MeanPartial](partials)
	if err != nil {
		return nil, err
	}

	reduced := &MeanResult{MapResults: results}
	for _, r := range results {
		reduced.TotalSum += r.LocalMean * float64(r.Count)
		reduced.TotalCount += r.Count
	}
	if reduced.TotalCount > 0 {
		mean := reduced.TotalSum / float64(reduced.TotalCount)
		reduced.GlobalMean = &mean
	}
	return reduced, nil
}
