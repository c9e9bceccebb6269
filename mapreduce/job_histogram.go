package mapreduce

import (
	"encoding/json"
	"fmt"
	"math"
)

// Buckets is a layout of Count half-open intervals of equal Width starting at
// Lo: [Lo, Lo+Width), [Lo+Width, Lo+2*Width), ...
type Buckets struct {
	Lo    float64 `json:"lo"`
	Width float64 `json:"width"`
	Count int     `json:"count"`
}

// UnitBuckets returns the fixed layout [lo,lo+1), ..., [hi,hi+1).
func UnitBuckets(lo int, hi int) Buckets {
	return Buckets{Lo: float64(lo), Width: 1, Count: hi - lo + 1}
}

// DynamicBuckets returns buckets of the given width aligned on multiples of
// width and spanning [floor(min/width)*width, floor(max/width)*width+width).
// An empty input gives an empty layout.
func DynamicBuckets(values []float64, width float64) Buckets {
	if len(values) == 0 || width <= 0 {
		return Buckets{Width: width}
	}

	low, high := values[0], values[0]
	for _, v := range values[1:] {
		low = math.Min(low, v)
		high = math.Max(high, v)
	}

	lo := math.Floor(low/width) * width
	hi := math.Floor(high/width)*width + width
	return Buckets{Lo: lo, Width: width, Count: int(math.Round((hi - lo) / width))}
}

// Index returns the bucket holding v, false when v falls outside every bucket.
func (b Buckets) Index(v float64) (int, bool) {
	if b.Width <= 0 || b.Count <= 0 || math.IsNaN(v) || v < b.Lo {
		return 0, false
	}
	i := int(math.Floor((v - b.Lo) / b.Width))
	if i >= b.Count {
		return 0, false
	}
	return i, true
}

func (b Buckets) Label(i int) string {
	lo := b.Lo + float64(i)*b.Width
	return fmt.Sprintf("%g-%g", lo, lo+b.Width)
}

// Labels returns every bucket label in ascending order.
func (b Buckets) Labels() []string {
	labels := make([]string, b.Count)
	for i := range labels {
		labels[i] = b.Label(i)
	}
	return labels
}

// Empty returns a zero-filled histogram with every label of the layout.
func (b Buckets) Empty() map[string]int {
	hist := make(map[string]int, b.Count)
	for _, label := range b.Labels() {
		hist[label] = 0
	}
	return hist
}

// HistogramJob counts values per bucket. The master declares the layout up
// front and sends it with every map command so that all workers report the
// same label set; values outside the layout are dropped.
type HistogramJob struct {
	buckets Buckets
}

type HistogramResult struct {
	Labels     []string         `json:"labels"`
	Counts     map[string]int   `json:"global_histogram_counts"`
	TotalCount int              `json:"total_count"`
	MapResults []map[string]int `json:"map_results"`
}

func NewHistogramJob(buckets Buckets) *HistogramJob {
	return &HistogramJob{buckets: buckets}
}

func (job *HistogramJob) Type() JobType { return JOB_HISTOGRAM }

func (job *HistogramJob) Buckets() Buckets { return job.buckets }

func (job *HistogramJob) Params() interface{} { return job.buckets }

func (job *HistogramJob) Check(records []json.RawMessage) error {
	_, err := decodeRecords[float64](records)
	return err
}

func (job *HistogramJob) Map(records []json.RawMessage, params json.RawMessage) (interface{}, error) {
	var buckets = job.buckets

	values, err := decodeRecords[float64](records)
	if err != nil {
		return nil, err
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no histogram data stored", ErrEmptyPartition)
	}

	if !isNull(params) {
		if err = json.Unmarshal(params, &buckets); err != nil {
			return nil, fmt.Errorf("%w: histogram params: %v", ErrDecode, err)
		}
	}

	hist := buckets.Empty()
	for _, v := range values {
		if i, ok := buckets.Index(v); ok {
			hist[buckets.Label(i)]++
		}
	}
	return hist, nil
}

func (job *HistogramJob) Reduce(partials []json.RawMessage) (interface{}, error) {
	results, err := decodePartials[map[string]int](partials)
	if err != nil {
		return nil, err
	}

	reduced := &HistogramResult{
		Labels:     job.buckets.Labels(),
		Counts:     job.buckets.Empty(),
		MapResults: results,
	}
	for _, hist := range results {
		for label, count := range hist {
			if _, ok := reduced.Counts[label]; !ok {
				continue
			}
			reduced.Counts[label] += count
			reduced.TotalCount += count
		}
	}
	return reduced, nil
}
