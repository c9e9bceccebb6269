package mapreduce

import (
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"testing"
)

func partials(t *testing.T, values ...interface{}) []json.RawMessage {
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		buffer, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = buffer
	}
	return out
}

func mapPartial(t *testing.T, job Job, params interface{}, records ...string) json.RawMessage {
	var rawParams json.RawMessage

	if params != nil {
		rawParams, _ = json.Marshal(params)
	}
	result, err := job.Map(raw(records...), rawParams)
	if err != nil {
		t.Fatalf("%v map failed: %v", job.Type(), err)
	}
	buffer, err := json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	return buffer
}

func TestMeanReduce(t *testing.T) {
	job := &MeanJob{}

	result, err := job.Reduce(partials(t,
		MeanPartial{LocalMean: 10, Count: 2},
		MeanPartial{LocalMean: 20, Count: 3},
		MeanPartial{LocalMean: 30, Count: 5},
	))
	if err != nil {
		t.Fatal(err)
	}

	mean := result.(*MeanResult)
	if mean.GlobalMean == nil || *mean.GlobalMean != 23.0 {
		t.Fatalf("global mean is %v; expected 23", mean.GlobalMean)
	}
	if mean.TotalCount != 10 || mean.TotalSum != 230 {
		t.Fatalf("totals are %v/%v; expected 230/10", mean.TotalSum, mean.TotalCount)
	}
}

func TestMeanEmpty(t *testing.T) {
	job := &MeanJob{}

	var partial MeanPartial
	if err := json.Unmarshal(mapPartial(t, job, nil), &partial); err != nil {
		t.Fatal(err)
	}
	if partial != (MeanPartial{}) {
		t.Fatalf("empty partition mapped to %+v", partial)
	}

	result, err := job.Reduce(partials(t, MeanPartial{}, MeanPartial{}))
	if err != nil {
		t.Fatal(err)
	}
	if result.(*MeanResult).GlobalMean != nil {
		t.Fatalf("mean over no values is %v; expected nil", *result.(*MeanResult).GlobalMean)
	}

	buffer, _ := json.Marshal(result)
	var decoded map[string]interface{}
	json.Unmarshal(buffer, &decoded)
	if v, ok := decoded["global_mean"]; !ok || v != nil {
		t.Fatalf("global_mean encodes as %v; expected null", v)
	}
}

func TestMeanMap(t *testing.T) {
	var partial MeanPartial

	if err := json.Unmarshal(mapPartial(t, &MeanJob{}, nil, `1`, `2`, `6`), &partial); err != nil {
		t.Fatal(err)
	}
	if partial.LocalMean != 3 || partial.Count != 3 {
		t.Fatalf("map returned %+v; expected mean 3 over 3", partial)
	}
}

func TestSumJob(t *testing.T) {
	job := &SumJob{}

	result, err := job.Reduce([]json.RawMessage{
		mapPartial(t, job, nil, `{"value":10}`, `{"value":20}`),
		mapPartial(t, job, nil),
		mapPartial(t, job, nil, `{"value":30}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	sum := result.(*SumResult)
	if sum.TotalSum != 60 || sum.TotalCount != 3 || sum.Average == nil || *sum.Average != 20 {
		t.Fatalf("sum result is %+v", sum)
	}
}

func TestBuckets(t *testing.T) {
	unit := UnitBuckets(1, 8)

	if !reflect.DeepEqual(unit.Labels(), []string{"1-2", "2-3", "3-4", "4-5", "5-6", "6-7", "7-8", "8-9"}) {
		t.Fatalf("unit labels are %v", unit.Labels())
	}

	cases := []struct {
		v     float64
		label string
		ok    bool
	}{
		{1, "1-2", true},
		{1.99, "1-2", true},
		{2, "2-3", true},
		{8.5, "8-9", true},
		{9, "", false},
		{0.5, "", false},
		{-3, "", false},
	}
	for _, c := range cases {
		i, ok := unit.Index(c.v)
		if ok != c.ok || (ok && unit.Label(i) != c.label) {
			t.Fatalf("Index(%v) = %v, %v; expected %q, %v", c.v, i, ok, c.label, c.ok)
		}
	}

	dynamic := DynamicBuckets([]float64{3, 12, 7, 10}, 5)
	if !reflect.DeepEqual(dynamic.Labels(), []string{"0-5", "5-10", "10-15"}) {
		t.Fatalf("dynamic labels are %v", dynamic.Labels())
	}
	if i, ok := dynamic.Index(10); !ok || dynamic.Label(i) != "10-15" {
		t.Fatalf("10 falls in %v (%v); expected 10-15", dynamic.Label(i), ok)
	}

	if DynamicBuckets(nil, 5).Count != 0 {
		t.Fatalf("dynamic buckets over no values are not empty")
	}
}

func TestHistogram(t *testing.T) {
	job := NewHistogramJob(UnitBuckets(1, 8))

	result, err := job.Reduce([]json.RawMessage{
		mapPartial(t, job, job.Params(), `1`, `1`, `3`),
		mapPartial(t, job, job.Params(), `8`, `8`, `8`),
	})
	if err != nil {
		t.Fatal(err)
	}

	hist := result.(*HistogramResult)
	want := map[string]int{"1-2": 2, "2-3": 0, "3-4": 1, "4-5": 0, "5-6": 0, "6-7": 0, "7-8": 0, "8-9": 3}
	if !reflect.DeepEqual(hist.Counts, want) {
		t.Fatalf("histogram is %v; expected %v", hist.Counts, want)
	}
	if hist.TotalCount != 6 {
		t.Fatalf("total count is %v; expected 6", hist.TotalCount)
	}
}

func TestHistogramDropsOutOfRange(t *testing.T) {
	job := NewHistogramJob(UnitBuckets(1, 8))

	var hist map[string]int
	json.Unmarshal(mapPartial(t, job, nil, `0`, `9`, `2`, `100`), &hist)
	if hist["2-3"] != 1 || len(hist) != 8 {
		t.Fatalf("local histogram is %v", hist)
	}

	// labels outside the declared layout are ignored
	result, err := job.Reduce(partials(t, map[string]int{"1-2": 1, "9-10": 4}, nil))
	if err != nil {
		t.Fatal(err)
	}
	if hist := result.(*HistogramResult); hist.TotalCount != 1 || hist.Counts["1-2"] != 1 {
		t.Fatalf("reduced histogram is %+v", hist)
	}
}

func TestHistogramParams(t *testing.T) {
	job := NewHistogramJob(UnitBuckets(1, 8))

	var hist map[string]int
	json.Unmarshal(mapPartial(t, job, Buckets{Lo: 0, Width: 5, Count: 2}, `1`, `5`, `9.9`, `10`), &hist)
	if !reflect.DeepEqual(hist, map[string]int{"0-5": 1, "5-10": 2}) {
		t.Fatalf("histogram with params is %v", hist)
	}
}

func TestHistogramEmptyPartition(t *testing.T) {
	job := NewHistogramJob(UnitBuckets(1, 8))

	if _, err := job.Map(nil, nil); !errors.Is(err, ErrEmptyPartition) {
		t.Fatalf("map over empty partition returned %v; expected ErrEmptyPartition", err)
	}
}

func TestSetDiff(t *testing.T) {
	job := &SetDiffJob{}

	result, err := job.Reduce([]json.RawMessage{
		mapPartial(t, job, nil, `{"v":5,"s":0}`, `{"v":7,"s":0}`, `{"v":10,"s":0}`),
		mapPartial(t, job, nil, `{"v":7,"s":1}`, `{"v":9,"s":1}`, `{"v":5,"s":0}`),
		mapPartial(t, job, nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	diff := result.(*SetDiffResult)
	if buffer, _ := json.Marshal(diff.Difference); string(buffer) != `[5,10]` {
		t.Fatalf("difference is %s; expected [5,10]", buffer)
	}
	if !reflect.DeepEqual(diff.Labels["7"], []string{LABEL_R, LABEL_S}) {
		t.Fatalf("labels of 7 are %v", diff.Labels["7"])
	}
}

func TestSetDiffLabels(t *testing.T) {
	var local map[string][]string

	json.Unmarshal(mapPartial(t, &SetDiffJob{}, nil, `{"v":"a","s":0}`, `{"v":"a","s":2}`, `{"v":3}`), &local)
	want := map[string][]string{"a": {LABEL_R, LABEL_S}, "3": {LABEL_S}}
	if !reflect.DeepEqual(local, want) {
		t.Fatalf("local map is %v; expected %v", local, want)
	}

	if err := (&SetDiffJob{}).Check(raw(`{"s":0}`)); !errors.Is(err, ErrDecode) {
		t.Fatalf("record without value passed Check: %v", err)
	}
}

func TestSetDiffStringValues(t *testing.T) {
	job := &SetDiffJob{}

	result, err := job.Reduce([]json.RawMessage{
		mapPartial(t, job, nil, `{"v":"b","s":0}`, `{"v":"a","s":0}`, `{"v":"c","s":1}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	diff := result.(*SetDiffResult)
	if buffer, _ := json.Marshal(diff.Difference); string(buffer) != `["a","b"]` {
		t.Fatalf("difference is %s; expected [\"a\",\"b\"]", buffer)
	}
}

func TestSortValues(t *testing.T) {
	keys := []string{"10", "9", "-1", "2.5"}
	if !sortValues(keys) || !reflect.DeepEqual(keys, []string{"-1", "2.5", "9", "10"}) {
		t.Fatalf("numeric sort gave %v", keys)
	}

	keys = []string{"b", "10", "a"}
	if sortValues(keys) || !reflect.DeepEqual(keys, []string{"10", "a", "b"}) {
		t.Fatalf("lexicographic sort gave %v", keys)
	}

	for _, odd := range []string{"NaN", "inf", "-Inf", "0x1p4", " 5", "1.0", "+3"} {
		keys = []string{"3", odd, "1"}
		if sortValues(keys) {
			t.Fatalf("%q was sorted as a number: %v", odd, keys)
		}
		if !sort.StringsAreSorted(keys) {
			t.Fatalf("keys with %q are not in lexicographic order: %v", odd, keys)
		}
	}
}

func TestNullRecords(t *testing.T) {
	jobs := DefaultJobs()

	cases := map[JobType][]string{
		JOB_MEAN:      {`null`, `10`},
		JOB_HISTOGRAM: {`2`, `null`},
		JOB_SUM:       {`{"value":1}`, `{}`},
		JOB_SETDIFF:   {`null`},
		JOB_MATMUL:    {`null`},
	}
	for jobType, records := range cases {
		job, _ := jobs.Get(jobType)
		if err := job.Check(raw(records...)); !errors.Is(err, ErrDecode) {
			t.Fatalf("%v accepted %v: %v", jobType, records, err)
		}
		if _, err := job.Map(raw(records...), nil); !errors.Is(err, ErrDecode) {
			t.Fatalf("%v mapped %v: %v", jobType, records, err)
		}
	}

	if err := (&SumJob{}).Check(raw(`null`)); !errors.Is(err, ErrDecode) {
		t.Fatalf("sum accepted a null record: %v", err)
	}
}

func TestMatMul(t *testing.T) {
	job := NewMatMulJob(DefaultMatrixDims)

	result, err := job.Reduce([]json.RawMessage{
		mapPartial(t, job, job.Params(), `{"m":0,"i":1,"j":2,"v":3}`),
		mapPartial(t, job, job.Params(), `{"m":1,"i":2,"j":4,"v":5}`, `{"m":1,"i":3,"j":1,"v":7}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	product := result.(*MatMulResult)
	if !reflect.DeepEqual(product.Cells, []MatrixCell{{Row: 1, Col: 4, Value: 15}}) {
		t.Fatalf("product is %+v; expected a single cell (1,4)=15", product.Cells)
	}
}

func TestMatMulSmall(t *testing.T) {
	// [1 2]   [5 6]   [19 22]
	// [3 4] x [7 8] = [43 50]
	dims := MatrixDims{Rows: 2, Inner: 2, Cols: 2}
	job := NewMatMulJob(dims)

	result, err := job.Reduce([]json.RawMessage{
		mapPartial(t, job, dims, `{"m":0,"i":1,"j":1,"v":1}`, `{"m":0,"i":1,"j":2,"v":2}`, `{"m":1,"i":1,"j":1,"v":5}`),
		mapPartial(t, job, dims, `{"m":0,"i":2,"j":1,"v":3}`, `{"m":0,"i":2,"j":2,"v":4}`),
		mapPartial(t, job, dims, `{"m":1,"i":1,"j":2,"v":6}`, `{"m":1,"i":2,"j":1,"v":7}`, `{"m":1,"i":2,"j":2,"v":8}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []MatrixCell{{1, 1, 19}, {1, 2, 22}, {2, 1, 43}, {2, 2, 50}}
	if !reflect.DeepEqual(result.(*MatMulResult).Cells, want) {
		t.Fatalf("product is %+v; expected %+v", result.(*MatMulResult).Cells, want)
	}
}

func TestMatMulMap(t *testing.T) {
	job := NewMatMulJob(DefaultMatrixDims)

	var contributions []MatrixContribution
	json.Unmarshal(mapPartial(t, job, nil, `{"m":0,"i":3,"j":2,"v":1.5}`), &contributions)
	if len(contributions) != DefaultMatrixDims.Cols {
		t.Fatalf("M entry emitted %v contributions; expected %v", len(contributions), DefaultMatrixDims.Cols)
	}
	if contributions[0] != (MatrixContribution{3, 1, TAG_LEFT, 2, 1.5}) {
		t.Fatalf("first contribution is %+v", contributions[0])
	}

	buffer, _ := json.Marshal(contributions[0])
	if string(buffer) != `[[3,1],["M",2,1.5]]` {
		t.Fatalf("contribution encodes as %s", buffer)
	}

	if _, err := job.Map(raw(`{"m":0,"i":15,"j":1,"v":1}`), nil); !errors.Is(err, ErrDecode) {
		t.Fatalf("out of bounds entry returned %v; expected ErrDecode", err)
	}
	if err := job.Check(raw(`{"m":2,"i":1,"j":1,"v":1}`)); !errors.Is(err, ErrDecode) {
		t.Fatalf("unknown matrix passed Check: %v", err)
	}

	for _, entry := range []string{
		`{"m":0,"i":99,"j":1,"v":1}`,
		`{"m":0,"i":14,"j":8,"v":1}`,
		`{"m":1,"i":8,"j":1,"v":1}`,
		`{"m":1,"i":7,"j":10,"v":1}`,
	} {
		if err := job.Check(raw(entry)); !errors.Is(err, ErrDecode) {
			t.Fatalf("out of bounds entry %s passed Check: %v", entry, err)
		}
	}
	if err := job.Check(raw(`{"m":0,"i":14,"j":7,"v":1}`, `{"m":1,"i":7,"j":9,"v":1}`)); err != nil {
		t.Fatalf("corner entries failed Check: %v", err)
	}
}

func TestReduceOrderIndependent(t *testing.T) {
	jobs := DefaultJobs()

	inputs := map[JobType][][]string{
		JOB_MEAN:      {{`1`, `2`}, {`10`}, {}},
		JOB_HISTOGRAM: {{`1`, `2`}, {`2.5`, `8`}, {`4`}},
		JOB_SETDIFF:   {{`{"v":1,"s":0}`}, {`{"v":1,"s":1}`, `{"v":2,"s":0}`}, {`{"v":3,"s":0}`}},
		JOB_MATMUL:    {{`{"m":0,"i":1,"j":1,"v":2}`}, {`{"m":1,"i":1,"j":1,"v":3}`}, {`{"m":0,"i":2,"j":1,"v":4}`}},
	}

	for jobType, chunks := range inputs {
		job, _ := jobs.Get(jobType)

		forward := make([]json.RawMessage, len(chunks))
		backward := make([]json.RawMessage, len(chunks))
		for i, chunk := range chunks {
			forward[i] = mapPartial(t, job, job.Params(), chunk...)
			backward[len(chunks)-1-i] = forward[i]
		}

		a, err := job.Reduce(forward)
		if err != nil {
			t.Fatal(err)
		}
		b, err := job.Reduce(backward)
		if err != nil {
			t.Fatal(err)
		}

		switch a := a.(type) {
		case *MeanResult:
			if *a.GlobalMean != *b.(*MeanResult).GlobalMean {
				t.Fatalf("mean depends on worker order")
			}
		case *HistogramResult:
			if !reflect.DeepEqual(a.Counts, b.(*HistogramResult).Counts) {
				t.Fatalf("histogram depends on worker order")
			}
		case *SetDiffResult:
			if !reflect.DeepEqual(a.Difference, b.(*SetDiffResult).Difference) {
				t.Fatalf("set difference depends on worker order")
			}
		case *MatMulResult:
			if !reflect.DeepEqual(a.Cells, b.(*MatMulResult).Cells) {
				t.Fatalf("product depends on worker order")
			}
		}
	}
}

func TestJobSet(t *testing.T) {
	jobs := DefaultJobs()

	for alias, jobType := range map[string]JobType{"p2": JOB_MEAN, "p3": JOB_HISTOGRAM, "p4": JOB_SETDIFF, "p5": JOB_MATMUL, "sum": JOB_SUM} {
		job, ok := jobs.Lookup(alias)
		if !ok || job.Type() != jobType {
			t.Fatalf("Lookup(%q) = %v, %v; expected %v", alias, job, ok, jobType)
		}
	}

	if _, err := jobs.Get("wordcount"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Get of unknown job returned %v", err)
	}

	if len(jobs.Types()) != 5 {
		t.Fatalf("default jobs are %v", jobs.Types())
	}
}
