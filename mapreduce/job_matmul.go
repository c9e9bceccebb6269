package mapreduce

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	MATRIX_LEFT  = 0
	MATRIX_RIGHT = 1

	TAG_LEFT  = "M"
	TAG_RIGHT = "N"
)

// MatrixDims describes the product of a Rows x Inner matrix (M) with an
// Inner x Cols matrix (N). Indices are 1-based.
type MatrixDims struct {
	Rows  int `json:"rows"`
	Inner int `json:"inner"`
	Cols  int `json:"cols"`
}

var DefaultMatrixDims = MatrixDims{Rows: 14, Inner: 7, Cols: 9}

// check fails with ErrDecode when record i lies outside its matrix.
func (dims MatrixDims) check(i int, e MatrixEntry) error {
	switch e.Matrix {
	case MATRIX_LEFT:
		if e.Row > dims.Rows || e.Col > dims.Inner {
			return fmt.Errorf("%w: record %d: M(%d,%d) outside %dx%d", ErrDecode, i, e.Row, e.Col, dims.Rows, dims.Inner)
		}
	case MATRIX_RIGHT:
		if e.Row > dims.Inner || e.Col > dims.Cols {
			return fmt.Errorf("%w: record %d: N(%d,%d) outside %dx%d", ErrDecode, i, e.Row, e.Col, dims.Inner, dims.Cols)
		}
	}
	return nil
}

// MatrixEntry is one non-zero entry of M (Matrix 0) or N (Matrix 1).
type MatrixEntry struct {
	Matrix int     `json:"m"`
	Row    int     `json:"i"`
	Col    int     `json:"j"`
	Value  float64 `json:"v"`
}

// MatrixContribution is emitted by the map phase: an entry of M or N routed
// to an output cell, with the inner index it has to be joined on.
// On the wire it reads [[row, col], [tag, key, value]].
type MatrixContribution struct {
	Row   int
	Col   int
	Tag   string
	Key   int
	Value float64
}

func (c MatrixContribution) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{
		[]int{c.Row, c.Col},
		[]interface{}{c.Tag, c.Key, c.Value},
	})
}

func (c *MatrixContribution) UnmarshalJSON(data []byte) error {
	var (
		pair    [2]json.RawMessage
		cell    [2]int
		contrib [3]json.RawMessage
	)

	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &cell); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[1], &contrib); err != nil {
		return err
	}

	c.Row, c.Col = cell[0], cell[1]
	if err := json.Unmarshal(contrib[0], &c.Tag); err != nil {
		return err
	}
	if err := json.Unmarshal(contrib[1], &c.Key); err != nil {
		return err
	}
	return json.Unmarshal(contrib[2], &c.Value)
}

type MatrixCell struct {
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Value float64 `json:"value"`
}

// MatMulResult is the sparse product: only non-zero cells, row-major.
type MatMulResult struct {
	Rows  int          `json:"rows"`
	Cols  int          `json:"cols"`
	Cells []MatrixCell `json:"cells"`
}

// MatMulJob multiplies M and N as a join on the inner index. Every entry of
// M is copied to each output cell of its row, every entry of N to each
// output cell of its column; the master then joins both sides per cell.
type MatMulJob struct {
	dims MatrixDims
}

func NewMatMulJob(dims MatrixDims) *MatMulJob {
	return &MatMulJob{dims: dims}
}

func (job *MatMulJob) Type() JobType { return JOB_MATMUL }

func (job *MatMulJob) Params() interface{} { return job.dims }

func (job *MatMulJob) Check(records []json.RawMessage) error {
	entries, err := decodeRecords[MatrixEntry](records)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.Matrix != MATRIX_LEFT && e.Matrix != MATRIX_RIGHT {
			return fmt.Errorf("%w: record %d: unknown matrix %d", ErrDecode, i, e.Matrix)
		}
		if e.Row < 1 || e.Col < 1 {
			return fmt.Errorf("%w: record %d: indices are 1-based", ErrDecode, i)
		}
		if err = job.dims.check(i, e); err != nil {
			return err
		}
	}
	return nil
}

func (job *MatMulJob) Map(records []json.RawMessage, params json.RawMessage) (interface{}, error) {
	var dims = job.dims

	entries, err := decodeRecords[MatrixEntry](records)
	if err != nil {
		return nil, err
	}

	if !isNull(params) {
		if err = json.Unmarshal(params, &dims); err != nil {
			return nil, fmt.Errorf("%w: matrix params: %v", ErrDecode, err)
		}
	}

	result := make([]MatrixContribution, 0)
	for i, e := range entries {
		if err = dims.check(i, e); err != nil {
			return nil, err
		}
		switch e.Matrix {
		case MATRIX_LEFT:
			for k := 1; k <= dims.Cols; k++ {
				result = append(result, MatrixContribution{e.Row, k, TAG_LEFT, e.Col, e.Value})
			}
		case MATRIX_RIGHT:
			for r := 1; r <= dims.Rows; r++ {
				result = append(result, MatrixContribution{r, e.Col, TAG_RIGHT, e.Row, e.Value})
			}
		default:
			return nil, fmt.Errorf("%w: record %d: unknown matrix %d", ErrDecode, i, e.Matrix)
		}
	}
	return result, nil
}

func (job *MatMulJob) Reduce(partials []json.RawMessage) (interface{}, error) {
	type join struct {
		left  map[int]float64
		right map[int]float64
	}

	results, err := decodePartials[[]MatrixContribution](partials)
	if err != nil {
		return nil, err
	}

	groups := make(map[[2]int]*join)
	for _, contributions := range results {
		for _, c := range contributions {
			cell := [2]int{c.Row, c.Col}
			g, ok := groups[cell]
			if !ok {
				g = &join{left: make(map[int]float64), right: make(map[int]float64)}
				groups[cell] = g
			}
			switch c.Tag {
			case TAG_LEFT:
				g.left[c.Key] += c.Value
			case TAG_RIGHT:
				g.right[c.Key] += c.Value
			default:
				return nil, fmt.Errorf("%w: unknown matrix tag %q", ErrDecode, c.Tag)
			}
		}
	}

	reduced := &MatMulResult{Rows: job.dims.Rows, Cols: job.dims.Cols, Cells: make([]MatrixCell, 0)}
	for cell, g := range groups {
		var value float64
		for key, left := range g.left {
			if right, ok := g.right[key]; ok {
				value += left * right
			}
		}
		if value != 0 {
			reduced.Cells = append(reduced.Cells, MatrixCell{cell[0], cell[1], value})
		}
	}
	sort.Slice(reduced.Cells, func(i, j int) bool {
		if reduced.Cells[i].Row != reduced.Cells[j].Row {
			return reduced.Cells[i].Row < reduced.Cells[j].Row
		}
		return reduced.Cells[i].Col < reduced.Cells[j].Col
	})

	return reduced, nil
}
