package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// loadInput reads the records of a job. A .json file holds an array of
// records; any other file is read as CSV and the named column is used, with
// numeric cells converted to numbers.
func loadInput(fileName string, column string) ([]interface{}, error) {
	if strings.EqualFold(filepath.Ext(fileName), ".json") {
		return loadJSON(fileName)
	}
	return loadCSVColumn(fileName, column)
}

func loadJSON(fileName string) (records []interface{}, err error) {
	var file *os.File

	if file, err = os.Open(fileName); err != nil {
		return nil, err
	}
	defer file.Close()

	if err = json.NewDecoder(file).Decode(&records); err != nil {
		return nil, fmt.Errorf("%v: %v", fileName, err)
	}
	return records, nil
}

func loadCSVColumn(fileName string, column string) (records []interface{}, err error) {
	var (
		file   *os.File
		reader *csv.Reader
		header []string
		row    []string
		index  = -1
	)

	if file, err = os.Open(fileName); err != nil {
		return nil, err
	}
	defer file.Close()

	reader = csv.NewReader(file)

	if header, err = reader.Read(); err != nil {
		return nil, fmt.Errorf("%v: reading header: %v", fileName, err)
	}
	for i, name := range header {
		if strings.TrimSpace(name) == column {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%v: no column %q in %v", fileName, column, header)
	}

	records = make([]interface{}, 0)
	for {
		if row, err = reader.Read(); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%v: %v", fileName, err)
		}

		cell := strings.TrimSpace(row[index])
		if cell == "" {
			continue
		}
		if n, err := strconv.ParseFloat(cell, 64); err == nil {
			records = append(records, n)
		} else {
			records = append(records, cell)
		}
	}

	return records, nil
}

// numbers keeps the numeric records, used to lay out dynamic histogram buckets.
func numbers(records []interface{}) []float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if n, ok := r.(float64); ok {
			values = append(values, n)
		}
	}
	return values
}
