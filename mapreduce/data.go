package mapreduce

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	DATA_PATH = "data/"

	SLOT_FILE_MODE = 0644
)

// Split cuts data into exactly n contiguous chunks. The first n-1 chunks get
// len(data)/n elements each and the last one gets whatever is left, so with
// fewer elements than chunks the leading chunks are empty.
func Split[T any](data []T, n int) [][]T {
	if n < 1 {
		n = 1
	}

	var (
		chunks    = make([][]T, n)
		chunkSize = len(data) / n
	)

	for i := 0; i < n-1; i++ {
		chunks[i] = data[i*chunkSize : (i+1)*chunkSize]
	}
	chunks[n-1] = data[(n-1)*chunkSize:]

	return chunks
}

// Store keeps one partition per job type for a single worker, each in its
// own file named after the job and the worker's port.
type Store struct {
	dir     string
	port    string
	minFree uint64
}

// NewStore creates dir if needed. minFree is the amount of free bytes the
// filesystem must keep for Save to proceed, 0 disables the check.
func NewStore(dir string, port string, minFree uint64) (*Store, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	return &Store{dir: dir, port: port, minFree: minFree}, nil
}

// Returns the file holding the partition of a job.
func (store *Store) slotName(job JobType) string {
	return filepath.Join(store.dir, fmt.Sprintf("%v_worker_data_%v.pb", job, store.port))
}

// Save replaces the partition of job. The new content is written to a
// temporary file and renamed over the slot, so readers never observe a
// partially written partition.
func (store *Store) Save(job JobType, records []json.RawMessage) error {
	var (
		err    error
		values []interface{}
		list   *structpb.ListValue
		buffer []byte
		file   *os.File
	)

	if err = store.checkFreeSpace(); err != nil {
		return err
	}

	values = make([]interface{}, len(records))
	for i, record := range records {
		if err = json.Unmarshal(record, &values[i]); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrDecode, i, err)
		}
	}

	if list, err = structpb.NewList(values); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if buffer, err = proto.Marshal(list); err != nil {
		return err
	}

	if file, err = os.CreateTemp(store.dir, filepath.Base(store.slotName(job))+".tmp-*"); err != nil {
		return err
	}
	defer os.Remove(file.Name())

	if _, err = file.Write(buffer); err != nil {
		file.Close()
		return err
	}
	if err = file.Chmod(SLOT_FILE_MODE); err != nil {
		file.Close()
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}

	return os.Rename(file.Name(), store.slotName(job))
}

// Load returns the partition of job. A job that was never stored has an
// empty partition.
func (store *Store) Load(job JobType) ([]json.RawMessage, error) {
	var (
		err     error
		buffer  []byte
		list    *structpb.ListValue
		records []json.RawMessage
	)

	buffer, err = os.ReadFile(store.slotName(job))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	list = new(structpb.ListValue)
	if err = proto.Unmarshal(buffer, list); err != nil {
		return nil, fmt.Errorf("corrupt partition %v: %w", store.slotName(job), err)
	}

	records = make([]json.RawMessage, 0, len(list.GetValues()))
	for _, value := range list.AsSlice() {
		record, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// checkFreeSpace refuses writes once the filesystem under the store drops
// below minFree available bytes.
func (store *Store) checkFreeSpace() error {
	var stat unix.Statfs_t

	if store.minFree == 0 {
		return nil
	}

	if err := unix.Statfs(store.dir, &stat); err != nil {
		return err
	}

	free := stat.Bavail * uint64(stat.Bsize)
	if free < store.minFree {
		log.Printf("Refusing write to %v: %v bytes free, %v required\n", store.dir, free, store.minFree)
		return fmt.Errorf("%w: %v bytes free in %v", ErrNoSpace, free, store.dir)
	}
	return nil
}

func RemoveContents(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	names, err := d.Readdirnames(-1)
	if err != nil {
		return err
	}
	for _, name := range names {
		err = os.RemoveAll(filepath.Join(dir, name))
		if err != nil {
			return err
		}
	}
	return nil
}
