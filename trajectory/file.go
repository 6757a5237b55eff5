package trajectory

import (
	"os"
	"path/filepath"
)

func create(name string) (*os.File, error) {
	if dir := filepath.Dir(name); dir != "" {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, err
		}
	}
	return os.Create(name)
}

// Create truncates or creates the trajectory file name.
func Create(name string) (*Writer, error) {
	f, err := create(name)
	if err != nil {
		return nil, err
	}
	return NewWriter(f), nil
}

// CreateSampleLog truncates or creates the streaming log name
// and writes its header row.
func CreateSampleLog(name string) (*SampleWriter, error) {
	f, err := create(name)
	if err != nil {
		return nil, err
	}
	w := NewSampleWriter(f)
	err = w.writeHeader()
	if err == nil {
		w.cw.Flush()
		err = w.cw.Error()
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// File is a trajectory file opened for playback.
type File struct {
	*Parser
	f *os.File
}

// Open opens the trajectory file name for reading.
func Open(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &File{Parser: NewParser(f), f: f}, nil
}

func (f *File) Close() error { return f.f.Close() }
