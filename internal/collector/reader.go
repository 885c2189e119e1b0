package collector

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/rzbill/ringlog/internal/record"
)

// UploadReader decodes the records of a stored upload.
type UploadReader struct {
	*record.Reader
	f   *os.File
	dec *zstd.Decoder
}

// OpenUpload opens a stored upload, decompressing .zst files.
func OpenUpload(path string) (*UploadReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	ur := &UploadReader{f: f}
	var src io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		ur.dec = dec
		src = dec
	}
	ur.Reader = record.NewReader(src)
	return ur, nil
}

// Close releases the file and decoder.
func (ur *UploadReader) Close() error {
	if ur.dec != nil {
		ur.dec.Close()
	}
	return ur.f.Close()
}

// ReadUpload returns every record of a stored upload.
func ReadUpload(path string) ([]record.Record, error) {
	ur, err := OpenUpload(path)
	if err != nil {
		return nil, err
	}
	defer ur.Close()
	var out []record.Record
	for {
		r, err := ur.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
}
