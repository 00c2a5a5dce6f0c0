package scene

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// File is a named archive entry.
type File struct {
	Name string
	Data []byte
}

// WriteZip writes files as a deflated ZIP archive in the given order.
func WriteZip(w io.Writer, files []File) error {
	zw := zip.NewWriter(w)
	for _, f := range files {
		if err := writeEntry(zw, f.Name, f.Data); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip: close archive: %w", err)
	}
	return nil
}
