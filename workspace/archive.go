package workspace

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
)

// MaxArchiveBytes bounds the total uncompressed size read from an archive
const MaxArchiveBytes = 4 << 20

// FilesFromArchive reads a tar.gz archive into a file mapping suitable for
// Materialize. Directory entries are skipped; links and devices are rejected.
func FilesFromArchive(data []byte) (map[string]string, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	files := make(map[string]string)
	var total int64

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading tar: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeReg:
		default:
			return nil, fmt.Errorf("unsupported file type in tar: %c", header.Typeflag)
		}

		name, err := CheckName(header.Name)
		if err != nil {
			return nil, err
		}

		total += header.Size
		if header.Size < 0 || total > MaxArchiveBytes {
			return nil, fmt.Errorf("archive exceeds %d bytes", MaxArchiveBytes)
		}

		content := make([]byte, header.Size)
		if _, err := io.ReadFull(tarReader, content); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		files[name] = string(content)
	}

	return files, nil
}
