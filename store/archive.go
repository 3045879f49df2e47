package store

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vshn/guildsnap/snapshot"
)

// DocumentName is the name of the snapshot document inside an archive.
const DocumentName = "snapshot.json"

// maxDocumentSize bounds how much is read from a single archive entry.
const maxDocumentSize = 64 << 20

// tarGzipWriter combines a tar.Writer and a gzip.Writer into one tar.gz stream.
type tarGzipWriter struct {
	tarWriter  *tar.Writer
	gzipWriter *gzip.Writer
}

func newTarGzipWriter(w io.Writer) *tarGzipWriter {
	gzipWriter := gzip.NewWriter(w)
	return &tarGzipWriter{
		tarWriter:  tar.NewWriter(gzipWriter),
		gzipWriter: gzipWriter,
	}
}

func (t *tarGzipWriter) WriteHeader(hdr *tar.Header) error {
	return t.tarWriter.WriteHeader(hdr)
}

func (t *tarGzipWriter) Write(p []byte) (int, error) {
	return t.tarWriter.Write(p)
}

// Close closes the tar writer and then the gzip writer. The error of the gzip
// writer takes precedence. The downstream writer is left open.
func (t *tarGzipWriter) Close() error {
	tarErr := t.tarWriter.Close()
	gzipErr := t.gzipWriter.Close()
	if gzipErr != nil {
		return gzipErr
	}
	return tarErr
}

// Encode writes the snapshot as a tar.gz archive holding a single DocumentName entry.
func Encode(w io.Writer, snap *snapshot.Snapshot) error {
	doc, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode snapshot: %w", err)
	}
	modTime := snap.Metadata.Timestamp
	if modTime.IsZero() {
		modTime = time.Unix(0, 0)
	}
	tgz := newTarGzipWriter(w)
	if err := tgz.WriteHeader(&tar.Header{
		Name:    DocumentName,
		Mode:    0o644,
		Size:    int64(len(doc)),
		ModTime: modTime,
	}); err != nil {
		_ = tgz.Close()
		return err
	}
	if _, err := tgz.Write(doc); err != nil {
		_ = tgz.Close()
		return err
	}
	return tgz.Close()
}

// Decode reads a snapshot from a tar.gz archive. A bare JSON document, as written
// by older tooling, is accepted as well.
func Decode(r io.Reader) (*snapshot.Snapshot, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize))
	if err != nil {
		return nil, err
	}
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		data, err = extractDocument(data)
		if err != nil {
			return nil, err
		}
	}
	snap := &snapshot.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("cannot decode snapshot: %w", err)
	}
	return snap, nil
}

func extractDocument(archive []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("cannot open archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("archive does not contain %s", DocumentName)
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read archive: %w", err)
		}
		if hdr.Name == DocumentName {
			return io.ReadAll(io.LimitReader(tr, maxDocumentSize))
		}
	}
}
