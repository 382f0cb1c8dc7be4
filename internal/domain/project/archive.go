package project

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/utils"
)

// Compression selects the archive codec
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression maps a query value to a codec. Empty means gzip.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompressionGzip:
		return CompressionGzip, nil
	case CompressionZstd:
		return CompressionZstd, nil
	case CompressionNone:
		return CompressionNone, nil
	}
	return "", fmt.Errorf("unsupported compression %q", s)
}

// Extension returns the file extension of an archive in this codec
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".tar.gz"
	case CompressionZstd:
		return ".tar.zst"
	}
	return ".tar"
}

// ContentType returns the media type of an archive in this codec
func (c Compression) ContentType() string {
	switch c {
	case CompressionGzip:
		return "application/gzip"
	case CompressionZstd:
		return "application/zstd"
	}
	return "application/x-tar"
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Export writes p as a tar archive: a project.yaml manifest that fixes the
// file order, followed by every file.
func Export(w io.Writer, p *types.Project, c Compression) (err error) {
	var out io.Writer = w
	switch c {
	case CompressionGzip:
		gz := gzip.NewWriter(w)
		defer closeInto(gz, &err)
		out = gz
	case CompressionZstd:
		zw, zerr := zstd.NewWriter(w)
		if zerr != nil {
			return fmt.Errorf("failed to create zstd writer: %w", zerr)
		}
		defer closeInto(zw, &err)
		out = zw
	}

	tw := tar.NewWriter(out)
	defer closeInto(tw, &err)

	m := Manifest{Title: p.Title, Files: make([]string, 0, len(p.Files))}
	for _, f := range p.Files {
		m.Files = append(m.Files, f.Path)
	}
	manifest, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	modified := p.UpdatedAt
	if modified.IsZero() {
		modified = time.Now()
	}
	if err := writeEntry(tw, ManifestYAML, manifest, modified); err != nil {
		return err
	}
	for _, f := range p.Files {
		if err := writeEntry(tw, f.Path, []byte(f.Content), modified); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, data []byte, modified time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: modified,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Import reads an archive produced by Export, or any tar of project
// files. The codec is detected from the stream. Files listed in a
// manifest come first in manifest order, the rest follow in lexical order.
func Import(r io.Reader, projectID string) (*types.Project, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))

	var in io.Reader = br
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		in = gz
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		in = zr
	}

	var (
		m     Manifest
		total int
		files = make(map[string]types.SourceFile)
	)
	tr := tar.NewReader(in)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := strings.TrimPrefix(path.Clean(hdr.Name), "./")
		if err := utils.ValidatePath(name); err != nil {
			return nil, err
		}
		if hdr.Size > utils.MaxFileSize {
			return nil, fmt.Errorf("file %q is %d bytes, maximum is %d", name, hdr.Size, utils.MaxFileSize)
		}
		total += int(hdr.Size)
		if total > utils.MaxProjectSize {
			return nil, fmt.Errorf("archive exceeds %d bytes", utils.MaxProjectSize)
		}

		data, err := io.ReadAll(io.LimitReader(tr, utils.MaxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if name == ManifestYAML {
			if err := yaml.Unmarshal(data, &m); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", ManifestYAML, err)
			}
			continue
		}
		files[name] = types.SourceFile{
			Path:     name,
			Content:  string(data),
			Language: types.LanguageFromPath(name),
		}
	}

	p := &types.Project{
		ID:    projectID,
		Title: m.Title,
		Files: orderFiles(files, m.Files),
	}
	if err := utils.ValidateProject(p); err != nil {
		return nil, err
	}
	return p, nil
}

func closeInto(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
