// Package embedding implements the flat nearest-neighbor index over the
// reference-image feature vectors built offline by cmd/embedbuild.
package embedding

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Artifact header: magic, format version, vector count, dimension, then
// count*dim little-endian float32 values. Vectors are stored row-major in
// the same order as the metadata CSV rows.
const (
	indexMagic   = 0x4c4d4958 // "LMIX"
	indexVersion = 1
)

// Reference identifies one image of the offline-built reference pool.
type Reference struct {
	ID  string
	URL string
}

// Match is one search result, nearest first.
type Match struct {
	Reference Reference
	Distance  float32
}

// Index is an immutable flat index searched by squared Euclidean distance.
// It is loaded once per process and safe for concurrent reads.
type Index struct {
	dim     int
	vectors []float32
	refs    []Reference
}

func NewIndex(dim int) *Index {
	return &Index{dim: dim}
}

func (idx *Index) Dim() int { return idx.dim }

func (idx *Index) Len() int { return len(idx.refs) }

// Add appends a vector with its reference. Only used at build time; the
// serving path never mutates a loaded index.
func (idx *Index) Add(vector []float32, ref Reference) error {
	if len(vector) != idx.dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), idx.dim)
	}
	idx.vectors = append(idx.vectors, vector...)
	idx.refs = append(idx.refs, ref)
	return nil
}

// Search returns up to k references nearest to the query by squared L2
// distance, nearest first.
func (idx *Index) Search(query []float32, k int) ([]Match, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.dim)
	}
	if k <= 0 || len(idx.refs) == 0 {
		return nil, nil
	}
	if k > len(idx.refs) {
		k = len(idx.refs)
	}

	matches := make([]Match, 0, k)
	for i, ref := range idx.refs {
		row := idx.vectors[i*idx.dim : (i+1)*idx.dim]
		var dist float32
		for j, q := range query {
			diff := q - row[j]
			dist += diff * diff
		}

		// Insertion into the sorted top-k slice.
		pos := len(matches)
		for pos > 0 && matches[pos-1].Distance > dist {
			pos--
		}
		if pos >= k {
			continue
		}
		if len(matches) < k {
			matches = append(matches, Match{})
		}
		copy(matches[pos+1:], matches[pos:])
		matches[pos] = Match{Reference: ref, Distance: dist}
	}

	return matches, nil
}

// Load reads the binary vector artifact and its metadata CSV (columns
// reference_image_id, url). Row counts must agree.
func Load(indexPath, metadataPath string) (*Index, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	var header struct {
		Magic   uint32
		Version uint32
		Count   uint32
		Dim     uint32
	}
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if header.Magic != indexMagic {
		return nil, fmt.Errorf("not an embedding index file: %s", indexPath)
	}
	if header.Version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", header.Version)
	}

	vectors := make([]float32, int(header.Count)*int(header.Dim))
	if err := binary.Read(f, binary.LittleEndian, vectors); err != nil {
		return nil, fmt.Errorf("failed to read index vectors: %w", err)
	}

	refs, err := loadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	if len(refs) != int(header.Count) {
		return nil, fmt.Errorf("metadata has %d rows but index has %d vectors", len(refs), header.Count)
	}

	return &Index{
		dim:     int(header.Dim),
		vectors: vectors,
		refs:    refs,
	}, nil
}

func loadMetadata(path string) ([]Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	headerRow, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata header: %w", err)
	}
	if len(headerRow) < 2 {
		return nil, fmt.Errorf("metadata header must have id and url columns")
	}

	var refs []Reference
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata row: %w", err)
		}
		refs = append(refs, Reference{ID: row[0], URL: row[1]})
	}

	return refs, nil
}

// Write saves the index artifact and metadata CSV consumed by Load.
func (idx *Index) Write(indexPath, metadataPath string) error {
	f, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	header := struct {
		Magic   uint32
		Version uint32
		Count   uint32
		Dim     uint32
	}{indexMagic, indexVersion, uint32(len(idx.refs)), uint32(idx.dim)}

	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, idx.vectors); err != nil {
		return fmt.Errorf("failed to write index vectors: %w", err)
	}

	mf, err := os.Create(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	defer mf.Close()

	writer := csv.NewWriter(mf)
	if err := writer.Write([]string{"reference_image_id", "url"}); err != nil {
		return fmt.Errorf("failed to write metadata header: %w", err)
	}
	for _, ref := range idx.refs {
		if err := writer.Write([]string{ref.ID, ref.URL}); err != nil {
			return fmt.Errorf("failed to write metadata row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
