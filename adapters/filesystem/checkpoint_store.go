// Package filesystem stores checkpoints and run logs on local disk.
package filesystem

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"intenttune/domain/core"
	"intenttune/domain/training"
	"intenttune/internal/errors"
	"intenttune/ports"

	"github.com/klauspost/compress/zstd"
)

// Checkpoint file names
const (
	ConfigFile  = "config.json"
	StateFile   = "trainer_state.json"
	WeightsFile = "weights.bin.zst"
)

const weightsMagic = "ITW1"

// CheckpointStore writes checkpoints as a directory holding the model config,
// the trainer state and zstd-compressed float32 weights
type CheckpointStore struct {
	level zstd.EncoderLevel
}

// NewCheckpointStore creates a store using the default zstd level
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{level: zstd.SpeedDefault}
}

// Save implements ports.CheckpointStore. The directory is written under a
// temporary name and renamed into place.
func (s *CheckpointStore) Save(ctx context.Context, dir string, payload ports.CheckpointPayload, meta training.CheckpointMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return errors.StorageError("clear temporary checkpoint", err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return errors.StorageError("create checkpoint directory", err)
	}

	if err := writeJSON(filepath.Join(tmp, ConfigFile), payload.Header()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, StateFile), meta); err != nil {
		return err
	}
	if err := s.writeWeights(filepath.Join(tmp, WeightsFile), payload.Tensors()); err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return errors.StorageError("replace checkpoint", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return errors.StorageError("move checkpoint into place", err)
	}
	return nil
}

// Load implements ports.CheckpointStore
func (s *CheckpointStore) Load(ctx context.Context, dir string, payload ports.CheckpointPayload) (*training.CheckpointMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: %s", core.ErrCheckpointNotFound, dir))
		}
		return nil, errors.StorageError("read model config", err)
	}
	if err := payload.SetHeader(func(v any) error { return json.Unmarshal(raw, v) }); err != nil {
		return nil, err
	}

	var meta training.CheckpointMeta
	if stateRaw, err := os.ReadFile(filepath.Join(dir, StateFile)); err == nil {
		if err := json.Unmarshal(stateRaw, &meta); err != nil {
			return nil, errors.StorageError("decode trainer state", err)
		}
	}

	if err := readWeights(filepath.Join(dir, WeightsFile), payload.Tensors()); err != nil {
		return nil, err
	}
	return &meta, nil
}

// List implements ports.CheckpointStore, ordered by step
func (s *CheckpointStore) List(ctx context.Context, outputDir string) ([]ports.CheckpointInfo, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.StorageError("list checkpoints", err)
	}
	var out []ports.CheckpointInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		step, err := core.ParseCheckpointStep(e.Name())
		if err != nil {
			continue
		}
		out = append(out, ports.CheckpointInfo{Path: filepath.Join(outputDir, e.Name()), Step: step})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// Delete implements ports.CheckpointStore
func (s *CheckpointStore) Delete(ctx context.Context, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.StorageError("delete checkpoint "+dir, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.StorageError("encode "+filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.StorageError("write "+filepath.Base(path), err)
	}
	return nil
}

// Weights layout: magic, tensor count, then per tensor a name length, the
// name, an element count and little-endian float32 values
func (s *CheckpointStore) writeWeights(path string, tensors []ports.NamedTensor) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.StorageError("create weights file", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.StorageError("close weights file", cerr)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(s.level))
	if err != nil {
		return errors.StorageError("create zstd encoder", err)
	}
	w := bufio.NewWriterSize(enc, 1<<20)

	if _, err := w.WriteString(weightsMagic); err != nil {
		return errors.StorageError("write weights", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(tensors))); err != nil {
		return errors.StorageError("write weights", err)
	}
	buf := make([]byte, 4)
	for _, t := range tensors {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(t.Name))); err != nil {
			return errors.StorageError("write weights", err)
		}
		if _, err := w.WriteString(t.Name); err != nil {
			return errors.StorageError("write weights", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(t.Data))); err != nil {
			return errors.StorageError("write weights", err)
		}
		for _, v := range t.Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
			if _, err := w.Write(buf); err != nil {
				return errors.StorageError("write weights", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return errors.StorageError("flush weights", err)
	}
	if err := enc.Close(); err != nil {
		return errors.StorageError("finish zstd stream", err)
	}
	return nil
}

func readWeights(path string, tensors []ports.NamedTensor) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.StorageError("open weights file", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return errors.StorageError("create zstd decoder", err)
	}
	defer dec.Close()
	r := bufio.NewReaderSize(dec, 1<<20)

	magic := make([]byte, len(weightsMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != weightsMagic {
		return errors.StorageError("weights file has an unknown format", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return errors.StorageError("read weights", err)
	}

	byName := make(map[string][]float64, len(tensors))
	for _, t := range tensors {
		byName[t.Name] = t.Data
	}

	buf := make([]byte, 4)
	loaded := 0
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return errors.StorageError("read weights", err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return errors.StorageError("read weights", err)
		}
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return errors.StorageError("read weights", err)
		}
		dst, ok := byName[string(name)]
		if ok && uint64(len(dst)) != n {
			return errors.ModelError(fmt.Sprintf("tensor %s has %d values, model expects %d", name, n, len(dst)))
		}
		for j := uint64(0); j < n; j++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return errors.StorageError("read weights", err)
			}
			if ok {
				dst[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
			}
		}
		if ok {
			loaded++
		}
	}
	if loaded != len(tensors) {
		return errors.ModelError(fmt.Sprintf("checkpoint holds %d of %d model tensors", loaded, len(tensors)))
	}
	return nil
}
