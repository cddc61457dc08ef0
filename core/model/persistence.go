package model

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

func init() {
	// Hyperparameters/Metadata の interface{} 値を gob で扱えるようにする
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

// SaveModel はモデルをファイルに保存する
//
// 拡張子で形式を決める:
//   - ".json" / ".json.xz": PosteriorSnapshot をJSONで保存（model は *PosteriorSnapshot）
//   - それ以外: gob
//
// 末尾が ".xz" の場合は xz で圧縮する。
//
// 使用例:
//
//	snap, _ := clf.Snapshot()
//	err := model.SaveModel(snap, "posterior.json.xz")
func SaveModel(m interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", filename)
		}
	}()

	var w io.Writer = file
	var xzw *xz.Writer
	if strings.HasSuffix(filename, ".xz") {
		xzw, err = xz.NewWriter(file)
		if err != nil {
			return errors.Wrap(err, "xz writer")
		}
		w = xzw
	}

	if isJSONPath(filename) {
		err = writeJSON(m, w)
	} else {
		err = SaveModelToWriter(m, w)
	}
	if err != nil {
		return err
	}

	if xzw != nil {
		if err := xzw.Close(); err != nil {
			return errors.Wrap(err, "flush xz stream")
		}
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む。形式の判定は SaveModel と同じ。
//
// 使用例:
//
//	var snap model.PosteriorSnapshot
//	err := model.LoadModel(&snap, "posterior.json.xz")
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "open %s", filename)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(filename, ".xz") {
		xzr, err := xz.NewReader(file)
		if err != nil {
			return errors.Wrap(err, "xz reader")
		}
		r = xzr
	}

	if isJSONPath(filename) {
		return readJSON(m, r)
	}
	return LoadModelFromReader(m, r)
}

// SaveModelToWriter はモデルをgobでio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はgobでio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

func isJSONPath(filename string) bool {
	return strings.HasSuffix(strings.TrimSuffix(filename, ".xz"), ".json")
}

func writeJSON(m interface{}, w io.Writer) error {
	snap, ok := m.(*PosteriorSnapshot)
	if !ok {
		return errors.NewValueError("SaveModel", "JSON output requires a *PosteriorSnapshot")
	}
	data, err := snap.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encode posterior snapshot")
	}
	_, err = w.Write(data)
	return err
}

func readJSON(m interface{}, r io.Reader) error {
	snap, ok := m.(*PosteriorSnapshot)
	if !ok {
		return errors.NewValueError("LoadModel", "JSON input requires a *PosteriorSnapshot")
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return errors.Wrap(err, "read posterior snapshot")
	}
	return snap.FromJSON(buf.Bytes())
}
