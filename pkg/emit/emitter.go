package emit

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/daimatz/jvmlink/pkg/linker"
)

// Emitter consumes a finished image.
type Emitter interface {
	Emit(img *Image) error
}

// Files writes the image and its side files. Empty paths are skipped. Every
// output is rendered before any file is touched.
type Files struct {
	Image  string
	Trace  string
	Header string
}

func (f Files) Emit(img *Image) error {
	type output struct {
		path  string
		write func(io.Writer, *Image) error
	}
	var outs []output
	for _, o := range []output{{f.Image, WriteImage}, {f.Trace, WriteTrace}, {f.Header, WriteHeader}} {
		if o.path != "" {
			outs = append(outs, o)
		}
	}

	rendered := make([][]byte, len(outs))
	for i, o := range outs {
		var buf bytes.Buffer
		if err := o.write(&buf, img); err != nil {
			return fmt.Errorf("rendering %s: %w", o.path, err)
		}
		rendered[i] = buf.Bytes()
	}
	for i, o := range outs {
		if dir := filepath.Dir(o.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(o.path, rendered[i], 0o644); err != nil {
			return err
		}
		log.Infof("wrote %s (%d bytes)", o.path, len(rendered[i]))
	}
	return nil
}

// Emit builds the image of r and hands it to each emitter in turn.
func Emit(r *linker.Result, emitters ...Emitter) (*Image, error) {
	img, err := Build(r)
	if err != nil {
		return nil, err
	}
	for _, e := range emitters {
		if err := e.Emit(img); err != nil {
			return nil, err
		}
	}
	return img, nil
}
