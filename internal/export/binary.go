package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/openterra/watershed/pkg/hydro"
)

// Binary raster layout: uint32 width, uint32 height (little-endian),
// followed by width*height samples in row-major order.

func writeRaster(path string, width, height int, put func(*bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(width))
	binary.LittleEndian.PutUint32(header[4:8], uint32(height))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write header %s: %w", path, err)
	}
	if err := put(w); err != nil {
		return fmt.Errorf("write samples %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// WriteAccumulationRaster writes flow accumulation normalized to [0,1] as
// a float32 raster.
func WriteAccumulationRaster(path string, f *hydro.FlowField) error {
	maxAcc := uint32(1)
	for _, a := range f.Acc {
		if a > maxAcc {
			maxAcc = a
		}
	}
	return writeRaster(path, f.Width, f.Height, func(w *bufio.Writer) error {
		var buf [4]byte
		for _, a := range f.Acc {
			v := float32(a) / float32(maxAcc)
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteDirectionRaster writes flow directions as an int8 raster with
// no-flow encoded as -1.
func WriteDirectionRaster(path string, f *hydro.FlowField) error {
	return writeRaster(path, f.Width, f.Height, func(w *bufio.Writer) error {
		for _, d := range f.Dir {
			if d == hydro.NoFlow {
				d = -1
			}
			if err := w.WriteByte(byte(d)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteLabelRaster writes basin labels as a uint32 raster.
func WriteLabelRaster(path string, ws *hydro.Watershed) error {
	return writeRaster(path, ws.Width, ws.Height, func(w *bufio.Writer) error {
		var buf [4]byte
		for _, l := range ws.Labels {
			binary.LittleEndian.PutUint32(buf[:], l)
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadLabelRaster loads a basin label raster written by WriteLabelRaster.
// The basin count is recovered as the maximum label value.
func ReadLabelRaster(path string) (*hydro.Watershed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("labels %s: truncated header", path)
	}
	width := int(binary.LittleEndian.Uint32(data[0:4]))
	height := int(binary.LittleEndian.Uint32(data[4:8]))
	if width <= 0 || height <= 0 || len(data) != 8+width*height*4 {
		return nil, fmt.Errorf("labels %s: malformed raster %dx%d with %d payload bytes", path, width, height, len(data)-8)
	}

	labels := make([]uint32, width*height)
	count := uint32(0)
	for i := range labels {
		l := binary.LittleEndian.Uint32(data[8+i*4:])
		labels[i] = l
		if l > count {
			count = l
		}
	}
	return &hydro.Watershed{Width: width, Height: height, Labels: labels, Count: int(count)}, nil
}
