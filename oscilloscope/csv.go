package oscilloscope

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// EncodeCSV writes the waveform in the lab's capture format: commented
// metadata lines, a column header, then one time,voltage pair per line.
// Floats are formatted with 'G' so values round trip through ParseFloat.
func (w Waveform) EncodeCSV(wr io.Writer) error {
	bw := bufio.NewWriter(wr)
	_, err := fmt.Fprintf(bw, "# points: %d\n# dt: %s\n# time_per_div: %s\n# volts_per_div: %s\n# vertical_offset: %s\n# horizontal_offset: %s\n",
		w.Meta.Points,
		strconv.FormatFloat(w.Meta.TimeStep(), 'G', -1, 64),
		strconv.FormatFloat(w.Meta.TimePerDiv, 'G', -1, 64),
		strconv.FormatFloat(w.Meta.VoltsPerDiv, 'G', -1, 64),
		strconv.FormatFloat(w.Meta.VerticalOffset, 'G', -1, 64),
		strconv.FormatFloat(w.Meta.HorizontalOffset, 'G', -1, 64))
	if err != nil {
		return err
	}
	_, err = bw.WriteString("Time (s),Voltage (V)\n")
	if err != nil {
		return err
	}
	for _, s := range w.Samples {
		_, err = bw.WriteString(strconv.FormatFloat(s.Time, 'G', -1, 64))
		if err != nil {
			return err
		}
		err = bw.WriteByte(',')
		if err != nil {
			return err
		}
		_, err = bw.WriteString(strconv.FormatFloat(s.Voltage, 'G', -1, 64))
		if err != nil {
			return err
		}
		err = bw.WriteByte('\n')
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCSV persists the waveform to path with atomic replace semantics:
// the data lands in a temp file in the destination directory and is
// renamed into place only after a successful flush, so a partial file
// is never observable at path.
func (w Waveform) WriteCSV(path string) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".capture-*.csv")
	if err != nil {
		return err
	}
	tmp := f.Name()
	err = w.EncodeCSV(f)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
