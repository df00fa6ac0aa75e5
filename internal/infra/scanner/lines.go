package scanner

import (
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// LinesDecoder reads newline-delimited codes from a stream such as stdin.
// USB barcode scanners in keyboard mode type the code followed by Enter.
type LinesDecoder struct {
	box       *mailbox
	closeOnce sync.Once
	source    io.Reader
}

// NewLinesDecoder starts reading codes from r.
func NewLinesDecoder(r io.Reader) *LinesDecoder {
	d := &LinesDecoder{box: &mailbox{}, source: r}
	go d.read()
	return d
}

func (d *LinesDecoder) read() {
	_, err := io.Copy(d.box, d.source)
	if err != nil {
		zlog.Warn().Msgf("scanner: input read failed: %v", err)
		d.box.close(errors.Wrap(err, "failed to read input"))
		return
	}
	zlog.Debug().Msg("scanner: input closed")
	d.box.close(nil)
}

// Capture implements Decoder.
func (d *LinesDecoder) Capture() ([]string, error) {
	return d.box.take()
}

// Close implements Decoder. A blocked read on the source is released only
// when the source itself is an io.Closer.
func (d *LinesDecoder) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.box.close(nil)
		if c, ok := d.source.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
