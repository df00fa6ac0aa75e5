package scanner

import (
	"io"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/qrjukebox/internal/infra/config"
)

// NewFromConfig opens the decoder selected by cfg. Lines decoders read from
// input.
func NewFromConfig(cfg *config.DecoderConfig, input io.Reader) (Decoder, error) {
	zlog.Debug().Msgf("creating decoder: type=%s settings=%+v", cfg.Type, cfg.Settings)

	switch cfg.Type {
	case "zbarcam":
		d, err := NewZbarcamDecoder(cfg.Settings)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create decoder (type %s)", cfg.Type)
		}
		return d, nil

	case "lines":
		zlog.Info().Msg("scanner: reading codes from standard input")
		return NewLinesDecoder(input), nil

	default:
		return nil, errors.Newf("unsupported decoder type: %s", cfg.Type)
	}
}
