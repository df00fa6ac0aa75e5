package scanner

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/qrjukebox/internal/infra/process"
)

// ZbarcamConfig holds the settings of the zbarcam decoder.
type ZbarcamConfig struct {
	Binary         string   `yaml:"binary" mapstructure:"binary" default:"zbarcam" validate:"required"`
	Device         string   `yaml:"device" mapstructure:"device" default:"/dev/video0" validate:"required"`
	QROnly         *bool    `yaml:"qr_only" mapstructure:"qr_only" default:"true"`
	Prescale       string   `yaml:"prescale" mapstructure:"prescale" default:"640x480"`
	Args           []string `yaml:"args" mapstructure:"args"`
	StartupCheckMs int      `yaml:"startup_check_ms" mapstructure:"startup_check_ms" default:"500" validate:"gte=1"`
	GracePeriodMs  int      `yaml:"grace_period_ms" mapstructure:"grace_period_ms" default:"1000" validate:"gte=1"`
}

// ZbarcamDecoder runs zbarcam against a video device and collects the
// codes it prints, one per line.
type ZbarcamDecoder struct {
	config    *ZbarcamConfig
	proc      process.Process
	box       *mailbox
	closeOnce sync.Once
}

// NewZbarcamDecoder decodes settings and opens the camera. It fails with
// ErrSensorUnavailable when zbarcam is missing or exits during startup.
func NewZbarcamDecoder(settings map[string]any) (*ZbarcamDecoder, error) {
	var config ZbarcamConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("zbarcam decoder config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("zbarcam decoder validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}

	d := &ZbarcamDecoder{config: &config, box: &mailbox{}}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

// Command returns the zbarcam command line.
func (c *ZbarcamConfig) Command() []string {
	argv := []string{c.Binary, "--raw", "--nodisplay"}
	if c.QROnly == nil || *c.QROnly {
		argv = append(argv, "-Sdisable", "-Sqrcode.enable")
	}
	if c.Prescale != "" {
		argv = append(argv, "--prescale="+c.Prescale)
	}
	argv = append(argv, c.Args...)
	return append(argv, c.Device)
}

func (d *ZbarcamDecoder) open() error {
	argv := d.config.Command()
	zlog.Debug().Msgf("scanner: running %s", strings.Join(argv, " "))

	proc, err := process.Start(argv, d.box)
	if err != nil {
		if errors.Is(err, process.ErrNotFound) {
			zlog.Error().Msg("scanner: zbarcam not found. Install it with: brew install zbar (macOS) or apt install zbar-tools (Linux)")
		}
		return errors.Mark(errors.Wrapf(err, "could not open camera %s", d.config.Device), ErrSensorUnavailable)
	}

	// zbarcam exits quickly when the device cannot be opened
	if wait := time.Duration(d.config.StartupCheckMs) * time.Millisecond; wait > 0 {
		select {
		case <-proc.Done():
			return errors.Mark(
				errors.Newf("could not open camera %s: zbarcam exited with code %d: %s",
					d.config.Device, proc.ExitCode(), strings.TrimSpace(proc.Stderr())),
				ErrSensorUnavailable)
		case <-time.After(wait):
		}
	}

	d.proc = proc
	go d.watch()

	zlog.Info().Msgf("scanner: camera %s opened", d.config.Device)
	return nil
}

func (d *ZbarcamDecoder) watch() {
	<-d.proc.Done()
	if code := d.proc.ExitCode(); code != 0 {
		d.box.close(errors.Newf("zbarcam exited with code %d: %s", code, strings.TrimSpace(d.proc.Stderr())))
		return
	}
	d.box.close(nil)
}

// Capture implements Decoder.
func (d *ZbarcamDecoder) Capture() ([]string, error) {
	return d.box.take()
}

// Close implements Decoder. It stops zbarcam and waits for it to exit.
func (d *ZbarcamDecoder) Close() error {
	d.closeOnce.Do(func() {
		d.box.close(nil)
		if process.Shutdown(d.proc, time.Duration(d.config.GracePeriodMs)*time.Millisecond) {
			zlog.Warn().Msg("scanner: zbarcam did not stop in time, killed")
		}
		zlog.Info().Msgf("scanner: camera %s released", d.config.Device)
	})
	return nil
}
