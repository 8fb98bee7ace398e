package config

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

var extensionPattern = regexp.MustCompile(`^\.[a-z0-9]+$`)

// Validate reports every setting that would make matching meaningless.
// Min and Max skip zero values, so numeric fields that must be positive
// are also Required.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.WindowSeconds, validation.Required.Error("must be positive"), validation.Min(int64(1))),
		validation.Field(&c.BucketSeconds,
			validation.Required.Error("must be positive"),
			validation.Min(int64(1)),
			validation.Max(c.WindowSeconds).Error("must not exceed window_seconds"),
		),
		validation.Field(&c.Mode, validation.Required, validation.In("strict", "balanced", "loose").Error("must be strict, balanced or loose")),
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.MaxDimension, validation.Required, validation.Min(64)),
		validation.Field(&c.ImageExtensions, validation.Required, validation.Each(validation.Match(extensionPattern))),
		validation.Field(&c.VideoExtensions, validation.Required, validation.Each(validation.Match(extensionPattern))),
		validation.Field(&c.FFprobeBinary, validation.When(!c.UseExifTool, validation.Required)),
		validation.Field(&c.Timezone, validation.By(func(value interface{}) error {
			if _, err := loadLocation(value.(string)); err != nil {
				return errors.New("unknown time zone")
			}
			return nil
		})),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("console", "json")),
	)
	if err != nil {
		return fmt.Errorf("config: %w: %v", ErrInvalid, err)
	}
	return nil
}
