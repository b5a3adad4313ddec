package filter

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/hitsterfy/hitsterfy/internal/domain/track"
)

// ReleaseYearConfig represents the configuration for ReleaseYearFilter.
type ReleaseYearConfig struct {
	MinYear     int  `yaml:"min_year" mapstructure:"min_year" validate:"gte=0"`
	MaxYear     int  `yaml:"max_year" mapstructure:"max_year" validate:"gte=0"`
	RequireYear bool `yaml:"require_year" mapstructure:"require_year" default:"false"`
}

// ReleaseYearFilter checks if the track release year is within allowed limits.
type ReleaseYearFilter struct {
	config *ReleaseYearConfig
}

// NewReleaseYearFilter creates a new release year filter.
func NewReleaseYearFilter() *ReleaseYearFilter {
	return &ReleaseYearFilter{}
}

func (f *ReleaseYearFilter) Name() string {
	return "release_year_filter"
}

func (f *ReleaseYearFilter) Description() string {
	return "Checks if the track release year is within allowed limits"
}

func (f *ReleaseYearFilter) ReturnCodes() []string {
	return []string{"release_year_out_of_range", "release_year_unknown"}
}

func (f *ReleaseYearFilter) ValidateConfig(settings map[string]any) error {
	var config ReleaseYearConfig

	// Decode map[string]any to struct using mapstructure
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	// Set defaults
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	// Validate using validator
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	// Custom validation: min_year cannot be greater than max_year
	if config.MaxYear > 0 && config.MinYear > config.MaxYear {
		return errors.New("min_year cannot be greater than max_year")
	}
	f.config = &config
	zlog.Info().Msgf("release year filter config: %+v", config)
	return nil
}

func (f *ReleaseYearFilter) Check(ctx context.Context, e Entry) Result {
	// If config is not set, accept all tracks
	if f.config == nil {
		return Accept()
	}

	year, err := strconv.Atoi(track.YearFromReleaseDate(e.ReleaseDate))
	if err != nil {
		if f.config.RequireYear {
			return Reject("release_year_unknown")
		}
		return Accept()
	}

	if f.config.MinYear > 0 && year < f.config.MinYear {
		return Reject("release_year_out_of_range")
	}
	if f.config.MaxYear > 0 && year > f.config.MaxYear {
		return Reject("release_year_out_of_range")
	}

	return Accept()
}

func init() {
	Register("release_year_filter", func() Filter {
		return &ReleaseYearFilter{}
	})
}
