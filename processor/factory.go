package processor

import (
	"errors"
	"fmt"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// TransformConfig provides configuration options for creating a Transform processor.
type TransformConfig struct {
	// Processor handles the transformed records.
	// This field is required.
	Processor batch.Processor

	// Func is the transformation applied to each record's Value.
	// This field is required.
	Func TransformFunc

	// ContinueOnError drops records whose transformation fails instead of
	// failing them.
	ContinueOnError bool
}

// Validate checks if the TransformConfig is valid.
func (c TransformConfig) Validate() error {
	if c.Processor == nil {
		return errors.New("processor cannot be nil")
	}
	if c.Func == nil {
		return errors.New("transformation function cannot be nil")
	}
	return nil
}

// NewTransform creates a new Transform processor with the given configuration.
// It validates the configuration and returns an error if invalid.
//
// Example:
//
//	proc, err := processor.NewTransform(processor.TransformConfig{
//		Processor: &processor.Text{},
//		Func: func(v []byte) ([]byte, error) {
//			return bytes.ToLower(v), nil
//		},
//	})
//	if err != nil {
//		// handle error
//	}
func NewTransform(config TransformConfig) (*Transform, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transform config: %w", err)
	}

	return &Transform{
		Processor:       config.Processor,
		Func:            config.Func,
		ContinueOnError: config.ContinueOnError,
	}, nil
}

// FilterConfig provides configuration options for creating a Filter processor.
type FilterConfig struct {
	// Processor handles the records that are kept.
	// This field is required.
	Processor batch.Processor

	// Predicate returns true for records that should be kept.
	// This field is required.
	Predicate FilterFunc

	// InvertMatch inverts the predicate logic: if true, records matching
	// the predicate are dropped instead of kept.
	InvertMatch bool
}

// Validate checks if the FilterConfig is valid.
func (c FilterConfig) Validate() error {
	if c.Processor == nil {
		return errors.New("processor cannot be nil")
	}
	if c.Predicate == nil {
		return errors.New("predicate function cannot be nil")
	}
	return nil
}

// NewFilter creates a new Filter processor with the given configuration.
// It validates the configuration and returns an error if invalid.
//
// Example:
//
//	proc, err := processor.NewFilter(processor.FilterConfig{
//		Processor: &processor.Text{},
//		Predicate: func(rec batch.Record) bool {
//			return len(rec.Value) > 0
//		},
//	})
//	if err != nil {
//		// handle error
//	}
func NewFilter(config FilterConfig) (*Filter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter config: %w", err)
	}

	return &Filter{
		Processor:   config.Processor,
		Predicate:   config.Predicate,
		InvertMatch: config.InvertMatch,
	}, nil
}

// ErrorConfig provides configuration options for creating an Error processor.
type ErrorConfig struct {
	// Processor handles the records that do not fail.
	Processor batch.Processor

	// Err is returned for failing records.
	// If nil, ErrInjected is used.
	Err error

	// FailFraction controls what fraction of records fail.
	// Value range is 0.0 to 1.0, where:
	// - 0.0 means no records fail (the processor becomes a pass-through)
	// - 1.0 means all records fail
	FailFraction float64
}

// Validate checks if the ErrorConfig is valid.
func (c ErrorConfig) Validate() error {
	if c.FailFraction < 0 || c.FailFraction > 1 {
		return fmt.Errorf("fail fraction must be between 0 and 1, got %v", c.FailFraction)
	}
	if c.Processor == nil && c.FailFraction < 1 {
		return errors.New("processor cannot be nil unless every record fails")
	}
	return nil
}

// NewError creates a new Error processor with the given configuration.
//
// Example:
//
//	proc, err := processor.NewError(processor.ErrorConfig{
//		Processor:    &processor.Text{},
//		Err:          errors.New("processing failed"),
//		FailFraction: 0.1,
//	})
func NewError(config ErrorConfig) (*Error, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid error config: %w", err)
	}

	return &Error{
		Processor:    config.Processor,
		Err:          config.Err,
		FailFraction: config.FailFraction,
	}, nil
}

// NewNil creates a new Nil processor.
//
// Example:
//
//	proc := processor.NewNil()
func NewNil() *Nil {
	return &Nil{}
}
