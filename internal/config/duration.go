package config

import (
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Duration decodes Go duration strings such as "30s" from HCL and text.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// DecodeCTY decodes a cty string value.
func (d *Duration) DecodeCTY(val cty.Value) error {
	if val.IsNull() || !val.IsKnown() {
		return fmt.Errorf("duration must be a known string")
	}
	if val.Type() != cty.String {
		return fmt.Errorf("duration must be a string")
	}

	var s string
	if err := gocty.FromCtyValue(val, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}
