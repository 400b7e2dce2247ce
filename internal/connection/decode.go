package connection

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// UnmarshalJSON accepts dataset attributes as strings or numbers; lrecl
// and blksz come back as either depending on the facility level.
func (d *Dataset) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.Name = Str(raw["dsname"])
	d.Org = Str(raw["dsorg"])
	d.RecFm = Str(raw["recfm"])
	d.LRecL = Str(raw["lrecl"])
	d.BlkSize = Str(raw["blksz"])
	d.Volume = Str(raw["vol"])
	d.Device = Str(raw["dev"])
	return nil
}

// Str renders a loosely typed JSON value as text.
func Str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Int renders a loosely typed JSON value as an int, or 0.
func Int(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}
