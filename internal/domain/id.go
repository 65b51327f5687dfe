package domain

import (
	"bytes"
	"encoding/json/v2"
	"fmt"
	"strconv"
)

// ID identifies a backend entity. The backend sends numeric IDs; the
// client treats them as opaque strings.
type ID string

// UnmarshalJSON accepts 42 as well as "42". null decodes to the empty ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*id = ID(strconv.FormatInt(n, 10))
	return nil
}

func (id ID) String() string {
	return string(id)
}
