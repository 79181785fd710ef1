package domain

import (
	"encoding/json"
	"errors"
)

var ErrInvalidID = errors.New("_id must be a string or a number")

// ID is a document id as the REST layer serialises it. Numbers keep their
// literal text, so 42 and "42" name the same room.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidID
	}
	*id = ID(n.String())
	return nil
}
