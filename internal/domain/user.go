package domain

import "encoding/json"

// User is the identity object the REST layer hands to clients. Only ID takes
// part in routing; ID doubles as the key of the user's personal room.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Pic   string `json:"pic,omitempty"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	aux := struct {
		ID ID `json:"_id"`
		*plain
	}{plain: (*plain)(u)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.ID = string(aux.ID)
	return nil
}
