package domain

type Chat struct {
	ID          ID     `json:"_id"`
	ChatName    string `json:"chatName,omitempty"`
	IsGroupChat bool   `json:"isGroupChat,omitempty"`
	Users       []User `json:"users"`
}
