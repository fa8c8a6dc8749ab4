package models

// Account identifies the brokerage account a statement belongs to.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}
