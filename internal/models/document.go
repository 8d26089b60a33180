package models

import "time"

// Document is the plaintext content of the vault file.
type Document struct {
	Initialized      bool               `json:"initialized"`
	CreatedAt        time.Time          `json:"createdAt"`
	Accounts         map[string]Account `json:"accounts"`
	CurrentAccountID string             `json:"currentAccountId,omitempty"`
}

// NewDocument returns an initialized, empty document.
func NewDocument(now time.Time) *Document {
	return &Document{
		Initialized: true,
		CreatedAt:   now.UTC(),
		Accounts:    map[string]Account{},
	}
}

// Clone returns a deep copy, so a mutation can be discarded if persisting it
// fails.
func (d *Document) Clone() *Document {
	c := *d
	c.Accounts = make(map[string]Account, len(d.Accounts))
	for id, acc := range d.Accounts {
		c.Accounts[id] = acc.Clone()
	}
	return &c
}

// Current resolves CurrentAccountID. A dangling pointer yields false.
func (d *Document) Current() (Account, bool) {
	if d.CurrentAccountID == "" {
		return Account{}, false
	}
	acc, ok := d.Accounts[d.CurrentAccountID]
	return acc, ok
}
