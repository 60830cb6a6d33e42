package models

import "time"

// Account owns an ordered list of documents, keyed by account number in the
// account store.
type Account struct {
	DOBHash      string     `json:"dobHash"`
	CombinedHash string     `json:"combinedHash"`
	CreatedAt    time.Time  `json:"createdAt"`
	Documents    []Document `json:"documents"`
	// Revision is bumped on every successful write and used for
	// compare-and-swap updates.
	Revision int64 `json:"revision"`
}

func (a *Account) FindDocument(id string) (*Document, int) {
	for i := range a.Documents {
		if a.Documents[i].ID == id {
			return &a.Documents[i], i
		}
	}
	return nil, -1
}

func (a *Account) RemoveDocument(idx int) Document {
	doc := a.Documents[idx]
	a.Documents = append(a.Documents[:idx], a.Documents[idx+1:]...)
	return doc
}
