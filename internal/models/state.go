package models

// State is the whole persisted document: three string-keyed collections,
// loaded and written back as one snapshot. Users are keyed by the platform
// user ID, tips by their generated ID, purchases by PurchaseKey.
type State struct {
	Users     map[string]*User     `json:"users"`
	Tips      map[string]*Tip      `json:"tips"`
	Purchases map[string]*Purchase `json:"purchases"`
}

// NewState returns the empty default snapshot.
func NewState() *State {
	return &State{
		Users:     make(map[string]*User),
		Tips:      make(map[string]*Tip),
		Purchases: make(map[string]*Purchase),
	}
}
