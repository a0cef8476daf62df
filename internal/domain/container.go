package domain

// Container is a folder in the document tree. Cycles are prevented by the
// authoritative store; this engine never runs cycle detection.
type Container struct {
	ID       Identifier  `json:"id"`
	ParentID *Identifier `json:"parent_id"`
	Name     string      `json:"name"`
	Rank     int         `json:"rank"`
}
