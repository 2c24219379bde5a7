package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Identifier prefixes. An id is the prefix followed by the array slot the
// element occupied when it was created.
const (
	ViewPrefix = "v"
	NodePrefix = "b"
	LinkPrefix = "l"
)

// ViewID identifies a View. The empty ViewID stands for "no view" and
// serialises as JSON null.
type ViewID string

// NodeID identifies a Node within its View.
type NodeID string

// LinkID identifies a Link within its View. The empty LinkID serialises as
// JSON null.
type LinkID string

// NewViewID formats the id for a view created at slot.
func NewViewID(slot int) ViewID { return ViewID(ViewPrefix + strconv.Itoa(slot)) }

// NewNodeID formats the id for a node created at slot.
func NewNodeID(slot int) NodeID { return NodeID(NodePrefix + strconv.Itoa(slot)) }

// NewLinkID formats the id for a link created at slot.
func NewLinkID(slot int) LinkID { return LinkID(LinkPrefix + strconv.Itoa(slot)) }

// Slot returns the numeric suffix of an id. Malformed ids report ok=false.
func Slot(id string) (int, bool) {
	if len(id) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (id ViewID) MarshalJSON() ([]byte, error) { return marshalNullable(string(id)) }
func (id LinkID) MarshalJSON() ([]byte, error) { return marshalNullable(string(id)) }

func (id *ViewID) UnmarshalJSON(data []byte) error {
	s, err := unmarshalNullable(data)
	*id = ViewID(s)
	return err
}

func (id *LinkID) UnmarshalJSON(data []byte) error {
	s, err := unmarshalNullable(data)
	*id = LinkID(s)
	return err
}

// NullString is a string that serialises as JSON null when empty.
type NullString string

func (s NullString) MarshalJSON() ([]byte, error) { return marshalNullable(string(s)) }

func (s *NullString) UnmarshalJSON(data []byte) error {
	v, err := unmarshalNullable(data)
	*s = NullString(v)
	return err
}

var jsonNull = []byte("null")

func marshalNullable(s string) ([]byte, error) {
	if s == "" {
		return jsonNull, nil
	}
	return json.Marshal(s)
}

func unmarshalNullable(data []byte) (string, error) {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", err
	}
	return s, nil
}
