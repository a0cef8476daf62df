package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

type IdentifierKind int

const (
	// KindRemote is an integer id assigned by the authoritative store.
	KindRemote IdentifierKind = iota
	// KindLocalPending is assigned when a document is created while
	// disconnected; exchanged for a remote id on first successful sync.
	KindLocalPending
	// KindTransient exists only in the local replica and is excluded from
	// sync until explicitly promoted.
	KindTransient
)

const (
	localPendingPrefix = "local-"
	transientPrefix    = "untitled-"
)

// Identifier is the tagged id union for documents and containers. The kind
// is always carried explicitly; callers must never infer it from the value.
type Identifier struct {
	kind   IdentifierKind
	remote int64
	str    string
}

var transientCounter uint32

func RemoteID(id int64) Identifier {
	return Identifier{kind: KindRemote, remote: id}
}

func NewLocalPendingID() Identifier {
	return Identifier{kind: KindLocalPending, str: localPendingPrefix + uuid.New().String()}
}

func NewTransientID() Identifier {
	n := atomic.AddUint32(&transientCounter, 1)
	return Identifier{kind: KindTransient, str: transientPrefix + strconv.FormatUint(uint64(n), 10)}
}

func (id Identifier) Kind() IdentifierKind { return id.kind }

func (id Identifier) IsRemote() bool { return id.kind == KindRemote }

// Remote returns the authoritative integer id. Only valid for KindRemote.
func (id Identifier) Remote() int64 { return id.remote }

func (id Identifier) IsZero() bool {
	return id.kind == KindRemote && id.remote == 0 && id.str == ""
}

// Key returns the stable string form used as a storage key.
func (id Identifier) Key() string {
	if id.kind == KindRemote {
		return strconv.FormatInt(id.remote, 10)
	}
	return id.str
}

func (id Identifier) String() string { return id.Key() }

func (id Identifier) Equal(other Identifier) bool {
	return id.kind == other.kind && id.remote == other.remote && id.str == other.str
}

// ParseIdentifier recovers an Identifier from its Key form.
func ParseIdentifier(s string) (Identifier, error) {
	switch {
	case strings.HasPrefix(s, localPendingPrefix):
		return Identifier{kind: KindLocalPending, str: s}, nil
	case strings.HasPrefix(s, transientPrefix):
		return Identifier{kind: KindTransient, str: s}, nil
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Identifier{}, fmt.Errorf("malformed identifier %q", s)
		}
		return RemoteID(n), nil
	}
}

// MarshalJSON encodes remote ids as bare numbers and local/transient ids as
// their tagged strings, matching the wire form of the authoritative store.
func (id Identifier) MarshalJSON() ([]byte, error) {
	if id.kind == KindRemote {
		return json.Marshal(id.remote)
	}
	return json.Marshal(id.str)
}

func (id *Identifier) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = RemoteID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("malformed identifier %s", string(data))
	}
	parsed, err := ParseIdentifier(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
