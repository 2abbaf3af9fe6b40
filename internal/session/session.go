// package session manages browser sessions: an opaque signed cookie on the
// client side and a JSON blob per session id on the server side.
package session

import "encoding/json"

// Well-known session data keys.
const (
	// KeyEmail holds the user identity chosen at login.
	KeyEmail = "email"
	// KeyPlaylistID holds the user's manually selected source playlist.
	KeyPlaylistID = "playlist_id"
)

// Data is the per-session blob: string keys mapped to JSON-serializable
// values. Data is immutable from the caller's perspective; [Data.Add] returns
// a new value and nothing is persisted until [Manager.Save] is called, which
// keeps every mutation an explicit read-modify-save sequence.
type Data struct {
	values map[string]any
}

// NewData returns an empty session blob.
func NewData() Data {
	return Data{values: map[string]any{}}
}

// Add returns a copy of the blob with key set to value.
func (d Data) Add(key string, value any) Data {
	values := make(map[string]any, len(d.values)+1)
	for k, v := range d.values {
		values[k] = v
	}
	values[key] = value
	return Data{values: values}
}

// Get returns the raw value for key, or nil when absent.
func (d Data) Get(key string) any {
	return d.values[key]
}

// String returns the value for key as a string, or "" when the key is absent
// or holds a non-string value.
func (d Data) String(key string) string {
	s, _ := d.values[key].(string)
	return s
}

// Email returns the stored user identity, or "".
func (d Data) Email() string {
	return d.String(KeyEmail)
}

// PlaylistID returns the stored source playlist override, or "".
func (d Data) PlaylistID() string {
	return d.String(KeyPlaylistID)
}

// MarshalJSON encodes the blob as a flat JSON object.
func (d Data) MarshalJSON() ([]byte, error) {
	if d.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.values)
}

// UnmarshalJSON replaces the blob contents from a flat JSON object.
func (d *Data) UnmarshalJSON(raw []byte) error {
	values := map[string]any{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return err
	}
	d.values = values
	return nil
}
