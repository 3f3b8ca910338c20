package cache

// Simple JSON protocol for the cache daemon over a Unix domain socket.
// One request -> one response using json.Encoder/Decoder per connection.

type Request struct {
	Op       string `json:"op"` // "get" | "put" | "delete" | "clear"
	Key      string `json:"key,omitempty"`
	Value    []byte `json:"value,omitempty"`
	StoredAt int64  `json:"stored_at,omitempty"` // unix nano
}

type Response struct {
	OK       bool   `json:"ok"`
	Value    []byte `json:"value,omitempty"`
	StoredAt int64  `json:"stored_at,omitempty"`
	Error    string `json:"error,omitempty"`
}
