package cache

import "github.com/vmihailenco/msgpack/v5"

// EncodeValue serializes v with msgpack for storage in a snapshot or the
// SQLite context_snapshots table. Binary msgpack is smaller and faster to
// round-trip than JSON for the candle/quote slices this cache mostly
// holds.
func EncodeValue(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// DecodeValue deserializes data produced by EncodeValue into out.
func DecodeValue(data []byte, out interface{}) error {
	return msgpack.Unmarshal(data, out)
}
