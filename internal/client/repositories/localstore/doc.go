// Package localstore is the client's durable key/value storage, the
// counterpart of browser localStorage. Values are opaque bytes kept in the
// local_storage table of the client SQLite database.
//
// Get returns (nil, nil) for a missing key, mirroring localStorage.getItem
// returning null.
package localstore
