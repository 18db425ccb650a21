// Package api defines the sectorfs wire protocol: status codes, request
// and response messages, and the gRPC service descriptor. Messages are
// encoded in protobuf wire format with explicit field marshaling, and a
// registered codec lets gRPC carry them without generated bindings.
package api

// Status is the result code carried by every response.
type Status int32

const (
	Status_OK Status = iota
	Status_ERR_NOENT
	Status_ERR_EXIST
	Status_ERR_NAMETOOLONG
	Status_ERR_NOTDIR
	Status_ERR_ISDIR
	Status_ERR_NOTEMPTY
	Status_ERR_NOSPC
	Status_ERR_INVAL
	Status_ERR_ACCES
	Status_ERR_STALE
	Status_ERR_BADHANDLE
	Status_ERR_IO
)

var statusNames = map[Status]string{
	Status_OK:              "OK",
	Status_ERR_NOENT:       "ERR_NOENT",
	Status_ERR_EXIST:       "ERR_EXIST",
	Status_ERR_NAMETOOLONG: "ERR_NAMETOOLONG",
	Status_ERR_NOTDIR:      "ERR_NOTDIR",
	Status_ERR_ISDIR:       "ERR_ISDIR",
	Status_ERR_NOTEMPTY:    "ERR_NOTEMPTY",
	Status_ERR_NOSPC:       "ERR_NOSPC",
	Status_ERR_INVAL:       "ERR_INVAL",
	Status_ERR_ACCES:       "ERR_ACCES",
	Status_ERR_STALE:       "ERR_STALE",
	Status_ERR_BADHANDLE:   "ERR_BADHANDLE",
	Status_ERR_IO:          "ERR_IO",
}

// String returns the protocol name of the status code.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "ERR_UNKNOWN"
}
