package api

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCodecCarriesMessages(t *testing.T) {
	c := Codec{}

	in := &IORequest{
		Session:   42,
		Fd:        3,
		Data:      []byte("hello, sector"),
		Offset:    600,
		UseOffset: true,
	}
	wire, err := c.Marshal(in)
	require.NoError(t, err)

	out := &IORequest{}
	require.NoError(t, c.Unmarshal(wire, out))
	require.Equal(t, in, out)

	// rejects values that are not protocol messages
	_, err = c.Marshal("not a message")
	require.Error(t, err)
}

func TestReadDirResponseNesting(t *testing.T) {
	in := &ReadDirResponse{
		Status: Status_OK,
		Entries: []*DirEntry{
			{Name: ".", Inode: 1},
			{Name: "..", Inode: 1},
			{Name: "notes", Inode: 57},
		},
		Eof: true,
	}
	wire, err := in.MarshalWire()
	require.NoError(t, err)

	out := &ReadDirResponse{}
	require.NoError(t, out.UnmarshalWire(wire))
	require.Equal(t, in, out)
}

// Unknown fields from a newer peer are skipped, not fatal.
func TestUnknownFieldsSkipped(t *testing.T) {
	in := &StatusResponse{Status: Status_ERR_NOENT}
	wire, err := in.MarshalWire()
	require.NoError(t, err)

	wire = protowire.AppendTag(wire, 99, protowire.BytesType)
	wire = protowire.AppendString(wire, "from the future")

	out := &StatusResponse{}
	require.NoError(t, out.UnmarshalWire(wire))
	require.Equal(t, Status_ERR_NOENT, out.Status)
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "OK", Status_OK.String())
	require.Equal(t, "ERR_NOTEMPTY", Status_ERR_NOTEMPTY.String())
	require.Equal(t, "ERR_UNKNOWN", Status(1000).String())
}
