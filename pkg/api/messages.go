package api

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// wireMessage is implemented by every protocol message.
type wireMessage interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire(data []byte) error
}

func parseErr(n int) error {
	return fmt.Errorf("api: malformed message: %w", protowire.ParseError(n))
}

// skipField discards an unknown field, keeping old binaries compatible
// with newer peers.
func skipField(b []byte, num protowire.Number, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, parseErr(n)
	}
	return b[n:], nil
}

// PathRequest names a path-taking operation: create, mkdir, remove,
// chdir, open. Size is the initial file size for create.
type PathRequest struct {
	Session uint64
	Path    string
	Size    int64
}

func (m *PathRequest) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Session != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Session)
	}
	if m.Path != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.Path)
	}
	if m.Size != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Size))
	}
	return b, nil
}

func (m *PathRequest) UnmarshalWire(b []byte) error {
	*m = PathRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Session = v
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Path = v
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Size = int64(v)
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// HandleRequest names an open descriptor: close, stat, readdir.
type HandleRequest struct {
	Session uint64
	Fd      int32
}

func (m *HandleRequest) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Session != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Session)
	}
	if m.Fd != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Fd)))
	}
	return b, nil
}

func (m *HandleRequest) UnmarshalWire(b []byte) error {
	*m = HandleRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Session = v
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Fd = int32(uint32(v))
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// IORequest carries a read or write. Reads fill Count bytes, writes carry
// Data. With UseOffset set the transfer happens at Offset and leaves the
// descriptor's cursor alone; otherwise it happens at the cursor.
type IORequest struct {
	Session   uint64
	Fd        int32
	Count     uint32
	Data      []byte
	Offset    int64
	UseOffset bool
}

func (m *IORequest) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Session != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Session)
	}
	if m.Fd != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Fd)))
	}
	if m.Count != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Count))
	}
	if len(m.Data) > 0 {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Data)
	}
	if m.Offset != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Offset))
	}
	if m.UseOffset {
		b = protowire.AppendTag(b, 6, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b, nil
}

func (m *IORequest) UnmarshalWire(b []byte) error {
	*m = IORequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Session = v
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Fd = int32(uint32(v))
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Count = uint32(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Data = append([]byte(nil), v...)
			b = b[n:]
		case 5:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Offset = int64(v)
			b = b[n:]
		case 6:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.UseOffset = v != 0
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// SeekRequest repositions a descriptor's cursor.
type SeekRequest struct {
	Session uint64
	Fd      int32
	Offset  int64
	Whence  int32
}

func (m *SeekRequest) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Session != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Session)
	}
	if m.Fd != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Fd)))
	}
	if m.Offset != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Offset))
	}
	if m.Whence != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Whence)))
	}
	return b, nil
}

func (m *SeekRequest) UnmarshalWire(b []byte) error {
	*m = SeekRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Session = v
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Fd = int32(uint32(v))
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Offset = int64(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Whence = int32(uint32(v))
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// DenyWriteRequest toggles the descriptor's write denial.
type DenyWriteRequest struct {
	Session uint64
	Fd      int32
	Deny    bool
}

func (m *DenyWriteRequest) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Session != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Session)
	}
	if m.Fd != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Fd)))
	}
	if m.Deny {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b, nil
}

func (m *DenyWriteRequest) UnmarshalWire(b []byte) error {
	*m = DenyWriteRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Session = v
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Fd = int32(uint32(v))
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Deny = v != 0
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlushRequest asks the server to write back all dirty cache entries.
type FlushRequest struct {
	Session uint64
}

func (m *FlushRequest) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Session != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Session)
	}
	return b, nil
}

func (m *FlushRequest) UnmarshalWire(b []byte) error {
	*m = FlushRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Session = v
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// StatusResponse is the bare result of a mutation.
type StatusResponse struct {
	Status Status
}

func (m *StatusResponse) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Status != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Status)))
	}
	return b, nil
}

func (m *StatusResponse) UnmarshalWire(b []byte) error {
	*m = StatusResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Status = Status(uint32(v))
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// OpenResponse returns a fresh descriptor.
type OpenResponse struct {
	Status Status
	Fd     int32
	IsDir  bool
	Inode  uint32
	Size   int64
}

func (m *OpenResponse) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Status != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Status)))
	}
	if m.Fd != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Fd)))
	}
	if m.IsDir {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if m.Inode != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Inode))
	}
	if m.Size != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Size))
	}
	return b, nil
}

func (m *OpenResponse) UnmarshalWire(b []byte) error {
	*m = OpenResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Status = Status(uint32(v))
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Fd = int32(uint32(v))
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.IsDir = v != 0
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Inode = uint32(v)
			b = b[n:]
		case 5:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Size = int64(v)
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// IOResponse answers a read or write. Reads fill Data and set Eof when
// the read reached the end of the file; writes set Count.
type IOResponse struct {
	Status Status
	Data   []byte
	Count  uint32
	Eof    bool
}

func (m *IOResponse) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Status != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Status)))
	}
	if len(m.Data) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Data)
	}
	if m.Count != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Count))
	}
	if m.Eof {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b, nil
}

func (m *IOResponse) UnmarshalWire(b []byte) error {
	*m = IOResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Status = Status(uint32(v))
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Data = append([]byte(nil), v...)
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Count = uint32(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Eof = v != 0
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// SeekResponse returns the cursor position after a seek.
type SeekResponse struct {
	Status Status
	Pos    int64
}

func (m *SeekResponse) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Status != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Status)))
	}
	if m.Pos != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Pos))
	}
	return b, nil
}

func (m *SeekResponse) UnmarshalWire(b []byte) error {
	*m = SeekResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Status = Status(uint32(v))
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Pos = int64(v)
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// StatResponse describes an open descriptor: inode number, length,
// directory flag, and cursor position.
type StatResponse struct {
	Status Status
	Inode  uint32
	Size   int64
	IsDir  bool
	Pos    int64
}

func (m *StatResponse) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Status != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Status)))
	}
	if m.Inode != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Inode))
	}
	if m.Size != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Size))
	}
	if m.IsDir {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if m.Pos != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Pos))
	}
	return b, nil
}

func (m *StatResponse) UnmarshalWire(b []byte) error {
	*m = StatResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Status = Status(uint32(v))
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Inode = uint32(v)
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Size = int64(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.IsDir = v != 0
			b = b[n:]
		case 5:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Pos = int64(v)
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// DirEntry is one directory entry in a ReadDirResponse.
type DirEntry struct {
	Name  string
	Inode uint32
}

func (m *DirEntry) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Name != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Name)
	}
	if m.Inode != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Inode))
	}
	return b, nil
}

func (m *DirEntry) UnmarshalWire(b []byte) error {
	*m = DirEntry{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Name = v
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Inode = uint32(v)
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadDirResponse carries a batch of directory entries. Eof marks the
// end of the directory.
type ReadDirResponse struct {
	Status  Status
	Entries []*DirEntry
	Eof     bool
}

func (m *ReadDirResponse) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Status != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Status)))
	}
	for _, ent := range m.Entries {
		sub, err := ent.MarshalWire()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}
	if m.Eof {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b, nil
}

func (m *ReadDirResponse) UnmarshalWire(b []byte) error {
	*m = ReadDirResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Status = Status(uint32(v))
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return parseErr(n)
			}
			ent := new(DirEntry)
			if err := ent.UnmarshalWire(v); err != nil {
				return err
			}
			m.Entries = append(m.Entries, ent)
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseErr(n)
			}
			m.Eof = v != 0
			b = b[n:]
		default:
			var err error
			if b, err = skipField(b, num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}
