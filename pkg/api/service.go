package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sectorfs.SectorFS"

// SectorFSServer is the server-side contract of the sectorfs service.
type SectorFSServer interface {
	CreateFile(context.Context, *PathRequest) (*StatusResponse, error)
	MakeDir(context.Context, *PathRequest) (*StatusResponse, error)
	Remove(context.Context, *PathRequest) (*StatusResponse, error)
	ChangeDir(context.Context, *PathRequest) (*StatusResponse, error)
	Open(context.Context, *PathRequest) (*OpenResponse, error)
	CloseFd(context.Context, *HandleRequest) (*StatusResponse, error)
	Read(context.Context, *IORequest) (*IOResponse, error)
	Write(context.Context, *IORequest) (*IOResponse, error)
	Seek(context.Context, *SeekRequest) (*SeekResponse, error)
	Stat(context.Context, *HandleRequest) (*StatResponse, error)
	ReadDir(context.Context, *HandleRequest) (*ReadDirResponse, error)
	SetDenyWrite(context.Context, *DenyWriteRequest) (*StatusResponse, error)
	Flush(context.Context, *FlushRequest) (*StatusResponse, error)
}

// UnimplementedSectorFSServer can be embedded for forward compatibility.
type UnimplementedSectorFSServer struct{}

func (UnimplementedSectorFSServer) CreateFile(context.Context, *PathRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateFile not implemented")
}
func (UnimplementedSectorFSServer) MakeDir(context.Context, *PathRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method MakeDir not implemented")
}
func (UnimplementedSectorFSServer) Remove(context.Context, *PathRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Remove not implemented")
}
func (UnimplementedSectorFSServer) ChangeDir(context.Context, *PathRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ChangeDir not implemented")
}
func (UnimplementedSectorFSServer) Open(context.Context, *PathRequest) (*OpenResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Open not implemented")
}
func (UnimplementedSectorFSServer) CloseFd(context.Context, *HandleRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CloseFd not implemented")
}
func (UnimplementedSectorFSServer) Read(context.Context, *IORequest) (*IOResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Read not implemented")
}
func (UnimplementedSectorFSServer) Write(context.Context, *IORequest) (*IOResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Write not implemented")
}
func (UnimplementedSectorFSServer) Seek(context.Context, *SeekRequest) (*SeekResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Seek not implemented")
}
func (UnimplementedSectorFSServer) Stat(context.Context, *HandleRequest) (*StatResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Stat not implemented")
}
func (UnimplementedSectorFSServer) ReadDir(context.Context, *HandleRequest) (*ReadDirResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReadDir not implemented")
}
func (UnimplementedSectorFSServer) SetDenyWrite(context.Context, *DenyWriteRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetDenyWrite not implemented")
}
func (UnimplementedSectorFSServer) Flush(context.Context, *FlushRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Flush not implemented")
}

// RegisterSectorFSServer registers srv on a gRPC server.
func RegisterSectorFSServer(s grpc.ServiceRegistrar, srv SectorFSServer) {
	s.RegisterService(&SectorFS_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](
	call func(SectorFSServer, context.Context, *Req) (*Resp, error),
	method string,
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SectorFSServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(SectorFSServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SectorFS_ServiceDesc is the grpc.ServiceDesc for the SectorFS service.
var SectorFS_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SectorFSServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateFile", Handler: unaryHandler(SectorFSServer.CreateFile, "CreateFile")},
		{MethodName: "MakeDir", Handler: unaryHandler(SectorFSServer.MakeDir, "MakeDir")},
		{MethodName: "Remove", Handler: unaryHandler(SectorFSServer.Remove, "Remove")},
		{MethodName: "ChangeDir", Handler: unaryHandler(SectorFSServer.ChangeDir, "ChangeDir")},
		{MethodName: "Open", Handler: unaryHandler(SectorFSServer.Open, "Open")},
		{MethodName: "CloseFd", Handler: unaryHandler(SectorFSServer.CloseFd, "CloseFd")},
		{MethodName: "Read", Handler: unaryHandler(SectorFSServer.Read, "Read")},
		{MethodName: "Write", Handler: unaryHandler(SectorFSServer.Write, "Write")},
		{MethodName: "Seek", Handler: unaryHandler(SectorFSServer.Seek, "Seek")},
		{MethodName: "Stat", Handler: unaryHandler(SectorFSServer.Stat, "Stat")},
		{MethodName: "ReadDir", Handler: unaryHandler(SectorFSServer.ReadDir, "ReadDir")},
		{MethodName: "SetDenyWrite", Handler: unaryHandler(SectorFSServer.SetDenyWrite, "SetDenyWrite")},
		{MethodName: "Flush", Handler: unaryHandler(SectorFSServer.Flush, "Flush")},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sectorfs.proto",
}

// SectorFSClient is the client-side contract of the sectorfs service.
type SectorFSClient interface {
	CreateFile(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	MakeDir(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Remove(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	ChangeDir(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Open(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*OpenResponse, error)
	CloseFd(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Read(ctx context.Context, in *IORequest, opts ...grpc.CallOption) (*IOResponse, error)
	Write(ctx context.Context, in *IORequest, opts ...grpc.CallOption) (*IOResponse, error)
	Seek(ctx context.Context, in *SeekRequest, opts ...grpc.CallOption) (*SeekResponse, error)
	Stat(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*StatResponse, error)
	ReadDir(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*ReadDirResponse, error)
	SetDenyWrite(ctx context.Context, in *DenyWriteRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Flush(ctx context.Context, in *FlushRequest, opts ...grpc.CallOption) (*StatusResponse, error)
}

type sectorFSClient struct {
	cc grpc.ClientConnInterface
}

// NewSectorFSClient returns a client stub over an established connection.
func NewSectorFSClient(cc grpc.ClientConnInterface) SectorFSClient {
	return &sectorFSClient{cc}
}

func invoke[Resp any](c *sectorFSClient, ctx context.Context, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	out := new(Resp)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sectorFSClient) CreateFile(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](c, ctx, "CreateFile", in, opts)
}

func (c *sectorFSClient) MakeDir(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](c, ctx, "MakeDir", in, opts)
}

func (c *sectorFSClient) Remove(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](c, ctx, "Remove", in, opts)
}

func (c *sectorFSClient) ChangeDir(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](c, ctx, "ChangeDir", in, opts)
}

func (c *sectorFSClient) Open(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*OpenResponse, error) {
	return invoke[OpenResponse](c, ctx, "Open", in, opts)
}

func (c *sectorFSClient) CloseFd(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](c, ctx, "CloseFd", in, opts)
}

func (c *sectorFSClient) Read(ctx context.Context, in *IORequest, opts ...grpc.CallOption) (*IOResponse, error) {
	return invoke[IOResponse](c, ctx, "Read", in, opts)
}

func (c *sectorFSClient) Write(ctx context.Context, in *IORequest, opts ...grpc.CallOption) (*IOResponse, error) {
	return invoke[IOResponse](c, ctx, "Write", in, opts)
}

func (c *sectorFSClient) Seek(ctx context.Context, in *SeekRequest, opts ...grpc.CallOption) (*SeekResponse, error) {
	return invoke[SeekResponse](c, ctx, "Seek", in, opts)
}

func (c *sectorFSClient) Stat(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*StatResponse, error) {
	return invoke[StatResponse](c, ctx, "Stat", in, opts)
}

func (c *sectorFSClient) ReadDir(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*ReadDirResponse, error) {
	return invoke[ReadDirResponse](c, ctx, "ReadDir", in, opts)
}

func (c *sectorFSClient) SetDenyWrite(ctx context.Context, in *DenyWriteRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](c, ctx, "SetDenyWrite", in, opts)
}

func (c *sectorFSClient) Flush(ctx context.Context, in *FlushRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](c, ctx, "Flush", in, opts)
}
