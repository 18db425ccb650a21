package server

import (
	"bytes"
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/example/sectorfs/pkg/api"
	"github.com/example/sectorfs/pkg/device"
	"github.com/example/sectorfs/pkg/fs/blockfs"
)

// TestEndToEndOverBufconn drives the whole stack through a real gRPC
// connection: codec, service descriptor, server, filesystem.
func TestEndToEndOverBufconn(t *testing.T) {
	fsys, err := blockfs.Mount(device.NewMem(4096), true)
	if err != nil {
		t.Fatal(err)
	}

	srv, err := New(DefaultConfig(), fsys)
	if err != nil {
		t.Fatal(err)
	}

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	api.RegisterSectorFSServer(grpcServer, srv)
	go grpcServer.Serve(lis)
	t.Cleanup(func() {
		grpcServer.Stop()
		srv.CloseSessions()
		fsys.Close()
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	client := api.NewSectorFSClient(conn)
	ctx := context.Background()
	const session = 1

	if resp, err := client.CreateFile(ctx, &api.PathRequest{Session: session, Path: "/wire"}); err != nil || resp.Status != api.Status_OK {
		t.Fatalf("CreateFile = (%v, %v)", resp, err)
	}

	open, err := client.Open(ctx, &api.PathRequest{Session: session, Path: "/wire"})
	if err != nil || open.Status != api.Status_OK {
		t.Fatalf("Open = (%v, %v)", open, err)
	}

	payload := bytes.Repeat([]byte{0xC3}, 1500)
	wr, err := client.Write(ctx, &api.IORequest{Session: session, Fd: open.Fd, Data: payload})
	if err != nil || wr.Status != api.Status_OK || wr.Count != 1500 {
		t.Fatalf("Write = (%v, %v)", wr, err)
	}

	rd, err := client.Read(ctx, &api.IORequest{
		Session: session, Fd: open.Fd, Count: 2000, UseOffset: true,
	})
	if err != nil || rd.Status != api.Status_OK {
		t.Fatalf("Read = (%v, %v)", rd, err)
	}
	if !bytes.Equal(rd.Data, payload) {
		t.Error("payload corrupted across the wire")
	}
	if !rd.Eof {
		t.Error("missing EOF on a read past the end")
	}

	if resp, err := client.Flush(ctx, &api.FlushRequest{Session: session}); err != nil || resp.Status != api.Status_OK {
		t.Fatalf("Flush = (%v, %v)", resp, err)
	}

	// errors cross the wire as status codes, not transport failures
	missing, err := client.Open(ctx, &api.PathRequest{Session: session, Path: "/missing"})
	if err != nil {
		t.Fatalf("Open missing: %v", err)
	}
	if missing.Status != api.Status_ERR_NOENT {
		t.Errorf("Open missing = %v, want ERR_NOENT", missing.Status)
	}
}
