package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
	"github.com/joseph-ayodele/fichas-scanner/internal/publish"
)

// State is the client-side view of the orchestrator.
type State struct {
	State      string
	Busy       bool
	HasResult  bool
	Result     extract.Record
	LastError  string
	LastScanID string
}

// Client calls a remote Scanner service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes the connection when the client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, fullMethod(method), in, out)
}

func (c *Client) StartCamera(ctx context.Context) (State, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "StartCamera", &emptypb.Empty{}, out); err != nil {
		return State{}, err
	}
	return stateFromStruct(out), nil
}

func (c *Client) StopCamera(ctx context.Context) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, "StopCamera", &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// Capture runs one processing pass. started is false when the pass was
// ignored.
func (c *Client) Capture(ctx context.Context) (rec extract.Record, started bool, err error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Capture", &emptypb.Empty{}, out); err != nil {
		return extract.Record{}, false, err
	}
	m := out.AsMap()
	started, _ = m["started"].(bool)
	return RecordFromStruct(m["record"]), started, nil
}

func (c *Client) FillForm(ctx context.Context) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, "FillForm", &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) GetState(ctx context.Context) (State, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetState", &emptypb.Empty{}, out); err != nil {
		return State{}, err
	}
	return stateFromStruct(out), nil
}

func (c *Client) Extract(ctx context.Context, text string) (extract.Record, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Extract", wrapperspb.String(text), out); err != nil {
		return extract.Record{}, err
	}
	return RecordFromStruct(out.AsMap()), nil
}

// ListScans returns scan rows as plain maps. filter keys: status, from, to
// (YYYY-MM-DD) and limit.
func (c *Client) ListScans(ctx context.Context, filter map[string]any) ([]map[string]any, error) {
	in, err := structpb.NewStruct(filter)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "ListScans", in, out); err != nil {
		return nil, err
	}
	raw, _ := out.AsMap()["scans"].([]any)
	scans := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			scans = append(scans, m)
		}
	}
	return scans, nil
}

func (c *Client) GetScan(ctx context.Context, id string) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetScan", wrapperspb.String(id), out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) ExportScans(ctx context.Context, filter map[string]any) ([]byte, error) {
	in, err := structpb.NewStruct(filter)
	if err != nil {
		return nil, err
	}
	out := new(wrapperspb.BytesValue)
	if err := c.invoke(ctx, "ExportScans", in, out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// Subscribe calls fn for every hand-off message until ctx is done, the
// server ends the stream or fn returns an error.
func (c *Client) Subscribe(ctx context.Context, fn func(publish.Message) error) error {
	stream, err := c.cc.NewStream(ctx, &ScannerServiceDesc.Streams[0], fullMethod("Subscribe"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		st := new(structpb.Struct)
		if err := stream.RecvMsg(st); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		msg, err := MessageFromStruct(st)
		if err != nil {
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

func stateFromStruct(st *structpb.Struct) State {
	m := st.AsMap()
	str := func(k string) string {
		v, _ := m[k].(string)
		return v
	}
	var s State
	s.State = str("state")
	s.Busy, _ = m["busy"].(bool)
	s.HasResult, _ = m["has_result"].(bool)
	s.Result = RecordFromStruct(m["result"])
	s.LastError = str("last_error")
	s.LastScanID = str("last_scan_id")
	return s
}
