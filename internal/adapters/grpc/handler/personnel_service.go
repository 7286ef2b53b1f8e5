package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// PersonnelServiceName は gRPC 上のサービス名です。
const PersonnelServiceName = "personnel.v1.PersonnelService"

// PersonnelServiceServer は PersonnelService のサーバー側インターフェースです。
// すべてのメッセージは google.protobuf.Struct です。
type PersonnelServiceServer interface {
	ListLigues(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLigue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateLigue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RenameLigue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveLigue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddEmploye(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveEmploye(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAdministrateur(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetDateDepart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type personnelMethod func(PersonnelServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var personnelMethods = map[string]personnelMethod{
	"ListLigues":        PersonnelServiceServer.ListLigues,
	"GetLigue":          PersonnelServiceServer.GetLigue,
	"CreateLigue":       PersonnelServiceServer.CreateLigue,
	"RenameLigue":       PersonnelServiceServer.RenameLigue,
	"RemoveLigue":       PersonnelServiceServer.RemoveLigue,
	"AddEmploye":        PersonnelServiceServer.AddEmploye,
	"RemoveEmploye":     PersonnelServiceServer.RemoveEmploye,
	"SetAdministrateur": PersonnelServiceServer.SetAdministrateur,
	"SetDateDepart":     PersonnelServiceServer.SetDateDepart,
	"CheckPassword":     PersonnelServiceServer.CheckPassword,
}

// PersonnelServiceDesc は PersonnelService の grpc.ServiceDesc を返します。
func PersonnelServiceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: PersonnelServiceName,
		HandlerType: (*PersonnelServiceServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "personnel/v1/personnel.proto",
	}
	for _, name := range personnelMethodNames() {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name, personnelMethods[name]),
		})
	}
	return desc
}

// RegisterPersonnelServiceServer は srv を gRPC サーバーに登録します。
func RegisterPersonnelServiceServer(s grpc.ServiceRegistrar, srv PersonnelServiceServer) {
	s.RegisterService(PersonnelServiceDesc(), srv)
}

func personnelMethodNames() []string {
	return []string{
		"ListLigues", "GetLigue", "CreateLigue", "RenameLigue", "RemoveLigue",
		"AddEmploye", "RemoveEmploye", "SetAdministrateur", "SetDateDepart", "CheckPassword",
	}
}

func unaryHandler(name string, call personnelMethod) grpc.MethodHandler {
	fullMethod := "/" + PersonnelServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PersonnelServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(PersonnelServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// PersonnelServiceClient は PersonnelService を呼び出すクライアントです。
type PersonnelServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPersonnelServiceClient は PersonnelServiceClient を生成します。
func NewPersonnelServiceClient(cc grpc.ClientConnInterface) *PersonnelServiceClient {
	return &PersonnelServiceClient{cc: cc}
}

// Call は method を呼び出します。
func (c *PersonnelServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+PersonnelServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
