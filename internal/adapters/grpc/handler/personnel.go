package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ogurasousui/personnel/internal/core/personnel"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const dateLayout = "2006-01-02"

var errInvalidRequest = errors.New("handler: invalid request")

// Facility は PersonnelGrpcHandler が利用する人事管理の操作です。
type Facility interface {
	Root() *personnel.Employe
	Ligues() []*personnel.Ligue
	Ligue(id int) (*personnel.Ligue, error)
	Employe(id int) (*personnel.Employe, error)
	CreateLigue(ctx context.Context, nom string) (*personnel.Ligue, error)
	RemoveLigue(ctx context.Context, l *personnel.Ligue) error
	RenameLigue(ctx context.Context, l *personnel.Ligue, nom string) error
	SetAdministrateur(ctx context.Context, l *personnel.Ligue, e *personnel.Employe) error
	SetDateDepart(ctx context.Context, e *personnel.Employe, d *time.Time) error
}

// PersonnelGrpcHandler は PersonnelService の gRPC 実装です。
type PersonnelGrpcHandler struct {
	facility Facility
}

var _ PersonnelServiceServer = (*PersonnelGrpcHandler)(nil)

// NewPersonnelGrpcHandler は PersonnelGrpcHandler を生成します。
func NewPersonnelGrpcHandler(facility Facility) *PersonnelGrpcHandler {
	return &PersonnelGrpcHandler{facility: facility}
}

// ListLigues はリーグの一覧を名前順で返します。
func (h *PersonnelGrpcHandler) ListLigues(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ligues := h.facility.Ligues()
	items := make([]any, 0, len(ligues))
	for _, l := range ligues {
		item := ligueFields(l)
		item["employes"] = len(l.Employes())
		items = append(items, item)
	}
	return newStruct(map[string]any{"ligues": items})
}

// GetLigue はリーグと所属社員を返します。
func (h *PersonnelGrpcHandler) GetLigue(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	l, err := h.ligueFromRequest(req)
	if err != nil {
		return nil, toStatusError(err)
	}
	return newStruct(ligueDetail(l))
}

// CreateLigue はリーグを作成します。
func (h *PersonnelGrpcHandler) CreateLigue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	nom, err := stringField(req, "nom")
	if err != nil {
		return nil, toStatusError(err)
	}
	l, err := h.facility.CreateLigue(ctx, nom)
	if err != nil {
		return nil, toStatusError(err)
	}
	return newStruct(ligueDetail(l))
}

// RenameLigue はリーグ名を変更して保存します。
func (h *PersonnelGrpcHandler) RenameLigue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	l, err := h.ligueFromRequest(req)
	if err != nil {
		return nil, toStatusError(err)
	}
	nom, err := stringField(req, "nom")
	if err != nil {
		return nil, toStatusError(err)
	}

	if err := h.facility.RenameLigue(ctx, l, nom); err != nil {
		return nil, toStatusError(err)
	}
	return newStruct(ligueDetail(l))
}

// RemoveLigue はリーグを削除します。
func (h *PersonnelGrpcHandler) RemoveLigue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	l, err := h.ligueFromRequest(req)
	if err != nil {
		return nil, toStatusError(err)
	}
	if err := h.facility.RemoveLigue(ctx, l); err != nil {
		return nil, toStatusError(err)
	}
	return &structpb.Struct{}, nil
}

// AddEmploye はリーグに社員を追加します。
func (h *PersonnelGrpcHandler) AddEmploye(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	l, err := h.ligueFromRequest(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	var in personnel.EmployeInput
	if in.Nom, err = stringField(req, "nom"); err != nil {
		return nil, toStatusError(err)
	}
	in.Prenom = optionalString(req, "prenom")
	in.Mail = optionalString(req, "mail")
	in.Password = optionalString(req, "password")
	if in.DateArrive, err = dateField(req, "date_arrive"); err != nil {
		return nil, toStatusError(err)
	}
	if in.DateDepart, err = optionalDateField(req, "date_depart"); err != nil {
		return nil, toStatusError(err)
	}

	e, err := l.AddEmploye(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}
	return newStruct(employeFields(e))
}

// RemoveEmploye は社員を削除します。root は削除できません。
func (h *PersonnelGrpcHandler) RemoveEmploye(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := h.employeFromRequest(req)
	if err != nil {
		return nil, toStatusError(err)
	}
	if err := e.Remove(ctx); err != nil {
		return nil, toStatusError(err)
	}
	return &structpb.Struct{}, nil
}

// SetAdministrateur はリーグの管理者を変更して保存します。
func (h *PersonnelGrpcHandler) SetAdministrateur(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	l, err := h.ligueFromRequest(req)
	if err != nil {
		return nil, toStatusError(err)
	}
	e, err := h.employeFromRequest(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	if err := h.facility.SetAdministrateur(ctx, l, e); err != nil {
		return nil, toStatusError(err)
	}
	return newStruct(ligueDetail(l))
}

// SetDateDepart は退職日を変更して保存します。date_depart が無い場合は退職日を消去します。
func (h *PersonnelGrpcHandler) SetDateDepart(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := h.employeFromRequest(req)
	if err != nil {
		return nil, toStatusError(err)
	}
	depart, err := optionalDateField(req, "date_depart")
	if err != nil {
		return nil, toStatusError(err)
	}

	if err := h.facility.SetDateDepart(ctx, e, depart); err != nil {
		return nil, toStatusError(err)
	}
	return newStruct(employeFields(e))
}

// CheckPassword はパスワードが一致するかを返します。
func (h *PersonnelGrpcHandler) CheckPassword(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := h.employeFromRequest(req)
	if err != nil {
		return nil, toStatusError(err)
	}
	return newStruct(map[string]any{"ok": e.CheckPassword(optionalString(req, "password"))})
}

func (h *PersonnelGrpcHandler) ligueFromRequest(req *structpb.Struct) (*personnel.Ligue, error) {
	id, err := intField(req, "ligue_id")
	if err != nil {
		return nil, err
	}
	return h.facility.Ligue(id)
}

func (h *PersonnelGrpcHandler) employeFromRequest(req *structpb.Struct) (*personnel.Employe, error) {
	id, err := intField(req, "employe_id")
	if err != nil {
		return nil, err
	}
	return h.facility.Employe(id)
}

func ligueFields(l *personnel.Ligue) map[string]any {
	fields := map[string]any{
		"id":  l.ID(),
		"nom": l.Nom(),
	}
	if admin := l.Administrateur(); admin != nil {
		fields["administrateur_id"] = admin.ID()
	}
	return fields
}

func ligueDetail(l *personnel.Ligue) map[string]any {
	fields := ligueFields(l)
	employes := l.Employes()
	items := make([]any, 0, len(employes))
	for _, e := range employes {
		items = append(items, employeFields(e))
	}
	fields["employes"] = items
	return fields
}

func employeFields(e *personnel.Employe) map[string]any {
	fields := map[string]any{
		"id":          e.ID(),
		"nom":         e.Nom(),
		"prenom":      e.Prenom(),
		"mail":        e.Mail(),
		"date_arrive": e.DateArrive().Format(dateLayout),
		"date_depart": nil,
		"ligue_id":    nil,
	}
	if depart := e.DateDepart(); depart != nil {
		fields["date_depart"] = depart.Format(dateLayout)
	}
	if l := e.Ligue(); l != nil {
		fields["ligue_id"] = l.ID()
	}
	return fields
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

func field(req *structpb.Struct, key string) (*structpb.Value, bool) {
	if req == nil {
		return nil, false
	}
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func intField(req *structpb.Struct, key string) (int, error) {
	v, ok := field(req, key)
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", errInvalidRequest, key)
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("%w: %s must be an integer", errInvalidRequest, key)
	}
	if n.NumberValue < math.MinInt32 || n.NumberValue > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s is out of range", errInvalidRequest, key)
	}
	return int(n.NumberValue), nil
}

func stringField(req *structpb.Struct, key string) (string, error) {
	v, ok := field(req, key)
	if !ok {
		return "", fmt.Errorf("%w: %s is required", errInvalidRequest, key)
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", fmt.Errorf("%w: %s must be a string", errInvalidRequest, key)
	}
	return s.StringValue, nil
}

func optionalString(req *structpb.Struct, key string) string {
	v, ok := field(req, key)
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func dateField(req *structpb.Struct, key string) (time.Time, error) {
	raw, err := stringField(req, key)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errInvalidRequest, key)
	}
	return d, nil
}

func optionalDateField(req *structpb.Struct, key string) (*time.Time, error) {
	if _, ok := field(req, key); !ok {
		return nil, nil
	}
	d, err := dateField(req, key)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
