package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/api/middleware"
	"github.com/mercanto-labs/mercanto-backend/internal/orders"
	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

func TestCreateOrderDecodesPurchaseFields(t *testing.T) {
	t.Parallel()

	svc := &captureOrderService{}
	handler := CreateOrder(svc, logger.New(logger.Options{ServiceName: "test"}))

	actor := uuid.New()
	employee := uuid.New()
	purchasing := uuid.New()
	body := `{
		"type": "PURCHASE",
		"business_id": "` + uuid.New().String() + `",
		"currency_code": "USD",
		"purchasing_business_id": "` + purchasing.String() + `",
		"employee_id": "` + employee.String() + `",
		"lines": [{"variant_id": "` + uuid.New().String() + `", "quantity": 2}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUserID(req.Context(), actor.String()))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	in := svc.lastCreate
	if in == nil {
		t.Fatal("expected Create to be called")
	}
	if in.Type != enums.OrderTypePurchase {
		t.Fatalf("expected PURCHASE order, got %s", in.Type)
	}
	if in.EmployeeID == nil || *in.EmployeeID != employee {
		t.Fatalf("expected employee id %s to reach the service, got %v", employee, in.EmployeeID)
	}
	if in.PurchasingBusinessID == nil || *in.PurchasingBusinessID != purchasing {
		t.Fatalf("expected purchasing business id %s, got %v", purchasing, in.PurchasingBusinessID)
	}
	if in.CustomerID != actor {
		t.Fatalf("expected customer id from the token, got %s", in.CustomerID)
	}
}

type captureOrderService struct {
	lastCreate *orders.CreateOrderInput
}

func (s *captureOrderService) Create(_ context.Context, in orders.CreateOrderInput, _ uuid.UUID) (*models.Order, error) {
	s.lastCreate = &in
	return &models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingPayment}, nil
}

func (s *captureOrderService) CreateDepositOrder(context.Context, orders.DepositOrderInput) (*models.Order, error) {
	return nil, nil
}

func (s *captureOrderService) Get(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, nil
}

func (s *captureOrderService) UpdateStatus(context.Context, orders.UpdateStatusInput) (*models.Order, error) {
	return nil, nil
}

func (s *captureOrderService) UpdateStatusTx(context.Context, *gorm.DB, orders.UpdateStatusInput) (*models.Order, error) {
	return nil, nil
}
