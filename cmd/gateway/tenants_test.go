package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tomerlieber/docflow/internal/store"
)

func TestCreateTenant(t *testing.T) {
	mockStore := new(store.MockStore)
	g := testGateway(mockStore, nil, nil, nil, nil, nil, nil, nil)

	tenantID := uuid.New()
	mockStore.On("CreateTenant", mock.Anything, "acme", mock.Anything, 100).
		Return(store.Tenant{ID: tenantID, Name: "acme", RateLimitPerMinute: 100}, nil).Once()

	body, _ := json.Marshal(map[string]any{"name": "acme", "rate_limit_per_minute": 100})
	req := internalRequest(http.MethodPost, "/internal/tenants", bytes.NewReader(body))
	w := serveInternal(g, mockStore, g.createTenant, req, nil)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["api_key"] == "" || resp["api_key"] == nil {
		t.Error("expected a raw api_key in the response")
	}

	mockStore.AssertExpectations(t)
}

func TestCreateTenantRejectsBadInternalToken(t *testing.T) {
	mockStore := new(store.MockStore)
	g := testGateway(mockStore, nil, nil, nil, nil, nil, nil, nil)

	body, _ := json.Marshal(map[string]any{"name": "acme"})
	req := httptest.NewRequest(http.MethodPost, "/internal/tenants", bytes.NewReader(body))
	req.Header.Set("X-Internal-Token", "wrong-token")
	w := serveInternal(g, mockStore, g.createTenant, req, nil)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad internal token, got %d", w.Code)
	}
}

func TestListTenants(t *testing.T) {
	mockStore := new(store.MockStore)
	g := testGateway(mockStore, nil, nil, nil, nil, nil, nil, nil)

	mockStore.On("ListTenants", mock.Anything).
		Return([]store.Tenant{{ID: uuid.New(), Name: "a"}, {ID: uuid.New(), Name: "b"}}, nil).Once()

	req := internalRequest(http.MethodGet, "/internal/tenants", nil)
	w := serveInternal(g, mockStore, g.listTenants, req, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	mockStore.AssertExpectations(t)
}

func TestGetTenantNotFound(t *testing.T) {
	mockStore := new(store.MockStore)
	g := testGateway(mockStore, nil, nil, nil, nil, nil, nil, nil)
	tenantID := uuid.New()

	mockStore.On("GetTenant", mock.Anything, tenantID).Return(store.Tenant{}, store.ErrNotFound).Once()

	req := internalRequest(http.MethodGet, "/internal/tenants/"+tenantID.String(), nil)
	w := serveInternal(g, mockStore, g.getTenant, req, map[string]string{"tenant_id": tenantID.String()})

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	mockStore.AssertExpectations(t)
}

func TestDeleteTenant(t *testing.T) {
	mockStore := new(store.MockStore)
	g := testGateway(mockStore, nil, nil, nil, nil, nil, nil, nil)
	tenantID := uuid.New()

	mockStore.On("DeleteTenant", mock.Anything, tenantID).Return(nil).Once()

	req := internalRequest(http.MethodDelete, "/internal/tenants/"+tenantID.String(), nil)
	w := serveInternal(g, mockStore, g.deleteTenant, req, map[string]string{"tenant_id": tenantID.String()})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	mockStore.AssertExpectations(t)
}

func TestRotateCredential(t *testing.T) {
	mockStore := new(store.MockStore)
	g := testGateway(mockStore, nil, nil, nil, nil, nil, nil, nil)
	tenantID := uuid.New()

	mockStore.On("RotateCredential", mock.Anything, tenantID, mock.Anything).Return(nil).Once()

	req := internalRequest(http.MethodPost, "/internal/tenants/"+tenantID.String()+"/rotate", nil)
	w := serveInternal(g, mockStore, g.rotateCredential, req, map[string]string{"tenant_id": tenantID.String()})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["api_key"] == "" || resp["api_key"] == nil {
		t.Error("expected a new raw api_key in the response")
	}

	mockStore.AssertExpectations(t)
}
