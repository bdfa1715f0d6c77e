package invoker

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/pitabwire/backoffice/model"
)

func staticUnits() SDKHandlerFunc {
	return SDKHandlerFunc{
		HandlerName: "static-units",
		Fn: func(_ context.Context, _ *model.RequestContext, _ model.InvocationInput) (model.InvocationResult, error) {
			return model.InvocationResult{
				StatusCode: http.StatusOK,
				Body: []any{
					map[string]any{"id": "u1", "name": "North"},
					map[string]any{"id": "u3", "name": "South"},
				},
			}, nil
		},
	}
}

func TestSDKHandlerRegistry_RegisterAndGet(t *testing.T) {
	r := NewSDKHandlerRegistry()
	r.Register(staticUnits())

	h, ok := r.Get("static-units")
	if !ok {
		t.Fatal("Get(static-units) not found")
	}
	if h.Name() != "static-units" {
		t.Errorf("Name() = %q, want static-units", h.Name())
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}
}

func TestSDKHandlerRegistry_duplicatePanics(t *testing.T) {
	r := NewSDKHandlerRegistry()
	r.Register(staticUnits())

	defer func() {
		if recover() == nil {
			t.Error("second Register did not panic")
		}
	}()
	r.Register(staticUnits())
}

func TestSDKHandlerRegistry_Names(t *testing.T) {
	r := NewSDKHandlerRegistry()
	for _, name := range []string{"team-leads", "industries", "static-units"} {
		r.Register(SDKHandlerFunc{HandlerName: name})
	}
	want := []string{"industries", "static-units", "team-leads"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestSDKOperationInvoker_Supports(t *testing.T) {
	inv := NewSDKOperationInvoker(NewSDKHandlerRegistry())
	if !inv.Supports(model.OperationBinding{Type: "sdk"}) {
		t.Error("Supports(sdk) = false, want true")
	}
	if inv.Supports(model.OperationBinding{Type: "openapi"}) {
		t.Error("Supports(openapi) = true, want false")
	}
}

func TestSDKOperationInvoker_Invoke_success(t *testing.T) {
	r := NewSDKHandlerRegistry()
	r.Register(staticUnits())
	inv := NewSDKOperationInvoker(r)

	result, err := inv.Invoke(context.Background(), nil,
		model.OperationBinding{Type: "sdk", Handler: "static-units"}, model.InvocationInput{})
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	items, ok := result.Body.([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("Body = %v, want 2 items", result.Body)
	}
}

func TestSDKOperationInvoker_Invoke_handlerNotFound(t *testing.T) {
	inv := NewSDKOperationInvoker(NewSDKHandlerRegistry())
	_, err := inv.Invoke(context.Background(), nil,
		model.OperationBinding{Type: "sdk", Handler: "missing"}, model.InvocationInput{})
	if err == nil {
		t.Fatal("expected error for missing handler")
	}
}

func TestSDKOperationInvoker_Invoke_receivesScopeAndContext(t *testing.T) {
	r := NewSDKHandlerRegistry()
	r.Register(SDKHandlerFunc{
		HandlerName: "employees",
		Fn: func(_ context.Context, rctx *model.RequestContext, input model.InvocationInput) (model.InvocationResult, error) {
			if rctx == nil || rctx.TenantID != "tenant-7" {
				return model.InvocationResult{}, errors.New("tenant not forwarded")
			}
			if input.QueryParams["salesUnitId"] != "u3" {
				return model.InvocationResult{}, errors.New("scope not forwarded")
			}
			return model.InvocationResult{StatusCode: http.StatusOK}, nil
		},
	})
	inv := NewSDKOperationInvoker(r)

	_, err := inv.Invoke(context.Background(), &model.RequestContext{TenantID: "tenant-7"},
		model.OperationBinding{Type: "sdk", Handler: "employees"},
		model.InvocationInput{QueryParams: map[string]string{"salesUnitId": "u3"}})
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
}

func TestSDKOperationInvoker_Invoke_handlerError(t *testing.T) {
	r := NewSDKHandlerRegistry()
	r.Register(SDKHandlerFunc{
		HandlerName: "broken",
		Fn: func(context.Context, *model.RequestContext, model.InvocationInput) (model.InvocationResult, error) {
			return model.InvocationResult{}, errors.New("handler exploded")
		},
	})
	inv := NewSDKOperationInvoker(r)

	_, err := inv.Invoke(context.Background(), nil,
		model.OperationBinding{Type: "sdk", Handler: "broken"}, model.InvocationInput{})
	if err == nil || err.Error() != "handler exploded" {
		t.Errorf("error = %v, want handler exploded", err)
	}
}

func TestSDKOperationInvoker_worksWithRegistry(t *testing.T) {
	handlers := NewSDKHandlerRegistry()
	handlers.Register(staticUnits())

	registry := NewRegistry()
	registry.Register(NewSDKOperationInvoker(handlers))

	result, err := registry.Invoke(context.Background(), nil,
		model.OperationBinding{Type: "sdk", Handler: "static-units"}, model.InvocationInput{})
	if err != nil {
		t.Fatalf("Registry.Invoke error: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
}
