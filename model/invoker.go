package model

import "context"

// OperationInvoker is the unified interface for backend invocation.
type OperationInvoker interface {
	// Invoke calls the backend operation described by the binding with the given input.
	Invoke(ctx context.Context, rctx *RequestContext, binding OperationBinding, input InvocationInput) (InvocationResult, error)

	// Supports returns true if this invoker can handle the given binding type.
	Supports(binding OperationBinding) bool
}

// InvocationInput is the constructed backend request.
type InvocationInput struct {
	PathParams  map[string]string `json:"path_params,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// InvocationResult is the backend response.
type InvocationResult struct {
	StatusCode int               `json:"status_code"`
	Body       any               `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// PageRequest selects one page of a list.
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
