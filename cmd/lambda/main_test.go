package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/septafinder/backend-go/internal/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mu sync.Mutex // Protect lambdaStart in tests
)

func TestMain(m *testing.M) {
	// Set up test environment
	if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
		return
	}
	if err := os.Setenv("ENV", "test"); err != nil {
		return
	}

	os.Exit(m.Run())
}

// resetService restores the package state after a test
func resetService(t *testing.T) {
	originalAdapter := adapter
	originalInit := initHandler
	t.Cleanup(func() {
		adapter = originalAdapter
		initHandler = originalInit
		setupOnce = sync.Once{}
	})
	adapter = nil
	setupOnce = sync.Once{}
}

func echoAdapter() *handler.LambdaAdapter {
	return handler.NewLambdaAdapter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}), nil)
}

func TestInitializeService(t *testing.T) {
	resetService(t)

	calls := 0
	initHandler = func(context.Context) (*handler.LambdaAdapter, error) {
		calls++
		return echoAdapter(), nil
	}

	require.NoError(t, InitializeService())
	require.NoError(t, InitializeService())
	assert.Equal(t, 1, calls)
	assert.NotNil(t, adapter)
}

func TestInitializeServiceFailure(t *testing.T) {
	resetService(t)

	initHandler = func(context.Context) (*handler.LambdaAdapter, error) {
		return nil, errors.New("dataset missing")
	}

	err := InitializeService()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset missing")
	assert.Nil(t, adapter)
}

func TestDefaultInitHandlerRequiresSecret(t *testing.T) {
	t.Setenv("SECRET_KEY", "")

	h, err := defaultInitHandler(context.Background())

	assert.Error(t, err)
	assert.Nil(t, h)
}

func TestHandleRequest(t *testing.T) {
	resetService(t)

	tests := []struct {
		name           string
		adapter        *handler.LambdaAdapter
		request        events.APIGatewayProxyRequest
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "root",
			adapter:        echoAdapter(),
			request:        events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/"},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"message":"ok"}`,
		},
		{
			name:           "unknown path",
			adapter:        echoAdapter(),
			request:        events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/stations"},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"detail":"Not Found"}`,
		},
		{
			name:           "not initialized",
			adapter:        nil,
			request:        events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/"},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"detail":"Internal Server Error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter = tt.adapter

			response, err := handleRequest(context.Background(), tt.request)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, response.StatusCode)
			assert.JSONEq(t, tt.expectedBody, response.Body)
		})
	}
}

func TestLambdaStart(t *testing.T) {
	resetService(t)
	initHandler = func(context.Context) (*handler.LambdaAdapter, error) {
		return echoAdapter(), nil
	}

	// Save original lambda.Start function
	mu.Lock()
	originalStartFn := lambdaStart
	var startCalled bool
	lambdaStart = func(h interface{}) {
		mu.Lock()
		startCalled = true
		mu.Unlock()

		// Verify the handler has the API Gateway proxy signature
		handlerType := reflect.TypeOf(h)
		contextInterface := reflect.TypeOf((*context.Context)(nil)).Elem()
		errorInterface := reflect.TypeOf((*error)(nil)).Elem()

		if handlerType.Kind() != reflect.Func ||
			handlerType.NumIn() != 2 || handlerType.NumOut() != 2 ||
			!handlerType.In(0).Implements(contextInterface) ||
			handlerType.In(1) != reflect.TypeOf(events.APIGatewayProxyRequest{}) ||
			handlerType.Out(0) != reflect.TypeOf(events.APIGatewayProxyResponse{}) ||
			!handlerType.Out(1).Implements(errorInterface) {
			t.Error("Handler does not match expected signature")
		}
	}
	mu.Unlock()

	defer func() {
		mu.Lock()
		lambdaStart = originalStartFn
		mu.Unlock()
	}()

	go main()

	// Give main() a moment to run
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	wasStartCalled := startCalled
	mu.Unlock()

	assert.True(t, wasStartCalled, "Lambda start was not called")
}
