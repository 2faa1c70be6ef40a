package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/api"
)

type RequestCreator func(ctx context.Context, method, url string, body io.Reader) (*http.Request, error)

// LambdaAdapter serves API Gateway proxy events through an http.Handler
type LambdaAdapter struct {
	handler        http.Handler
	requestCreator RequestCreator
}

func defaultRequestCreator(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, url, body)
}

func NewLambdaAdapter(h http.Handler, requestCreator RequestCreator) *LambdaAdapter {
	if requestCreator == nil {
		requestCreator = defaultRequestCreator
	}
	return &LambdaAdapter{
		handler:        h,
		requestCreator: requestCreator,
	}
}

func (a *LambdaAdapter) HandleRequest(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if event.HTTPMethod == "" {
		event.HTTPMethod = http.MethodGet
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return api.LambdaError("Invalid request body", http.StatusBadRequest), nil
		}
		body = decoded
	}

	req, err := a.requestCreator(ctx, event.HTTPMethod, requestURL(event), bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("path", event.Path).Msg("Failed to create request")
		return api.LambdaError(api.MessageInternal, http.StatusInternalServerError), nil
	}

	for key, values := range event.MultiValueHeaders {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for key, value := range event.Headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	if event.RequestContext.Identity.SourceIP != "" {
		req.RemoteAddr = event.RequestContext.Identity.SourceIP + ":0"
	}

	// Create response writer to capture output
	w := &responseWriter{
		headers: make(http.Header),
		body:    &bytes.Buffer{},
		code:    http.StatusOK,
	}

	a.handler.ServeHTTP(w, req)

	resp := events.APIGatewayProxyResponse{
		StatusCode:        w.code,
		Headers:           make(map[string]string, len(w.headers)),
		MultiValueHeaders: make(map[string][]string, len(w.headers)),
		Body:              w.body.String(),
	}
	for key, values := range w.headers {
		if len(values) > 0 {
			resp.Headers[key] = values[0]
		}
		resp.MultiValueHeaders[key] = values
	}
	return resp, nil
}

func requestURL(event events.APIGatewayProxyRequest) string {
	path := event.Path
	if path == "" {
		path = "/"
	}

	query := url.Values{}
	for key, values := range event.MultiValueQueryStringParameters {
		for _, v := range values {
			query.Add(key, v)
		}
	}
	for key, value := range event.QueryStringParameters {
		if !query.Has(key) {
			query.Set(key, value)
		}
	}

	u := url.URL{Scheme: "http", Host: "localhost", Path: path, RawQuery: query.Encode()}
	return u.String()
}

// responseWriter implements http.ResponseWriter
type responseWriter struct {
	headers     http.Header
	body        *bytes.Buffer
	code        int
	wroteHeader bool
}

func (w *responseWriter) Header() http.Header {
	return w.headers
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.code = statusCode
	w.wroteHeader = true
}
