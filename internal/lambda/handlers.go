package lambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
	"github.com/AlieInmar1/pbtoado-sub002/internal/metrics"
	"github.com/AlieInmar1/pbtoado-sub002/internal/server/handlers"
)

// HandleWebhook serves the ProductBoard webhook behind an API Gateway HTTP
// API or a function URL, with the same semantics as the HTTP server.
func HandleWebhook(ctx context.Context, wh Webhook, logger *slog.Logger, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch req.RequestContext.HTTP.Method {
	case http.MethodOptions:
		hdr := http.Header{}
		handlers.SetCORSHeaders(hdr)
		return response(http.StatusNoContent, flatten(hdr), ""), nil
	case http.MethodGet:
		body := handlers.LivenessMessage
		if token := req.QueryStringParameters["validationToken"]; token != "" {
			body = token
		}
		return response(http.StatusOK, map[string]string{"Content-Type": "text/plain; charset=utf-8"}, body), nil
	case http.MethodPost:
	default:
		return jsonError(http.StatusMethodNotAllowed, "method not allowed"), nil
	}

	if err := wh.Authorize(handlers.PresentedSecret(header(req.Headers, "Authorization"))); err != nil {
		metrics.WebhookRejected.Add(1)
		logger.Warn("webhook rejected", "error", err, "source_ip", req.RequestContext.HTTP.SourceIP)
		return jsonError(http.StatusUnauthorized, "unauthorized"), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return jsonError(http.StatusBadRequest, "invalid body encoding"), nil
		}
		body = decoded
	}

	res, err := wh.Handle(ctx, body)
	if err != nil {
		logger.Error("webhook handling aborted", "error", err)
		return jsonError(http.StatusServiceUnavailable, handlers.HandleErrorMessage(err)), nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}
	return response(http.StatusOK, map[string]string{"Content-Type": "application/json"}, string(data)), nil
}

// HandleSync runs one bulk sync for a scheduled invocation. A failed run is
// returned as an error so the invocation is marked failed.
func HandleSync(ctx context.Context, s Syncer, logger *slog.Logger, ev SyncEvent) (bulksync.Result, error) {
	res, err := s.Run(ctx, bulksync.Request{ForceFullSync: ev.ForceFullSync})
	if err != nil {
		return res, err
	}
	logger.Info("bulk sync complete", "success", res.Success, "message", res.Message)
	if !res.Success {
		return res, &SyncFailedError{Message: res.Message}
	}
	return res, nil
}

// SyncFailedError reports a bulk sync whose stages failed with nothing cached.
type SyncFailedError struct {
	Message string
}

func (e *SyncFailedError) Error() string { return "bulk sync failed: " + e.Message }

// header finds a header case-insensitively; API Gateway lowercases names.
func header(h map[string]string, name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func response(status int, headers map[string]string, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{StatusCode: status, Headers: headers, Body: body}
}

func jsonError(status int, msg string) events.APIGatewayV2HTTPResponse {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return response(status, map[string]string{"Content-Type": "application/json"}, string(data))
}
