package handlerUtil

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"TryOnService/internal/api/tryon"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func TestHandle(t *testing.T) {
	tests := []struct {
		name       string
		requestID  string
		err        error
		wantStatus int
		wantCode   string
		wantTrace  string
	}{
		{
			name:       "domain error",
			requestID:  "req-1",
			err:        fmt.Errorf("open: %w", tryon.ErrMissingModelURL),
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "MISSING_MODEL_URL",
		},
		{
			name:       "fiber error",
			requestID:  "req-2",
			err:        fiber.NewError(fiber.StatusUnprocessableEntity, "bad body"),
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "unexpected error keeps request id",
			requestID:  "req-3",
			err:        errors.New("boom"),
			wantStatus: fiber.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantTrace:  "req-3",
		},
		{
			name:       "unexpected error without request id",
			requestID:  "unknown",
			err:        errors.New("boom"),
			wantStatus: fiber.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantTrace:  "uuid",
		},
	}

	l := logrus.New()
	l.SetOutput(io.Discard)
	h := New(l)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return h.Handle(c, tt.requestID, tt.err, "/", "test")
			})

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}

			switch tt.wantTrace {
			case "":
				if body.TraceID != "" {
					t.Errorf("trace id = %q, want none", body.TraceID)
				}
			case "uuid":
				if _, err := uuid.Parse(body.TraceID); err != nil {
					t.Errorf("trace id = %q, want a uuid", body.TraceID)
				}
			default:
				if body.TraceID != tt.wantTrace {
					t.Errorf("trace id = %q, want %q", body.TraceID, tt.wantTrace)
				}
			}
			if tt.wantStatus == fiber.StatusInternalServerError && body.Error != "An unexpected error occurred" {
				t.Errorf("error = %q, internal details leaked", body.Error)
			}
		})
	}
}
