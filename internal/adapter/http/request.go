package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
)

const maxBodyBytes = 1 << 20

type trackClickRequest struct {
	UserID         string            `json:"userId" validate:"required,max=128"`
	StoreID        string            `json:"storeId" validate:"required,max=128"`
	OriginalURL    string            `json:"originalUrl" validate:"omitempty,url"`
	DestinationURL string            `json:"destinationUrl" validate:"required,http_url"`
	Source         string            `json:"source" validate:"omitempty,oneof=personal_channel group search ad direct inline referral"`
	SourceDetails  map[string]string `json:"sourceDetails"`
	UserAgent      string            `json:"userAgent"`
	IPAddress      string            `json:"ipAddress" validate:"omitempty,ip"`
	Country        string            `json:"country" validate:"omitempty,len=2"`
	DeviceType     string            `json:"deviceType" validate:"omitempty,max=32"`
}

func (req trackClickRequest) input() port.TrackClickInput {
	return port.TrackClickInput{
		UserID:         req.UserID,
		StoreID:        req.StoreID,
		OriginalURL:    req.OriginalURL,
		DestinationURL: req.DestinationURL,
		Source:         domain.TrafficSource(req.Source),
		SourceDetails:  req.SourceDetails,
		UserAgent:      req.UserAgent,
		IPAddress:      req.IPAddress,
		Country:        req.Country,
		DeviceType:     req.DeviceType,
	}
}

type redirectQuery struct {
	UserID string `validate:"required,max=128"`
	URL    string `validate:"required,http_url"`
	Source string `validate:"omitempty,oneof=personal_channel group search ad direct inline referral"`
}

type productRequest struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=0"`
}

type conversionWebhookRequest struct {
	OrderID          string           `json:"orderId" validate:"required,max=128"`
	ClickID          string           `json:"clickId" validate:"required,max=128"`
	UserID           string           `json:"userId" validate:"omitempty,max=128"`
	StoreID          string           `json:"storeId" validate:"omitempty,max=128"`
	OrderValue       float64          `json:"orderValue" validate:"gte=0"`
	Currency         string           `json:"currency" validate:"omitempty,len=3"`
	Commission       float64          `json:"commission" validate:"gte=0"`
	CommissionRate   float64          `json:"commissionRate" validate:"gte=0,lte=100"`
	Products         []productRequest `json:"products" validate:"omitempty,dive"`
	CustomerInfo     map[string]any   `json:"customerInfo"`
	Metadata         map[string]any   `json:"metadata"`
	ConversionType   string           `json:"conversionType" validate:"omitempty,oneof=purchase signup subscription lead install"`
	AttributionModel string           `json:"attributionModel" validate:"omitempty,oneof=last_click first_click linear position_based time_decay"`
	ConvertedAt      *time.Time       `json:"convertedAt"`
}

func (req conversionWebhookRequest) payload() domain.ConversionPayload {
	p := domain.ConversionPayload{
		OrderID:          req.OrderID,
		ClickID:          req.ClickID,
		UserID:           req.UserID,
		StoreID:          req.StoreID,
		OrderValue:       req.OrderValue,
		Currency:         req.Currency,
		Commission:       req.Commission,
		CommissionRate:   req.CommissionRate,
		CustomerInfo:     req.CustomerInfo,
		Metadata:         req.Metadata,
		ConversionType:   domain.ConversionType(req.ConversionType),
		AttributionModel: domain.AttributionModel(req.AttributionModel),
		ConvertedAt:      req.ConvertedAt,
	}
	for _, pr := range req.Products {
		p.Products = append(p.Products, domain.Product(pr))
	}
	return p
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=512"`
}

type refundRequest struct {
	Percent *float64 `json:"percent" validate:"omitempty,gt=0,lte=100"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// decodeBody reads a JSON body into dst and validates it. An empty body is
// accepted when allowEmpty is set.
func (h *Handler) decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return fmt.Errorf("%w: invalid JSON: %v", domain.ErrValidation, err)
		}
	}
	return h.validateStruct(dst)
}

func (h *Handler) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as JSON. Server-side failures are logged and their
// details withheld from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" error",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		msg = http.StatusText(status)
	}
	writeJSON(w, h.logger, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// encoding should rarely fail; the status line is already out
		logger.Error("encode response error", slog.Any("error", err))
	}
}
