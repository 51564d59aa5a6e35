package http

import (
	"encoding/json"
	"errors"
	"github.com/go-playground/validator/v10"
	"net/http"
	"stall-ticket/common/errs"
	"stall-ticket/model"
)

func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func writeErrorResponse(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")

	var message string
	var data any
	if httpErr, ok := err.(*errs.HttpError); ok {
		message = httpErr.Message
		data = httpErr.Data
		w.WriteHeader(httpErr.Code)
	} else if validationErr, ok := err.(validator.ValidationErrors); ok {
		message = "Validation failed"
		w.WriteHeader(http.StatusBadRequest)

		validationErrors := make(map[string]string)
		for _, fieldErr := range validationErr {
			fieldName := fieldErr.Field()
			validationErrors[fieldName] = fieldErr.Tag()
		}

		data = validationErrors
	} else if code, businessMessage, ok := businessRejection(err); ok {
		message = businessMessage
		w.WriteHeader(code)
	} else {
		message = "Internal Server Error"
		w.WriteHeader(500)
	}

	errorResponse := model.ErrorResponse{Error: message, Data: data}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// businessRejection maps allocator rejections to their user-facing status.
// Store and broker failures fall through to 500 on purpose.
func businessRejection(err error) (int, string, bool) {
	switch {
	case errors.Is(err, errs.ErrSlotNotFound):
		return http.StatusNotFound, "Slot not found", true
	case errors.Is(err, errs.ErrTicketNotFound):
		return http.StatusNotFound, "Ticket not found", true
	case errors.Is(err, errs.ErrSlotClosed):
		return http.StatusConflict, "Slot closed", true
	case errors.Is(err, errs.ErrSlotFull):
		return http.StatusConflict, "Slot full", true
	case errors.Is(err, errs.ErrIssuanceSuspended):
		return http.StatusLocked, "Issuance suspended", true
	}

	return 0, "", false
}
