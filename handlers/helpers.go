package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dosada05/the-match/services"
	"github.com/go-chi/chi/v5"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case err.Error() == "http: request body too large":
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.Error("failed to write error response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	errorResponse(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request) {
	errorResponse(w, r, http.StatusNotFound, "the requested resource could not be found")
}

func conflictResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusConflict, message)
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, message)
}

func forbiddenResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusForbidden, message)
}

func unprocessableResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
}

func getIDFromURL(r *http.Request, paramName string) (int, error) {
	idStr := chi.URLParam(r, paramName)
	if idStr == "" {
		idStr = chi.URLParam(r, "id")
		if idStr == "" {
			return 0, fmt.Errorf("missing %s or id in URL path", paramName)
		}
	}

	id, err := strconv.Atoi(idStr)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s URL parameter: must be a positive integer", paramName)
	}
	return id, nil
}

// mapServiceErrorToHTTP translates service layer sentinel errors to HTTP
// responses. Unknown errors become a 500 with the details logged, never
// echoed to the client.
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrMatchNotFound),
		errors.Is(err, services.ErrGameNotFound),
		errors.Is(err, services.ErrParticipantNotFound),
		errors.Is(err, services.ErrTeamNotFound),
		errors.Is(err, services.ErrInviteNotFound):
		notFoundResponse(w, r)

	case errors.Is(err, services.ErrMatchTitleConflict),
		errors.Is(err, services.ErrTeamNameConflict),
		errors.Is(err, services.ErrDuplicateApplication),
		errors.Is(err, services.ErrParticipantNotPending),
		errors.Is(err, services.ErrMatchFull),
		errors.Is(err, services.ErrMatchLocked),
		errors.Is(err, services.ErrGameCompleted),
		errors.Is(err, services.ErrTeamInUse),
		errors.Is(err, services.ErrMatchInUse):
		conflictResponse(w, r, err.Error())

	case errors.Is(err, services.ErrTieNotAllowed),
		errors.Is(err, services.ErrGameNotReady),
		errors.Is(err, services.ErrMatchUpdateNotAllowed),
		errors.Is(err, services.ErrMatchDeletionNotAllowed):
		unprocessableResponse(w, r, err)

	case errors.Is(err, services.ErrNoOpTransition),
		errors.Is(err, services.ErrInvalidStatusTransition),
		errors.Is(err, services.ErrPreconditionNotMet),
		errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrMatchTitleRequired),
		errors.Is(err, services.ErrMatchInvalidFormat),
		errors.Is(err, services.ErrMatchInvalidStatus),
		errors.Is(err, services.ErrMatchInvalidCapacity),
		errors.Is(err, services.ErrMatchInvalidDateRange),
		errors.Is(err, services.ErrMatchInvalidDeadline),
		errors.Is(err, services.ErrFormatUnsupported),
		errors.Is(err, services.ErrTeamNameRequired),
		errors.Is(err, services.ErrScoresRequired),
		errors.Is(err, services.ErrInviteExpired):
		badRequestResponse(w, r, err)

	case errors.Is(err, services.ErrForbiddenOperation),
		errors.Is(err, services.ErrCaptainActionForbidden),
		errors.Is(err, services.ErrRegistrationClosed):
		forbiddenResponse(w, r, err.Error())

	default:
		serverErrorResponse(w, r, err)
	}
}
