// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package respond is the single place that turns a result — rows, an error,
or a no-content mutation — into bytes on the wire, in whichever format the
request negotiated.

Architecture:

  - Error: every error that reaches here is coerced to an [apperr.AppError]
    and written as the flat `{code,message,details,hint}` envelope.
  - Rows: dispatches JSON array / single-object / CSV / Arrow encoding and
    sets the `Content-Range` header that accompanies every table response.

This package eliminates per-handler response-format branching.
*/
package respond

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/taibuivan/sqlrest/internal/arrowenc"
	"github.com/taibuivan/sqlrest/internal/platform/apperr"
	"github.com/taibuivan/sqlrest/internal/platform/constants"
	"github.com/taibuivan/sqlrest/internal/platform/ctxutil"
	"github.com/taibuivan/sqlrest/internal/queryopts"
	"github.com/taibuivan/sqlrest/internal/sqlrow"
)

// ErrorEnvelope is the flat JSON error body every failed request returns.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// Error converts any Go error into the standardized JSON error response,
// logging 5xx failures (and any error that arrived un-wrapped) for
// operator visibility before the client-safe envelope goes out.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appError := apperr.As(err)
	if appError == nil {
		ctxutil.GetLogger(r.Context()).ErrorContext(r.Context(), "unhandled_error_wrapped",
			slog.String("error", err.Error()),
			slog.String("request_id", ctxutil.GetRequestID(r.Context())),
		)
		appError = apperr.Internal(err)
	}

	if appError.HTTPStatus >= http.StatusInternalServerError {
		ctxutil.GetLogger(r.Context()).ErrorContext(r.Context(), "api_server_error",
			slog.String("code", appError.Code),
			slog.String("request_id", ctxutil.GetRequestID(r.Context())),
			slog.Any("cause", appError.Cause),
		)
	}

	writeJSON(w, appError.HTTPStatus, ErrorEnvelope{
		Code:    appError.Code,
		Message: appError.Message,
		Details: appError.Details,
		Hint:    appError.Hint,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(constants.HeaderContentType, "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes payload as a 200 JSON response — used by the ambient
// health/readiness probes, which have no row data to run through [Rows].
func OK(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, payload)
}

// NoContent writes a 204 response with no body — the `Prefer: return=
// minimal` mutation response, and any GET-adjacent path with nothing to
// report.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// HeadersOnly writes an empty body at status with the given Content-Range
// — the `Prefer: return=headers-only` mutation response.
func HeadersOnly(w http.ResponseWriter, status int, contentRange string) {
	if contentRange != "" {
		w.Header().Set(constants.HeaderContentRange, contentRange)
	}
	w.WriteHeader(status)
}

// Rows encodes rows per format and writes the response with the given
// status and Content-Range. allColumns is the catalog's full column list,
// used as the CSV header when rows is empty. Returns an error (already
// NOT written to w) when format is single-object JSON and rows doesn't
// contain exactly one row — callers must check and call [Error] themselves
// since the decision belongs to the request, not to this function.
func Rows(w http.ResponseWriter, status int, contentRange string, format queryopts.Format, allColumns []string, rows []sqlrow.Row) error {
	if format == queryopts.FormatSingleObjectJSON && len(rows) != 1 {
		return apperr.SingleObjectExpected(len(rows))
	}

	if contentRange != "" {
		w.Header().Set(constants.HeaderContentRange, contentRange)
	}

	switch format {
	case queryopts.FormatSingleObjectJSON:
		w.Header().Set(constants.HeaderContentType, "application/vnd.pgrst.object+json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(rows[0])
		return nil

	case queryopts.FormatCSV:
		w.Header().Set(constants.HeaderContentType, "text/csv; charset=utf-8")
		w.WriteHeader(status)
		return writeCSV(w, allColumns, rows)

	case queryopts.FormatArrowIPCStream:
		columns := rowColumns(allColumns, rows)
		body, err := arrowenc.EncodeIPCStream(columns, rows)
		if err != nil {
			return apperr.Internal(err)
		}
		w.Header().Set(constants.HeaderContentType, "application/vnd.apache.arrow.stream")
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return nil

	case queryopts.FormatArrowJSON:
		columns := rowColumns(allColumns, rows)
		body, err := arrowenc.EncodeArrowJSON(columns, rows)
		if err != nil {
			return apperr.Internal(err)
		}
		w.Header().Set(constants.HeaderContentType, "application/vnd.apache.arrow+json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return nil

	default:
		w.Header().Set(constants.HeaderContentType, "application/json; charset=utf-8")
		w.WriteHeader(status)
		return json.NewEncoder(w).Encode(rows)
	}
}

// rowColumns picks the CSV/Arrow header: the first row's own column order,
// or the full catalog column list when the result set is empty.
func rowColumns(allColumns []string, rows []sqlrow.Row) []string {
	if len(rows) == 0 {
		return allColumns
	}
	return rows[0].Columns()
}

// writeCSV renders rows with columns as the header row; nulls become the
// empty field, everything else is written raw and left to csv.Writer's
// standard quoting rules.
func writeCSV(w http.ResponseWriter, allColumns []string, rows []sqlrow.Row) error {
	columns := rowColumns(allColumns, rows)
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			v, ok := row.Get(col)
			if !ok || v == nil {
				record[i] = ""
				continue
			}
			if s, isStr := v.(string); isStr {
				record[i] = s
				continue
			}
			record[i] = toCSVField(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toCSVField(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var unquoted string
		if err := json.Unmarshal(b, &unquoted); err == nil {
			return unquoted
		}
	}
	return s
}
