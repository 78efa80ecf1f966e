package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fisdash/fisdash/dashboard"
	"github.com/fisdash/fisdash/datasource"
	"github.com/fisdash/fisdash/fis"
	"github.com/fisdash/fisdash/query"
	"github.com/fisdash/fisdash/upload"
)

// invalidationTimeout bounds the post-upload cache refresh. The upload
// itself has already succeeded at this point.
const invalidationTimeout = 30 * time.Second

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Logger.Error("encoding response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleList serves GET /api/fisler. Filter values are validated
// before any query runs; a bad filter is the caller's error, not a
// fetch failure.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := dashboard.Filters{
		Search:    q.Get("search"),
		DateFrom:  q.Get("dateFrom"),
		DateTo:    q.Get("dateTo"),
		MinAmount: q.Get("minAmount"),
		MaxAmount: q.Get("maxAmount"),
		RecordNo:  q.Get("fisNo"),
	}
	if err := filters.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	params := filters.Apply(query.Params{
		Page:      page,
		Limit:     limit,
		SortBy:    fis.SortField(q.Get("sortBy")),
		SortOrder: fis.SortOrder(q.Get("sortOrder")),
	})

	res, err := s.deps.Source.FetchList(r.Context(), params)
	if err != nil {
		s.deps.Logger.Error("list query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "fetching receipts failed")
		return
	}

	for _, l := range pageLinks(params, res) {
		w.Header().Add("Link", l)
	}
	s.respondJSON(w, http.StatusOK, res)
}

// pageLinks builds RFC 5988 navigation links for the surrounding pages.
func pageLinks(params query.Params, res *fis.PaginatedResult[fis.Fis]) []string {
	link := func(page int, rel string) string {
		p := params
		p.Page = page
		return fmt.Sprintf(`</api/fisler?%s>; rel=%q`, p.Values().Encode(), rel)
	}

	var links []string
	if res.HasPrevPage {
		links = append(links, link(res.CurrentPage-1, "prev"))
	}
	if res.HasNextPage {
		links = append(links, link(res.CurrentPage+1, "next"))
	}
	return links
}

// handleGet serves GET /api/fisler/{id}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := s.deps.Records.FetchByID(r.Context(), id)
	if errors.Is(err, datasource.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "receipt not found")
		return
	}
	if err != nil {
		s.deps.Logger.Error("record lookup failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "fetching receipt failed")
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

// handleStats serves GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Source.FetchStats(r.Context())
	if err != nil {
		s.deps.Logger.Error("stats query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "fetching statistics failed")
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

// handleStatCards serves GET /api/stats/cards: the same aggregate as
// /api/stats, projected into the ordered, locale-formatted card list.
func (s *Server) handleStatCards(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Source.FetchStats(r.Context())
	if err != nil {
		s.deps.Logger.Error("stats query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "fetching statistics failed")
		return
	}
	s.respondJSON(w, http.StatusOK, dashboard.StatCards(stats))
}

// handleUpload serves POST /api/upload-file: it forwards the image to
// the extraction webhook and, on success, invalidates the list and
// statistics caches so every open view refreshes.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Uploader == nil {
		s.uploadError(w, upload.NewError(upload.CodeConfiguration,
			"upload webhook is not configured", ""))
		return
	}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.uploadError(w, upload.NewError(upload.CodeInvalidContentType,
			"request must be multipart/form-data", r.Header.Get("Content-Type")))
		return
	}

	if err := r.ParseMultipartForm(upload.MaxFileSize + (1 << 20)); err != nil {
		s.uploadError(w, upload.NewError(upload.CodeFormParse,
			"parsing upload form failed", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.uploadError(w, upload.NewError(upload.CodeNoFile, "no file provided", ""))
		return
	}
	defer file.Close()

	result, err := s.deps.Uploader.Process(r.Context(), upload.Upload{
		Reader:      file,
		FileName:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		var uerr *upload.Error
		if !errors.As(err, &uerr) {
			uerr = upload.NewError(upload.CodeInternal, "upload failed", err.Error())
		}
		s.uploadError(w, uerr)
		return
	}

	// The webhook accepted the file. If the client is already gone,
	// skip the cache refresh; the next subscriber revalidates anyway.
	if r.Context().Err() == nil && s.deps.Invalidator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), invalidationTimeout)
		defer cancel()
		if err := s.deps.Invalidator.OnWriteCompleted(ctx); err != nil {
			s.deps.Logger.Warn("post-upload invalidation incomplete", zap.Error(err))
		}
	}

	s.recordUpload("success")
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"uploadId": result.UploadID,
		"message":  result.Message,
	})
}

func (s *Server) uploadError(w http.ResponseWriter, uerr *upload.Error) {
	s.deps.Logger.Warn("upload rejected",
		zap.String("code", string(uerr.Code)),
		zap.String("details", uerr.Details),
	)
	s.recordUpload(string(uerr.Code))
	s.respondJSON(w, uerr.HTTPStatus(), uerr)
}

func (s *Server) recordUpload(outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.UploadCompleted(outcome)
	}
}
