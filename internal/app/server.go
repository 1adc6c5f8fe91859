// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bep/geotag"
	"github.com/bep/geotag/geocode"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const (
	headerRequestID = "X-Request-ID"
	headerLatitude  = "X-GPS-Latitude"
	headerLongitude = "X-GPS-Longitude"

	// Form values and small files are kept in memory, larger files spill to disk.
	multipartMemory = 8 << 20
)

type serverOptions struct {
	AllowedOrigins []string
	MaxUploadSize  int64
}

type server struct {
	logger   logrus.FieldLogger
	pipeline *geotag.Pipeline
	geocoder geocode.Geocoder
	metrics  *metrics
	opts     serverOptions
	decoder  *schema.Decoder
	mux      *http.ServeMux
	handler  http.Handler
}

type processImageForm struct {
	Address string `schema:"address"`
	Format  string `schema:"format"`
}

type coordinatesForm struct {
	Address string `schema:"address"`
}

type coordinatesResponse struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// httpError is returned to clients as {"detail": "..."}.
type httpError struct {
	status int
	detail string
}

func (e *httpError) Error() string {
	return e.detail
}

func newHTTPError(status int, format string, args ...any) *httpError {
	return &httpError{status: status, detail: fmt.Sprintf(format, args...)}
}

func newServer(logger logrus.FieldLogger, p *geotag.Pipeline, g geocode.Geocoder, reg prometheus.Registerer, gatherer prometheus.Gatherer, opts serverOptions) *server {
	m := newMetrics(reg)

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &server{
		logger:   logger,
		pipeline: p,
		geocoder: m.instrumentGeocoder(g),
		metrics:  m,
		opts:     opts,
		decoder:  decoder,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /process-image", s.handleProcessImage)
	s.mux.HandleFunc("POST /get-coordinates", s.handleGetCoordinates)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	corsOpts := cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", headerRequestID},
		ExposedHeaders:   []string{"Content-Disposition", headerLatitude, headerLongitude, headerRequestID},
		AllowCredentials: true,
		MaxAge:           600,
		// Answer preflights here, the mux has no OPTIONS routes.
		OptionsSuccessStatus: http.StatusNoContent,
	}
	if len(opts.AllowedOrigins) == 0 {
		// An empty list means no cross-origin callers, not all of them.
		corsOpts.AllowOriginFunc = func(string) bool { return false }
	}
	s.handler = cors.New(corsOpts).Handler(s.mux)

	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(headerRequestID)
	if _, err := uuid.Parse(requestID); err != nil {
		requestID = uuid.NewString()
	}
	w.Header().Set(headerRequestID, requestID)

	s.handler.ServeHTTP(w, r)
}

func (s *server) requestLogger(w http.ResponseWriter) logrus.FieldLogger {
	return s.logger.WithField("request_id", w.Header().Get(headerRequestID))
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":    "geotag",
		"version": Version,
		"status":  "running",
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(w)
	format := "unknown"

	err := func() error {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return newHTTPError(http.StatusRequestEntityTooLarge, "Upload exceeds %d bytes.", maxErr.Limit)
			}
			return newHTTPError(http.StatusBadRequest, "Invalid multipart form: %v", err)
		}
		defer r.MultipartForm.RemoveAll()

		var form processImageForm
		if err := s.decoder.Decode(&form, r.MultipartForm.Value); err != nil {
			return newHTTPError(http.StatusBadRequest, "Invalid form: %v", err)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			return newHTTPError(http.StatusBadRequest, "Missing image file.")
		}
		defer file.Close()
		if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
			return newHTTPError(http.StatusBadRequest, "Invalid file type. Please upload an image file.")
		}
		src, err := io.ReadAll(file)
		if err != nil {
			return err
		}
		if len(src) == 0 {
			return newHTTPError(http.StatusBadRequest, "Empty file uploaded.")
		}

		if strings.TrimSpace(form.Address) == "" {
			return newHTTPError(http.StatusBadRequest, "Address cannot be empty.")
		}

		target, err := geotag.ParseImageFormat(form.Format)
		if err != nil {
			return newHTTPError(http.StatusBadRequest, "Unsupported format %q. Use one of jpeg, png or webp.", form.Format)
		}
		format = target.Extension()

		place, err := s.resolve(r, form.Address)
		if err != nil {
			return err
		}
		c := place.Coordinate

		res, err := s.pipeline.Run(src, c, target)
		if err != nil {
			if geotag.IsCallerError(err) {
				return newHTTPError(http.StatusBadRequest, "%v", err)
			}
			return err
		}

		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(form.Format), "."))
		h := w.Header()
		h.Set("Content-Type", res.Format.MIMEType())
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputName(header.Filename, ext)))
		h.Set("Content-Length", strconv.Itoa(len(res.Data)))
		h.Set(headerLatitude, strconv.FormatFloat(c.Latitude, 'f', -1, 64))
		h.Set(headerLongitude, strconv.FormatFloat(c.Longitude, 'f', -1, 64))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(res.Data); err != nil {
			logger.WithError(err).Debug("Writing response")
		}

		logger.WithFields(logrus.Fields{
			"format":    res.Format,
			"bytes":     len(res.Data),
			"latitude":  c.Latitude,
			"longitude": c.Longitude,
		}).Info("Processed image")
		return nil
	}()

	s.metrics.processed.WithLabelValues(format, outcome(err)).Inc()
	if err != nil {
		s.writeError(w, logger, err)
	}
}

func (s *server) handleGetCoordinates(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(w)

	err := func() error {
		if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return newHTTPError(http.StatusBadRequest, "Invalid form: %v", err)
		}
		var form coordinatesForm
		if err := s.decoder.Decode(&form, r.PostForm); err != nil {
			return newHTTPError(http.StatusBadRequest, "Invalid form: %v", err)
		}
		if strings.TrimSpace(form.Address) == "" {
			return newHTTPError(http.StatusBadRequest, "Address cannot be empty.")
		}
		place, err := s.resolve(r, form.Address)
		if err != nil {
			return err
		}
		s.writeJSON(w, http.StatusOK, coordinatesResponse{
			Address:   form.Address,
			Latitude:  place.Coordinate.Latitude,
			Longitude: place.Coordinate.Longitude,
		})
		return nil
	}()
	if err != nil {
		s.writeError(w, logger, err)
	}
}

// resolve maps geocoder failures to client facing errors.
func (s *server) resolve(r *http.Request, address string) (geocode.Place, error) {
	place, err := s.geocoder.Resolve(r.Context(), address)
	switch {
	case err == nil:
		return place, nil
	case errors.Is(err, geocode.ErrEmptyAddress):
		return place, newHTTPError(http.StatusBadRequest, "Address cannot be empty.")
	case errors.Is(err, geocode.ErrNotFound):
		return place, newHTTPError(http.StatusUnprocessableEntity, "Could not find coordinates for address: %s", address)
	default:
		return place, newHTTPError(http.StatusUnprocessableEntity, "Geocoding error: %v", err)
	}
}

func outcome(err error) string {
	var herr *httpError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &herr) && herr.status == http.StatusUnprocessableEntity:
		return "geocode_error"
	case errors.As(err, &herr):
		return "client_error"
	default:
		return "server_error"
	}
}

func (s *server) writeError(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	var herr *httpError
	if !errors.As(err, &herr) {
		logger.WithError(err).Error("Request failed")
		herr = newHTTPError(http.StatusInternalServerError, "Image processing error: %v", err)
	} else {
		logger.WithError(err).WithField("status", herr.status).Info("Request rejected")
	}
	s.writeJSON(w, herr.status, map[string]string{"detail": herr.detail})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Debug("Writing response")
	}
}
