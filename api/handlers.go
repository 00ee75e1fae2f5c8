package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stegokey/backend-go/internal/store"
	"github.com/stegokey/backend-go/pkg/carrier"
	"github.com/stegokey/backend-go/pkg/client"
	"github.com/stegokey/backend-go/pkg/envelope"
	"github.com/stegokey/backend-go/pkg/ledger"
)

type encryptResponse struct {
	Ciphertext   string `json:"ciphertext"`
	EncodedImage string `json:"encoded_image"`
	EncodedVideo string `json:"encoded_video"`
	EncodedAudio string `json:"encoded_audio"`
}

type decryptResponse struct {
	DecryptedText string `json:"decrypted_text"`
}

var contentTypes = map[carrier.Kind]string{
	carrier.Image: "image/png",
	carrier.Video: "video/x-msvideo",
	carrier.Audio: "audio/wav",
}

func (s *Server) encrypt(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.parseForm(w, r); err != nil {
		writeFormError(w, err)
		return
	}

	var in client.Carriers
	for _, kind := range carrier.Kinds {
		b, err := formFile(r, string(kind))
		if err != nil {
			writeFormError(w, err)
			return
		}
		in.Set(kind, b)
	}

	res, err := s.client.Encode(r.Context(), r.FormValue("data"), in)
	if err != nil {
		s.record(r.Context(), "encode", start, ledger.NewRecord("encode", nil, err))
		s.writeError(w, "encode", err)
		return
	}

	links := map[carrier.Kind]string{}
	for _, kind := range carrier.Kinds {
		codec := s.client.Codec(kind)
		obj, err := s.store.Put(store.Object{
			Name:        "encoded_" + string(kind) + codec.Ext(),
			ContentType: contentTypes[kind],
			Digest:      envelopeDigest(&res.Envelope, kind),
		}, res.Carriers.Get(kind))
		if err != nil {
			s.log.WithError(err).WithField("carrier", kind).Error("could not store encoded carrier")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not store encoded carrier", Carrier: string(kind)})
			return
		}
		links[kind] = s.downloadURL(r, obj.ID)
	}
	s.record(r.Context(), "encode", start, ledger.NewRecord("encode", &res.Envelope, nil))

	writeJSON(w, http.StatusOK, encryptResponse{
		Ciphertext:   res.Token,
		EncodedImage: links[carrier.Image],
		EncodedVideo: links[carrier.Video],
		EncodedAudio: links[carrier.Audio],
	})
}

func (s *Server) decrypt(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.parseForm(w, r); err != nil {
		writeFormError(w, err)
		return
	}

	var in client.Carriers
	for _, kind := range carrier.Kinds {
		b, err := formFile(r, "encoded_"+string(kind))
		if err != nil {
			writeFormError(w, err)
			return
		}
		in.Set(kind, b)
	}

	token := r.FormValue("ciphertext")
	plaintext, err := s.client.Decode(r.Context(), token, in)
	env, _ := s.client.Inspect(token)
	s.record(r.Context(), "decode", start, ledger.NewRecord("decode", env, err))
	if err != nil {
		s.writeError(w, "decode", err)
		return
	}
	writeJSON(w, http.StatusOK, decryptResponse{DecryptedText: plaintext})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	obj, b, err := s.store.Get(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "file not found"})
		return
	}
	if err != nil {
		s.log.WithError(err).Error("could not read encoded carrier")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not read file"})
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", obj.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	if obj.Digest != "" {
		w.Header().Set("ETag", `"`+obj.Digest+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) deleteDownload(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "file not found"})
		return
	}
	if err != nil {
		s.log.WithError(err).Error("could not delete encoded carrier")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not delete file"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const (
	defaultOperations = 50
	maxOperations     = 500
)

// operations lists recent ledger records. ?limit= caps the count.
func (s *Server) operations(l ledger.Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultOperations
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
				return
			}
			limit = min(n, maxOperations)
		}
		records, err := l.List(r.Context(), limit)
		if err != nil {
			s.log.WithError(err).Error("could not list ledger records")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not list operations"})
			return
		}
		if records == nil {
			records = []ledger.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	return r.ParseMultipartForm(s.cfg.MaxUploadBytes)
}

// formFile returns the named upload, or nil when the field is absent.
func formFile(r *http.Request, name string) ([]byte, error) {
	f, _, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) downloadURL(r *http.Request, id string) string {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/download/" + id
}

func envelopeDigest(env *envelope.Envelope, kind carrier.Kind) string {
	d, _ := env.Digest(string(kind))
	return d
}
