package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/fsys"
)

// metaHeaderPrefix marks request headers that become custom object metadata.
const metaHeaderPrefix = "X-Meta-"

const defaultPresignTTL = 15 * time.Minute

type objectResponse struct {
	Kind         string            `json:"kind"`
	Name         string            `json:"name"`
	Path         string            `json:"path"`
	IsDir        bool              `json:"is_dir"`
	LastModified time.Time         `json:"last_modified"`
	Size         int64             `json:"size"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func toObjectResponse(obj fsys.Object) objectResponse {
	meta := obj.Meta()
	return objectResponse{
		Kind:         obj.Kind().String(),
		Name:         obj.Name(),
		Path:         obj.FullPath(),
		IsDir:        meta.IsDir,
		LastModified: meta.LastModified,
		Size:         meta.Size,
		Metadata:     meta.User,
	}
}

type transferRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Recursive bool   `json:"recursive"`
}

func pathParam(r *http.Request) (string, error) {
	p := r.URL.Query().Get("path")
	if p == "" {
		return "", errs.New(errs.ErrKindInvalidPath, "query parameter path is required")
	}
	return p, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errs.Wrap(errs.ErrKindInvalidOperand, "invalid query parameter "+name, err)
	}
	return b, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.fs.Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	onlyFiles, err := boolParam(r, "files")
	if err != nil {
		writeError(w, r, err)
		return
	}

	names, err := s.fs.ListDir(r.Context(), path, onlyFiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	obj, err := s.fs.Describe(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toObjectResponse(obj))
}

func (s *Server) handleCat(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	obj, err := s.fs.Stat(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, ok := obj.(*fsys.File)
	if !ok {
		writeError(w, r, errs.Newf(errs.ErrKindInvalidOperand, "%s is a directory", path))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Header().Set("Last-Modified", f.Metadata.LastModified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, err := s.fs.LastObject(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if f == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toObjectResponse(f))
}

func (s *Server) handleExists(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	exists, err := s.fs.Exists(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	isDir := false
	if exists {
		if isDir, err = s.fs.IsDir(r.Context(), path); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists, "is_dir": isDir})
}

func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ttl := defaultPresignTTL
	if v := r.URL.Query().Get("ttl"); v != "" {
		if ttl, err = time.ParseDuration(v); err != nil || ttl <= 0 {
			writeError(w, r, errs.Newf(errs.ErrKindInvalidOperand, "invalid query parameter ttl %q", v))
			return
		}
	}

	url, err := s.fs.PresignURL(r.Context(), path, ttl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:   errs.ErrKindInvalidOperand.String(),
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeError(w, r, errs.Wrap(errs.ErrKindInvalidOperand, "failed to read request body", err))
		return
	}

	if err := s.fs.PutData(r.Context(), path, data, metadataFromHeader(r.Header)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// metadataFromHeader collects X-Meta-* headers. Keys keep their canonical
// header spelling without the prefix.
func metadataFromHeader(h http.Header) map[string]string {
	var meta map[string]string
	for k, v := range h {
		k = textproto.CanonicalMIMEHeaderKey(k)
		if !strings.HasPrefix(k, metaHeaderPrefix) || len(v) == 0 {
			continue
		}
		if meta == nil {
			meta = make(map[string]string)
		}
		meta[strings.TrimPrefix(k, metaHeaderPrefix)] = v[0]
	}
	return meta
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recursive, err := boolParam(r, "recursive")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.fs.Remove(r.Context(), path, recursive); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.fs.MakeDirs(r.Context(), path); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTransfer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.fs.Copy(r.Context(), req.From, req.To, req.Recursive); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTransfer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.fs.Move(r.Context(), req.From, req.To, req.Recursive); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeTransfer(r *http.Request) (*transferRequest, error) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidOperand, "invalid request body", err)
	}
	if req.From == "" || req.To == "" {
		return nil, errs.New(errs.ErrKindInvalidPath, "from and to are required")
	}
	return &req, nil
}
