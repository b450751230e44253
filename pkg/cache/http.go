package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Response headers describing a cached body.
const (
	HeaderCacheStatus   = "X-Cache"
	HeaderCacheStoredAt = "X-Cache-Stored-At"
	HeaderCacheType     = "X-Cache-Type"
)

// MaxBodySize bounds how much of an upstream body is read.
const MaxBodySize = 8 << 20

// ReadBody reads the response body and restores it for the caller.
func ReadBody(resp *http.Response) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}
	if resp.Body == nil {
		return []byte{}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxBodySize)
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// EntryToResponse renders a cached entry as a 200 JSON response.
func EntryToResponse(entry *CacheEntry) *http.Response {
	if entry == nil {
		return nil
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Content-Length", strconv.Itoa(len(entry.Body)))
	header.Set(HeaderCacheType, string(entry.Type))
	header.Set(HeaderCacheStoredAt, entry.StoredAt.UTC().Format(time.RFC3339))

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
	}
}
