package s3

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NewFake returns a Store wired to an in-process fake S3 endpoint so backup
// and blob document tests run without network access. The fake understands
// HEAD, GET, PUT and DELETE on objects and ListObjectsV2 on the bucket.
func NewFake() *Store {
	store, err := New(context.Background(), Config{
		Bucket:          "custody-fake",
		Endpoint:        "https://fake.s3.local",
		AccessKeyID:     "fake",
		SecretAccessKey: "fake",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: newFakeBucket()},
	})
	if err != nil {
		panic("s3 fake: " + err.Error())
	}
	return store
}

type fakeObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: make(map[string]fakeObject)} }

func (b *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// path style: /<bucket>/<key>
	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return b.list(req.URL.Query().Get("prefix"))
	}
	obj, ok := b.objects[key]
	switch req.Method {
	case http.MethodHead:
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		return respond(http.StatusOK, nil, obj.headers()), nil
	case http.MethodGet:
		if !ok {
			body := []byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return respond(http.StatusNotFound, body, http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return respond(http.StatusOK, obj.body, obj.headers()), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if decoded, ok := decodeAWSChunked(body); ok {
			body = decoded
		}
		b.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), modified: time.Now().UTC()}
		h := http.Header{}
		h.Set("ETag", `"etag"`)
		return respond(http.StatusOK, nil, h), nil
	case http.MethodDelete:
		delete(b.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

type listResult struct {
	XMLName     xml.Name     `xml:"ListBucketResult"`
	IsTruncated bool         `xml:"IsTruncated"`
	Contents    []listObject `xml:"Contents"`
}

type listObject struct {
	Key          string `xml:"Key"`
	Size         int    `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

func (b *fakeBucket) list(prefix string) (*http.Response, error) {
	var res listResult
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			res.Contents = append(res.Contents, listObject{
				Key:          key,
				Size:         len(obj.body),
				ETag:         `"etag"`,
				LastModified: obj.modified.Format(time.RFC3339),
			})
		}
	}
	sort.Slice(res.Contents, func(i, j int) bool { return res.Contents[i].Key < res.Contents[j].Key })
	body, err := xml.Marshal(res)
	if err != nil {
		return nil, err
	}
	return respond(http.StatusOK, body, http.Header{"Content-Type": {"application/xml"}}), nil
}

func (o fakeObject) headers() http.Header {
	// Set canonicalizes the key; the SDK reads the header back with Get.
	h := http.Header{}
	h.Set("Content-Length", strconv.Itoa(len(o.body)))
	h.Set("Content-Type", o.contentType)
	h.Set("ETag", `"etag"`)
	h.Set("Last-Modified", o.modified.Format(http.TimeFormat))
	return h
}

func respond(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// decodeAWSChunked unwraps a single-chunk aws-chunked payload of the form
// "<hex size>[;chunk-signature=...]\r\n<data>\r\n0...".
func decodeAWSChunked(b []byte) ([]byte, bool) {
	parts := strings.SplitN(string(b), "\r\n", 3)
	if len(parts) < 3 || !strings.HasPrefix(parts[2], "0") {
		return nil, false
	}
	sizeField, _, _ := strings.Cut(parts[0], ";")
	size, err := strconv.ParseInt(sizeField, 16, 64)
	if err != nil || size != int64(len(parts[1])) {
		return nil, false
	}
	return []byte(parts[1]), true
}
